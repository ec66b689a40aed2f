// Package tiered layers an in-process LRU in front of an optional shared cache.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
)

const localTier = "local"

type Cache struct {
	local  *expirable.LRU[string, []byte]
	remote cache.Interface
	opTO   time.Duration
	logger *slog.Logger
}

type Config struct {
	LocalSize int
	LocalTTL  time.Duration
	// OpTimeout bounds each remote call; zero leaves the caller's deadline alone.
	OpTimeout time.Duration
}

// New builds a tiered cache. remote may be nil for a process-local cache.
func New(cfg Config, remote cache.Interface, logger *slog.Logger) *Cache {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		local:  expirable.NewLRU[string, []byte](cfg.LocalSize, nil, cfg.LocalTTL),
		remote: remote,
		opTO:   cfg.OpTimeout,
		logger: logger,
	}
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTO <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTO)
}

// MGet serves from the local tier first and back-fills it from the remote tier.
// A failing remote tier degrades to misses.
func (c *Cache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	var missing []string
	for _, k := range keys {
		if v, ok := c.local.Get(k); ok {
			out[k] = v
			continue
		}
		missing = append(missing, k)
	}
	observability.AddCacheHits(localTier, len(out))
	observability.AddCacheMisses(localTier, len(missing))

	if len(missing) == 0 || c.remote == nil {
		return out, nil
	}
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	got, err := c.remote.MGet(rctx, missing)
	if err != nil {
		c.logger.Warn("remote cache get failed", "keys", len(missing), "err", err)
		return out, nil
	}
	for k, v := range got {
		c.local.Add(k, v)
		out[k] = v
	}
	return out, nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c.local.Add(key, val)
	if c.remote == nil {
		return nil
	}
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.remote.Set(rctx, key, val, ttl)
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.local.Remove(k)
	}
	if c.remote == nil {
		return nil
	}
	rctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.remote.Del(rctx, keys...)
}

// Purge drops every local entry. Remote entries age out by TTL.
func (c *Cache) Purge() {
	c.local.Purge()
}

func (c *Cache) Len() int {
	return c.local.Len()
}
