// Package redisstore is the shared, cross-instance tier of the ranking cache.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
)

const (
	tier          = "redis"
	DefaultPrefix = "prioritizer:"
)

type settings struct {
	redis  redis.Options
	prefix string
}

type Option func(*settings)

// WithPrefix namespaces every key so several deployments can share one Redis.
func WithPrefix(p string) Option {
	return func(s *settings) { s.prefix = p }
}

func WithDB(db int) Option {
	return func(s *settings) { s.redis.DB = db }
}

func WithPassword(pw string) Option {
	return func(s *settings) { s.redis.Password = pw }
}

func WithPoolSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.redis.PoolSize = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(s *settings) { s.redis.DialTimeout = d }
}

// Client stores ranking payloads under prefixed keys. Callers see unprefixed keys.
type Client struct {
	rdb    *redis.Client
	prefix string
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	s := settings{
		redis: redis.Options{
			Addr:         addr,
			PoolSize:     32,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		},
		prefix: DefaultPrefix,
	}
	for _, f := range opts {
		f(&s)
	}

	c := &Client{rdb: redis.NewClient(&s.redis), prefix: s.prefix}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

func observe(op string, start time.Time, err error) {
	observability.ObserveCacheOp(op, err, time.Since(start).Seconds())
}

func (c *Client) key(k string) string { return c.prefix + k }

// MGet returns the stored payloads for the keys that exist.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	if len(keys) == 0 {
		observe("mget", start, nil)
		return map[string][]byte{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.rdb.MGet(ctx, full...).Result()
	observe("mget", start, err)
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make(map[string][]byte, len(vals))
	for i, v := range vals {
		switch t := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		default:
			out[keys[i]] = fmt.Append(nil, t)
		}
	}
	observability.AddCacheHits(tier, len(out))
	observability.AddCacheMisses(tier, len(keys)-len(out))
	return out, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, c.key(key), val, ttl).Err()
	observe("set", start, err)
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	start := time.Now()
	err := c.rdb.Del(ctx, full...).Err()
	observe("del", start, err)
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

// Ping reports whether Redis answers; used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observe("ping", start, err)
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
