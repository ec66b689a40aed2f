// Package ranking fetches ranked and inventory barrier data from the ranking service.
package ranking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/keys"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
)

const (
	endpointRank  = "rank"
	endpointQuery = "query"
	endpointCSV   = "csv"
)

// StatusError is returned when the ranking service answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed request to %s: %s", e.URL, e.Status)
}

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	base     string
	cache    cache.Interface
	gens     *keys.Generations
	ttl      time.Duration
	startNow func() time.Time // for tests
}

type Option func(*Client)

// WithCache stores successful payloads under keys scoped by gens.
func WithCache(c cache.Interface, gens *keys.Generations, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.gens = gens
		cl.ttl = ttl
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ranking api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ranking api url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		logger:   slog.Default(),
		client:   httpClient,
		base:     strings.TrimRight(u.String(), "/"),
		startNow: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.cache != nil && c.gens == nil {
		c.gens = keys.NewGenerations()
	}
	return c, nil
}

func (c *Client) endpointURL(endpoint string, req Request, query string) string {
	u := fmt.Sprintf("%s/api/v1/%s/%s/%s", c.base, req.Kind, endpoint, req.Layer)
	if query != "" {
		u += "?" + query
	}
	return u
}

// Rank returns the ranked barriers within the selected units that pass the filters.
func (c *Client) Rank(ctx context.Context, req Request) (Table, error) {
	return c.fetch(ctx, endpointRank, req, QueryParams(req.UnitIDs, req.Filters))
}

// Inventory returns every barrier within the selected units; filters are not applied.
func (c *Client) Inventory(ctx context.Context, req Request) (Table, error) {
	return c.fetch(ctx, endpointQuery, req, QueryParams(req.UnitIDs, filtersNone))
}

// DownloadURL is the CSV export address for req. Nothing is fetched.
func (c *Client) DownloadURL(req Request) string {
	return c.endpointURL(endpointCSV, req, QueryParams(req.UnitIDs, req.Filters))
}

func (c *Client) fetch(ctx context.Context, endpoint string, req Request, query string) (Table, error) {
	target := c.endpointURL(endpoint, req, query)

	var key string
	if c.cache != nil {
		key = keys.Key(string(req.Kind), string(req.Layer), c.gens.Get(string(req.Kind)), endpoint+"?"+query)
		if got, err := c.cache.MGet(ctx, []string{key}); err == nil {
			if b, ok := got[key]; ok {
				c.logger.Debug("ranking cache hit", "endpoint", endpoint, "layer", req.Layer)
				return ParseCSV(bytes.NewReader(b))
			}
		}
	}

	body, err := c.get(ctx, endpoint, target)
	if err != nil {
		return Table{}, err
	}
	t, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return Table{}, fmt.Errorf("parse %s response: %w", endpoint, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
			c.logger.Warn("ranking cache set failed", "key", key, "err", err)
		}
	}
	return t, nil
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamLatency(endpoint, err, time.Since(start).Seconds())
		return nil, fmt.Errorf("failed request to %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		serr := &StatusError{Code: resp.StatusCode, Status: statusText(resp), URL: target, Body: string(b)}
		observability.ObserveUpstreamLatency(endpoint, serr, time.Since(start).Seconds())
		return nil, serr
	}

	b, err := io.ReadAll(resp.Body)
	observability.ObserveUpstreamLatency(endpoint, err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("ranking fetch done",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(b),
		"duration", time.Since(start).String())
	return b, nil
}

func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}
