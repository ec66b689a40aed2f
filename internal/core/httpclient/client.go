// Package httpclient configures the HTTP client used to call the ranking service.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/logger"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "barrier-prioritizer"
)

// NewOutbound creates a pooled client. A non-positive timeout uses DefaultTimeout.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Transport: &tagging{base: base},
		Timeout:   timeout,
	}
}

// tagging identifies this service upstream and forwards the request id
// carried by the context, if any.
type tagging struct {
	base http.RoundTripper
}

func (t *tagging) RoundTrip(req *http.Request) (*http.Response, error) {
	id := logger.RequestID(req.Context())
	if req.Header.Get("User-Agent") == "" || id != "" {
		req = req.Clone(req.Context())
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", UserAgent)
		}
		if id != "" {
			req.Header.Set("X-Request-ID", id)
		}
	}
	return t.base.RoundTrip(req)
}
