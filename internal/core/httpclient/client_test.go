package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/logger"
)

func TestNewOutboundTimeout(t *testing.T) {
	if c := NewOutbound(0); c.Timeout != DefaultTimeout {
		t.Fatalf("default timeout = %v", c.Timeout)
	}
	c := NewOutbound(2 * time.Second)
	if c.Timeout != 2*time.Second {
		t.Fatalf("timeout = %v", c.Timeout)
	}
	tg, ok := c.Transport.(*tagging)
	if !ok {
		t.Fatalf("transport = %T", c.Transport)
	}
	tr, ok := tg.base.(*http.Transport)
	if !ok || tr.ResponseHeaderTimeout != 2*time.Second {
		t.Fatalf("transport not tuned: %#v", tg.base)
	}
}

func TestOutboundTagsRequests(t *testing.T) {
	var ua, rid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		rid = r.Header.Get("X-Request-ID")
	}))
	defer srv.Close()

	ctx := logger.WithRequestID(context.Background(), "req-42")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewOutbound(time.Second).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = resp.Body.Close()

	if ua != UserAgent || rid != "req-42" {
		t.Fatalf("user-agent=%q request-id=%q", ua, rid)
	}
}
