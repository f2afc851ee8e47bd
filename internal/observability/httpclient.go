package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// defaultHTTPTimeout is the per-attempt budget applied when the caller does
// not set its own; crawler and provider calls share the same 30s default.
const defaultHTTPTimeout = 30 * time.Second

// NewHTTPClient wraps base with an otelhttp transport and a default
// timeout. Passing nil builds a fresh client.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	if base.Timeout == 0 {
		base.Timeout = defaultHTTPTimeout
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(rt)
	return base
}

// WithHeaders wraps base so every request carries the given headers unless
// the request already sets them itself. The embedding adapter uses this for
// provider-specific auth headers configured per deployment.
func WithHeaders(base *http.Client, headers map[string]string) *http.Client {
	c := NewHTTPClient(base)
	inner := c.Transport
	c.Transport = roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		for k, v := range headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
		return inner.RoundTrip(req)
	})
	return c
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
