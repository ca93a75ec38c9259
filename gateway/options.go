package gateway

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Redirector sends the user back to the login screen after the session has been torn down.
type Redirector interface {
	RedirectToLogin()
}

// RedirectFunc adapts a plain function to Redirector.
type RedirectFunc func()

func (f RedirectFunc) RedirectToLogin() {
	f()
}

type nopRedirector struct{}

func (nopRedirector) RedirectToLogin() {}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client. Its Timeout is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithTimeout sets the per-call timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithRedirector sets where the user is sent when a refresh fails.
func WithRedirector(r Redirector) Option {
	return func(g *Gateway) {
		if r != nil {
			g.redirector = r
		}
	}
}

// WithRateLimit limits outbound requests to rps per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCollector(c Collector) Option {
	return func(g *Gateway) {
		if c != nil {
			g.metrics = c
		}
	}
}

// WithRefreshPath overrides the refresh endpoint, "/refresh" by default.
func WithRefreshPath(path string) Option {
	return func(g *Gateway) {
		if path != "" {
			g.refreshPath = path
		}
	}
}

// CallOption configures a single Send.
type CallOption func(*Request)

// Anonymous sends the request without credentials and never refreshes on 401.
// Login uses it so a bad password is not mistaken for an expired session.
func Anonymous() CallOption {
	return func(r *Request) {
		r.anonymous = true
	}
}

// WithRequestID sets the X-Request-ID header instead of a generated uuid.
func WithRequestID(id string) CallOption {
	return func(r *Request) {
		if id != "" {
			r.ID = id
		}
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) CallOption {
	return func(r *Request) {
		if r.header == nil {
			r.header = make(http.Header)
		}
		r.header.Add(key, value)
	}
}
