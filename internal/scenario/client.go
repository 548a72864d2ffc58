package scenario

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig tunes the HTTP client shared by all VUs of a run. The
// transport pool is sized for load generation: many concurrent callers
// against a small set of hosts.
type ClientConfig struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// MaxIdleConns caps idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections kept per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits total connections per host; 0 is unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive.
	IdleConnTimeout time.Duration

	// DisableKeepAlives forces a fresh connection per request.
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification.
	InsecureSkipVerify bool
}

// DefaultClientConfig returns pool sizes suited to load generation.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewClient builds the shared client. VUs never get per-VU clients: a
// single pooled transport keeps connection reuse high while each VU's
// requests stay independent.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
