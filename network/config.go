package network

import (
	"net/http"
	"time"
)

const (
	// DefaultRetryCount is the attempt budget of a single retryable request.
	DefaultRetryCount = 10
	// DefaultRetryDelay is used when a retryable response carries no Retry-After header.
	DefaultRetryDelay = 30 * time.Second
	// DefaultConnectionLimit caps concurrent connections per host.
	DefaultConnectionLimit = 24
)

// Config holds configuration for the retrying transport.
type Config struct {
	// RetryCount is the maximum number of attempts of a retryable request,
	// the first one included. Values below 1 allow a single attempt.
	// Default: 10
	RetryCount int

	// DefaultRetryDelay is the wait used when the server gives no hint.
	// Default: 30 seconds
	DefaultRetryDelay time.Duration

	// Timeout bounds a single HTTP attempt. Zero means no timeout.
	Timeout time.Duration

	// ConnectionLimit caps connections per host.
	// Default: 24
	ConnectionLimit int

	// RequestsPerSecond throttles outgoing requests when positive.
	RequestsPerSecond float64
	Burst             int

	// Verbose enables request and response dumps at debug level.
	Verbose bool

	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RetryCount:        DefaultRetryCount,
		DefaultRetryDelay: DefaultRetryDelay,
		ConnectionLimit:   DefaultConnectionLimit,
	}
}

func (c Config) withDefaults() Config {
	if c.RetryCount < 1 {
		c.RetryCount = 1
	}
	if c.DefaultRetryDelay < 0 {
		c.DefaultRetryDelay = 0
	}
	if c.ConnectionLimit <= 0 {
		c.ConnectionLimit = DefaultConnectionLimit
	}
	return c
}

// NewHTTPClient creates an HTTP client tuned for many parallel requests to few hosts.
func NewHTTPClient(timeout time.Duration, connectionLimit int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        2 * connectionLimit,
			MaxIdleConnsPerHost: connectionLimit,
			MaxConnsPerHost:     connectionLimit,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}
