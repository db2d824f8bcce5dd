package network

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitedTransport waits for the limiter before each round trip.
type RateLimitedTransport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Base.RoundTrip(req)
}

// WithRateLimit returns a copy of client whose requests are throttled to
// requestsPerSecond.
func WithRateLimit(client *http.Client, requestsPerSecond float64, burst int) *http.Client {
	if burst <= 0 {
		burst = 1
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	limited := *client
	limited.Transport = &RateLimitedTransport{
		Base:    base,
		Limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
	return &limited
}
