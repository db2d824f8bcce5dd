package network

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryAfterHeader is the server backoff hint honored by the transport.
const RetryAfterHeader = "Retry-After"

type retryBudgetError struct {
	attempts int
	status   int
	err      error
}

func (e *retryBudgetError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("giving up after %d attempt(s): %s", e.attempts, e.err)
	}
	return fmt.Sprintf("giving up after %d attempt(s) with HTTP %d", e.attempts, e.status)
}

func (e *retryBudgetError) Unwrap() error {
	return e.err
}

// IsRetryableResponse reports whether resp asks the client to try again:
// 503 and 504 always do, any other response does when it carries a
// Retry-After header, whatever its status.
func IsRetryableResponse(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return resp.Header.Get(RetryAfterHeader) != ""
}

// RetryDelay returns how long to wait before retrying resp. A Retry-After
// header is parsed as delta-seconds or as an HTTP date (a date in the past
// yields zero); without one the fallback is used.
func RetryDelay(resp *http.Response, now time.Time, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	value := strings.TrimSpace(resp.Header.Get(RetryAfterHeader))
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if IsRetryableResponse(resp) {
		c.logger.Warnf("%s %s returned HTTP %d, retrying",
			resp.Request.Method, c.redactor.RedactURL(resp.Request.URL.String()), resp.StatusCode)
		return true, nil
	}
	return false, nil
}

func (c *Client) backoff(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
	delay := RetryDelay(resp, time.Now(), c.config.DefaultRetryDelay)
	c.logger.Debugf("Waiting %s before attempt %d", delay, attemptNum+2)
	if c.onBackoff != nil {
		c.onBackoff(attemptNum, delay)
	}
	return delay
}

// errorHandler runs when retryablehttp gives up; it is the only place the
// final response body is closed on that path.
func (c *Client) errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warnf("close response body: %s", closeErr)
		}
	}
	if numTries >= c.config.RetryCount && (resp == nil || IsRetryableResponse(resp)) {
		return nil, &retryBudgetError{attempts: numTries, status: status, err: err}
	}
	if err == nil {
		err = fmt.Errorf("request failed after %d attempt(s)", numTries)
	}
	return nil, err
}
