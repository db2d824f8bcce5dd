// Package network implements the HTTP plumbing shared by the ingestion and
// upload service clients: a bounded-retry transport that honors server
// backoff hints, and a bearer-authenticating wrapper around it.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

const (
	// CorrelationIDHeader carries the client generated id of every request.
	CorrelationIDHeader = "MS-CorrelationId"
	// ServerCorrelationIDHeader is echoed by the service for diagnostics.
	ServerCorrelationIDHeader = "MS-CV"

	maxErrorBodyBytes = 4096
)

// Request describes one logical call. A []byte Body is sent as-is with an
// octet-stream content type, any other non-nil Body is JSON encoded.
type Request struct {
	Method  string
	URL     string
	Body    interface{}
	Headers map[string]string
}

// Response carries the metadata of a completed call.
type Response struct {
	StatusCode          int
	Header              http.Header
	CorrelationID       string
	ServerCorrelationID string
}

// Requester is implemented by Client and AuthenticatedClient.
type Requester interface {
	Do(ctx context.Context, req Request, out interface{}) (*Response, error)
}

// Client is the retrying HTTP transport.
type Client struct {
	http     *retryablehttp.Client
	config   Config
	logger   log.Logger
	redactor *Redactor

	// onBackoff observes every computed retry delay.
	onBackoff func(attempt int, delay time.Duration)
}

// NewClient creates a retrying transport.
func NewClient(config Config, logger log.Logger) *Client {
	config = config.withDefaults()

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(config.Timeout, config.ConnectionLimit)
	}
	if config.RequestsPerSecond > 0 {
		httpClient = WithRateLimit(httpClient, config.RequestsPerSecond, config.Burst)
	}

	redactor := NewRedactor()
	c := &Client{
		config:   config,
		logger:   logger,
		redactor: redactor,
	}

	retryableClient := retryhttp.NewClient(logger)
	retryableClient.HTTPClient = httpClient
	retryableClient.Logger = &redactingLogger{logger: logger, redactor: redactor}
	retryableClient.RetryMax = config.RetryCount - 1
	retryableClient.CheckRetry = c.checkRetry
	retryableClient.Backoff = c.backoff
	retryableClient.ErrorHandler = c.errorHandler
	c.http = retryableClient

	return c
}

// Redactor returns the redactor applied to everything this client logs.
func (c *Client) Redactor() *Redactor {
	return c.redactor
}

// StandardClient returns an *http.Client that retries through this transport.
// Used by downloaders that drive their own requests.
func (c *Client) StandardClient() *http.Client {
	return c.http.StandardClient()
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, url string, out interface{}) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url}, out)
	return err
}

// Post issues a POST with body and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, url string, body, out interface{}) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body}, out)
	return err
}

// Put issues a PUT with body and decodes the JSON response into out.
func (c *Client) Put(ctx context.Context, url string, body, out interface{}) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPut, URL: url, Body: body}, out)
	return err
}

// Do performs the request, retrying retryable responses, and decodes a
// successful JSON response into out when out is not nil.
func (c *Client) Do(ctx context.Context, r Request, out interface{}) (*Response, error) {
	correlationID := uuid.NewString()
	op := fmt.Sprintf("%s %s", r.Method, c.redactor.RedactURL(r.URL))

	body, contentType, err := encodeBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", op, err)
	}

	var reqBody interface{}
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.Method, r.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set(CorrelationIDHeader, correlationID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
	}

	if c.config.Verbose {
		c.logger.Debugf("Request dump: %s", c.redactor.Redact(dumpRequest(req.Request, body, contentType)))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		var exhausted *retryBudgetError
		if errors.As(err, &exhausted) {
			return nil, &errkind.Error{
				Kind:          errkind.RetryExhausted,
				Op:            op,
				Status:        exhausted.status,
				CorrelationID: correlationID,
				Err: errkind.New(errkind.RetryableTransport, "", fmt.Errorf("request is stuck: still retryable after %d attempts over %s",
					exhausted.attempts, time.Since(start).Round(time.Second))),
			}
		}
		return nil, &errkind.Error{Kind: errkind.FatalTransport, Op: op, CorrelationID: correlationID, Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warnf("close response body: %s", err)
		}
	}(resp.Body)

	response := &Response{
		StatusCode:          resp.StatusCode,
		Header:              resp.Header,
		CorrelationID:       correlationID,
		ServerCorrelationID: resp.Header.Get(ServerCorrelationIDHeader),
	}

	if c.config.Verbose {
		dump, err := httputil.DumpResponse(resp, isJSON(resp.Header.Get("Content-Type")))
		if err != nil {
			c.logger.Warnf("error while dumping response: %s", err)
		}
		c.logger.Debugf("Response dump (server correlation id %s): %s", response.ServerCorrelationID, c.redactor.Redact(string(dump)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, c.statusError(op, resp, correlationID)
	}

	if out == nil {
		return response, nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return response, fmt.Errorf("%s: read response: %w", op, err)
		}
		return response, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return response, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return response, nil
}

func (c *Client) statusError(op string, resp *http.Response, correlationID string) error {
	kind := errkind.FatalTransport
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = errkind.Auth
	case http.StatusNotFound:
		kind = errkind.NotFound
	}

	msg := http.StatusText(resp.StatusCode)
	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)); err == nil && len(body) > 0 {
		msg = c.redactor.Redact(errorMessage(body))
	}

	return &errkind.Error{
		Kind:          kind,
		Op:            op,
		Status:        resp.StatusCode,
		CorrelationID: correlationID,
		Err:           errors.New(msg),
	}
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(body []byte) string {
	var e serviceError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != nil && e.Error.Message != "" {
			return fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)
		}
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Code, e.Message)
		}
	}
	return strings.TrimSpace(string(body))
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

func dumpRequest(req *http.Request, body []byte, contentType string) string {
	dump, err := httputil.DumpRequest(req, false)
	if err != nil {
		dump = []byte(fmt.Sprintf("%s %s", req.Method, req.URL))
	}
	if !isJSON(contentType) || len(body) == 0 {
		return string(dump)
	}
	return string(bytes.TrimSpace(dump)) + "\n\n" + string(body)
}
