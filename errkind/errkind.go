// Package errkind classifies the failures reported by the uploader core.
// Callers branch on Kind with KindOf or Is instead of inspecting messages.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of failure.
type Kind string

const (
	// Unknown is reported for errors that carry no classification.
	Unknown Kind = "UNKNOWN"

	// NotFound indicates a remote resource (product, branch, flight, package,
	// package configuration, submission) does not exist. Never retried.
	NotFound Kind = "NOT_FOUND"

	// RetryableTransport indicates a 503/504 or Retry-After response. Callers
	// see it wrapped in RetryExhausted once the retry budget is spent.
	RetryableTransport Kind = "RETRYABLE_TRANSPORT"

	// RetryExhausted indicates a request stayed retryable for the whole retry budget.
	RetryExhausted Kind = "RETRY_EXHAUSTED"

	// FatalTransport indicates a non-success status that is never retried.
	FatalTransport Kind = "FATAL_TRANSPORT"

	// Auth indicates a 401/403 that survived the single credential refresh.
	Auth Kind = "AUTH"

	// ProcessingFailed indicates the remote service reported a terminal failure state.
	ProcessingFailed Kind = "PROCESSING_FAILED"

	// ProcessingTimeout indicates the caller's wait window elapsed while the
	// resource was still in a non-terminal state.
	ProcessingTimeout Kind = "PROCESSING_TIMEOUT"

	// ValidationRejected indicates a submission carries blocking validation items.
	ValidationRejected Kind = "VALIDATION_REJECTED"

	// Config indicates invalid operation configuration, detected before any network call.
	Config Kind = "CONFIG"
)

// Error is a classified failure with the context needed to report it.
type Error struct {
	Kind Kind

	// Op is the operation that failed (e.g. "get product", "upload block").
	Op string

	// Resource names the remote resource kind for NotFound errors.
	Resource string

	// Status is the HTTP status code, if the failure came from a response.
	Status int

	// CorrelationID is the client generated correlation id of the failing request.
	CorrelationID string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Resource != "" && e.Kind == NotFound {
		b.WriteString(e.Resource)
		b.WriteString(" not found")
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else if e.Resource == "" || e.Kind != NotFound {
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d", e.Status)
		if e.CorrelationID != "" {
			fmt.Fprintf(&b, ", correlation id %s", e.CorrelationID)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFoundError reports a missing remote resource.
func NotFoundError(op, resource string, err error) *Error {
	return &Error{Kind: NotFound, Op: op, Resource: resource, Err: err}
}

// ConfigError reports an invalid configuration value.
func ConfigError(format string, args ...interface{}) *Error {
	return &Error{Kind: Config, Op: "validate configuration", Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err's chain contains a classified error of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// StatusOf returns the HTTP status recorded in err's chain, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
