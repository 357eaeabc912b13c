package httpclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kbukum/fetchguard/errors"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a request or connection timeout.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a connection failure (refused, DNS, proxy).
	ErrCodeConnection
	// ErrCodeRateLimit indicates the remote rate limited us (429).
	ErrCodeRateLimit
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
	// ErrCodeClient indicates any other non-2xx response, including auth
	// failures and 404.
	ErrCodeClient
	// ErrCodeRequest indicates the request could not be built.
	ErrCodeRequest
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeServer:
		return "server"
	case ErrCodeClient:
		return "client"
	case ErrCodeRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error describes a failed attempt. It is always returned wrapped in a
// Transient or Permanent fetchguard error.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message describes the error.
	Message string
	// Body is the original response body (may be nil).
	Body []byte
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeConnection, ErrCodeRateLimit, ErrCodeServer:
		return true
	default:
		return false
	}
}

// classify wraps e as Transient or Permanent.
func classify(e *Error) error {
	if e.Retryable() {
		return errors.Transient(e).WithOp("httpclient")
	}
	return errors.Permanent(e).WithOp("httpclient")
}

// transportError classifies a failure from http.Client.Do. A done ctx wins
// over whatever the transport reported.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Cancelled(ctxErr)
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return classify(&Error{Code: ErrCodeTimeout, Message: err.Error(), Err: err})
	}
	return classify(&Error{Code: ErrCodeConnection, Message: err.Error(), Err: err})
}

// ClassifyStatusCode converts a non-2xx status into a classified error.
// Returns nil for 2xx status codes.
func ClassifyStatusCode(statusCode int, body []byte) error {
	e := &Error{StatusCode: statusCode, Message: http.StatusText(statusCode), Body: body}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
	case statusCode >= 500:
		e.Code = ErrCodeServer
	default:
		e.Code = ErrCodeClient
	}
	return classify(e)
}

// AsError extracts the *Error from a classified failure.
func AsError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrCodeTimeout
}

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrCodeConnection
}

// IsRateLimit checks if an error is a rate-limit error.
func IsRateLimit(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrCodeRateLimit
}

// IsServerError checks if an error is a server error.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrCodeServer
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.StatusCode
	}
	return 0
}
