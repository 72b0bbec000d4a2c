package wapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Error type identifiers carried by ClientError.Type.
const (
	ErrorTypeNetwork        = "NetworkError"
	ErrorTypeTimeout        = "TimeoutError"
	ErrorTypeValidation     = "ValidationError"
	ErrorTypeNotInitialized = "NotInitializedError"
	ErrorTypeResponse       = "ResponseError"
)

// Sentinel errors for common failure scenarios
var (
	// ErrNotInitialized is returned when a request is started on a client
	// that was never configured with a base URL.
	ErrNotInitialized = errors.New("wapi: client not initialized")

	// ErrNilRequest is returned by StartRequest for a nil request.
	ErrNilRequest = errors.New("wapi: nil request")

	// ErrClosed is returned by StartRequest after Close.
	ErrClosed = errors.New("wapi: client closed")

	// ErrBodyTooLarge is the cause of a failure whose response body exceeded
	// the transport's size limit.
	ErrBodyTooLarge = errors.New("wapi: response body too large")
)

// ClientError describes a failed exchange or a rejected configuration.
// StatusCode is set when a response arrived but could not be accepted.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeTimeout {
		return true
	}
	return isTimeoutCause(err)
}

// IsTransient reports whether err is a network-level failure that may succeed
// if the request is started again. Configuration errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout:
			return true
		default:
			return false
		}
	}
	return false
}

func isTimeoutCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
