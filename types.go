package wapi

import (
	"context"
	"net/http"
	"time"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodTrace   Method = http.MethodTrace
)

// Request describes one logical call against the API. Implementations are
// supplied by callers; the client only reads from them and invokes exactly one
// of Complete or Fail per started exchange.
type Request interface {
	// Path is appended to the client's base URL. It must not carry a query;
	// use URLParameters instead.
	Path() string
	// Method returns the preferred method. The empty string means GET.
	Method() Method
	// URLParameters are merged over the client's persistent parameters.
	URLParameters() *Params
	// BodyParameters are form-encoded into the request body.
	BodyParameters() *Params
	// ContentName groups cached responses for bulk invalidation. The empty
	// string disables caching for this request.
	ContentName() string
	// CacheTime is queried after Complete so the decision may depend on the
	// response. Zero or negative disables caching.
	CacheTime() time.Duration
	// Complete receives the response of a finished exchange or a cache hit.
	Complete(resp *Response)
	// Fail is called when the transport could not produce a response.
	Fail(err error)
}

// RequestState is the lifecycle position of a started request.
type RequestState int

const (
	RequestCreated RequestState = iota
	RequestDeduplicated
	RequestCacheHit
	RequestInFlight
	RequestCompleted
	RequestFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestCreated:
		return "created"
	case RequestDeduplicated:
		return "deduplicated"
	case RequestCacheHit:
		return "cache_hit"
	case RequestInFlight:
		return "in_flight"
	case RequestCompleted:
		return "completed"
	case RequestFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestListener is notified whenever a request is resolved, by the network
// or by the cache.
type RequestListener interface {
	OnRequestResolved(req Request)
}

// RequestListenerFunc adapts a function to RequestListener.
type RequestListenerFunc func(req Request)

func (f RequestListenerFunc) OnRequestResolved(req Request) {
	f(req)
}

// ContentListener is notified when cached content is invalidated.
type ContentListener interface {
	OnContentInvalidated(contentName string)
}

// ContentListenerFunc adapts a function to ContentListener.
type ContentListenerFunc func(contentName string)

func (f ContentListenerFunc) OnContentInvalidated(contentName string) {
	f(contentName)
}

// Dispatcher runs listener callbacks. Use it to move notifications onto a
// specific goroutine or queue.
type Dispatcher func(fn func())

// Transport performs one wire exchange. Non-2xx statuses are returned as
// responses; only failures to obtain a response are errors.
type Transport interface {
	Execute(ctx context.Context, req *TransportRequest, timeout time.Duration) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *TransportRequest, timeout time.Duration) (*Response, error)

func (f TransportFunc) Execute(ctx context.Context, req *TransportRequest, timeout time.Duration) (*Response, error) {
	return f(ctx, req, timeout)
}

// Middleware wraps the HTTP round trip of the default transport.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option configures a Client.
type Option func(*Client)

// Logger is the minimal structured logger used for diagnostics.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DebugConfig selects which debug events are logged.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogDedup     bool
	LogListeners bool
	RequestIDGen func() string
}
