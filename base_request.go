package wapi

import (
	"context"
	"sync"
	"time"
)

// BaseRequest records the outcome of a request. Embed it in a struct and
// override the Request methods that need more than the defaults (GET on the
// base URL, no parameters, no caching). Use it through a pointer.
type BaseRequest struct {
	// OnResolved, when set, runs after every Complete or Fail.
	OnResolved func()

	mu       sync.Mutex
	response *Response
	err      error
	failed   bool
	done     chan struct{}
	resolved bool
}

func (r *BaseRequest) Path() string             { return "" }
func (r *BaseRequest) Method() Method           { return "" }
func (r *BaseRequest) URLParameters() *Params   { return nil }
func (r *BaseRequest) BodyParameters() *Params  { return nil }
func (r *BaseRequest) ContentName() string      { return "" }
func (r *BaseRequest) CacheTime() time.Duration { return 0 }

// Complete records resp as the outcome.
func (r *BaseRequest) Complete(resp *Response) {
	r.mu.Lock()
	r.response = resp
	r.err = nil
	r.failed = false
	r.markDoneLocked()
	hook := r.OnResolved
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Fail records err as the outcome.
func (r *BaseRequest) Fail(err error) {
	r.mu.Lock()
	r.response = nil
	r.err = err
	r.failed = true
	r.markDoneLocked()
	hook := r.OnResolved
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Response returns the response, or nil when the request failed or has not
// resolved yet.
func (r *BaseRequest) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.response
}

// Err returns the failure passed to Fail.
func (r *BaseRequest) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// HasFailed reports whether the request resolved with a transport failure.
func (r *BaseRequest) HasFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.failed
}

// HasSucceeded reports whether a response is available. Any status code
// counts, including 404.
func (r *BaseRequest) HasSucceeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.response != nil
}

// IsResolved reports whether the request either failed or succeeded.
func (r *BaseRequest) IsResolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolved
}

// Done returns a channel closed on the first resolution.
func (r *BaseRequest) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		r.done = make(chan struct{})
		if r.resolved {
			close(r.done)
		}
	}
	return r.done
}

// Wait blocks until the request resolves or ctx is done. It returns the
// failure passed to Fail, or ctx.Err().
func (r *BaseRequest) Wait(ctx context.Context) error {
	select {
	case <-r.Done():
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *BaseRequest) markDoneLocked() {
	if r.resolved {
		return
	}
	r.resolved = true
	if r.done != nil {
		close(r.done)
	}
}

// SimpleRequest is a Request described by its fields.
type SimpleRequest struct {
	BaseRequest

	Endpoint string
	Verb     Method
	Query    *Params
	Form     *Params
	Content  string
	TTL      time.Duration
}

// NewSimpleRequest returns a GET request for path.
func NewSimpleRequest(path string) *SimpleRequest {
	return &SimpleRequest{Endpoint: path}
}

func (r *SimpleRequest) Path() string             { return r.Endpoint }
func (r *SimpleRequest) Method() Method           { return r.Verb }
func (r *SimpleRequest) URLParameters() *Params   { return r.Query }
func (r *SimpleRequest) BodyParameters() *Params  { return r.Form }
func (r *SimpleRequest) ContentName() string      { return r.Content }
func (r *SimpleRequest) CacheTime() time.Duration { return r.TTL }
