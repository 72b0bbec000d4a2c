package wapi

import (
	"fmt"
	"net/http"
	"time"
)

// Response is the result of one exchange. Treat it as read-only: the same
// value may be handed to several requests when it is served from the cache.
type Response struct {
	RequestURL  string
	StatusCode  int
	ContentType string
	Encoding    string
	Header      http.Header
	Body        []byte
	// ExpiresAt is the freshness limit advertised by the server; zero when
	// the server sent none.
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Class returns the status class of the response.
func (r *Response) Class() StatusClass {
	if r == nil {
		return StatusUnknown
	}
	return ClassOf(r.StatusCode)
}

// CacheableFor returns how long the response stays fresh according to the
// server, counted from now. Only always-cacheable statuses yield a positive
// duration. Requests may use it as their CacheTime.
func (r *Response) CacheableFor(now time.Time) time.Duration {
	if r == nil || !IsAlwaysCacheable(r.StatusCode) || r.ExpiresAt.IsZero() {
		return 0
	}
	if left := r.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

func (r *Response) String() string {
	if r == nil {
		return "Response<nil>"
	}
	return fmt.Sprintf("Response{%d %s, %d bytes}", r.StatusCode, r.RequestURL, len(r.Body))
}
