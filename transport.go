package wapi

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultContentType is reported when the server sends no Content-Type.
	DefaultContentType = "text/plain"
	// DefaultEncoding is reported when the Content-Type carries no charset.
	DefaultEncoding = "UTF-8"

	formContentType     = "application/x-www-form-urlencoded; charset=utf-8"
	maxResponseBodySize = 10 << 20
)

// HTTPTransport is the default Transport. It performs one net/http exchange
// per call, passing the request through the configured middleware chain.
// Bodies larger than 10 MiB fail the exchange instead of being truncated.
type HTTPTransport struct {
	httpClient  *http.Client
	middleware  []Middleware
	maxBodySize int64
	now         func() time.Time
}

// NewHTTPTransport returns a transport using client, or a fresh http.Client
// when client is nil.
func NewHTTPTransport(client *http.Client, middleware ...Middleware) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		httpClient: client,
		middleware:  append([]Middleware(nil), middleware...),
		maxBodySize: maxResponseBodySize,
		now:         time.Now,
	}
}

// Execute sends req and reads the whole response body. The timeout bounds the
// complete exchange including the body read. Any status code is a response;
// only failures to obtain one are returned as *ClientError.
func (t *HTTPTransport) Execute(ctx context.Context, req *TransportRequest, timeout time.Duration) (*Response, error) {
	start := t.now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(method), req.URL, body)
	if err != nil {
		return nil, transportError(req, "invalid request", err, t.now().Sub(start))
	}
	httpReq.Header.Set("Accept-Charset", "UTF-8")
	httpReq.Header.Set("User-Agent", UserAgent())
	if body != nil {
		httpReq.Header.Set("Content-Type", formContentType)
	}

	httpResp, err := t.executeMiddleware(httpReq)
	if err != nil {
		return nil, transportError(req, "network request failed", err, t.now().Sub(start))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, transportError(req, "reading response body failed", err, t.now().Sub(start))
	}
	if int64(len(data)) > t.maxBodySize {
		clientErr := transportError(req, fmt.Sprintf("response body exceeds %d bytes", t.maxBodySize), ErrBodyTooLarge, t.now().Sub(start))
		clientErr.Type = ErrorTypeResponse
		clientErr.StatusCode = httpResp.StatusCode
		return nil, clientErr
	}

	receivedAt := t.now()
	contentType, encoding := parseContentType(httpResp.Header.Get("Content-Type"))
	resp := &Response{
		RequestURL:  req.URL,
		StatusCode:  httpResp.StatusCode,
		ContentType: contentType,
		Encoding:    encoding,
		Header:      httpResp.Header.Clone(),
		Body:        data,
		CreatedAt:   receivedAt,
	}
	if expiresAt, ok := responseExpiry(httpResp.Header, receivedAt); ok {
		resp.ExpiresAt = expiresAt
	}

	return resp, nil
}

func (t *HTTPTransport) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(t.middleware) == 0 {
		return t.httpClient.Do(req)
	}

	current := RoundTripperFunc(t.httpClient.Do)

	for i := len(t.middleware) - 1; i >= 0; i-- {
		middleware := t.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// parseContentType splits a Content-Type header into media type and charset,
// applying the defaults for missing parts.
func parseContentType(header string) (string, string) {
	if header == "" {
		return DefaultContentType, DefaultEncoding
	}

	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType, _, _ = strings.Cut(header, ";")
		mediaType = strings.TrimSpace(mediaType)
		if mediaType == "" {
			mediaType = DefaultContentType
		}
		return mediaType, DefaultEncoding
	}

	encoding := params["charset"]
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return mediaType, encoding
}

func transportError(req *TransportRequest, message string, cause error, duration time.Duration) *ClientError {
	errorType := ErrorTypeNetwork
	if isTimeoutCause(cause) {
		errorType = ErrorTypeTimeout
		message = fmt.Sprintf("request timed out after %v", duration.Round(time.Millisecond))
	}

	return &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		Method:    string(req.Method),
		URL:       req.URL,
		Endpoint:  endpointOf(req.URL),
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

// endpointOf reduces a URL to host and path for metric labels.
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
