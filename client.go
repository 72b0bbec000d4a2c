package wapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds a network exchange unless WithTimeout or SetTimeout
// says otherwise.
const DefaultTimeout = 15 * time.Second

// Client turns Request values into HTTP exchanges against one API. It serves
// cached responses, drops requests whose identical twin is already in flight,
// runs exchanges on their own goroutines and notifies listeners when requests
// resolve. It is safe for concurrent use.
//
// A request dropped as a duplicate receives no callback at all; only the
// exchange already in flight resolves, and listeners hear about that one.
type Client struct {
	baseURL string

	mu               sync.RWMutex
	persistentParams *Params
	timeout          time.Duration
	cacheEnabled     bool
	allowDuplicates  bool

	cacheCapacity   int
	maxConcurrency  int
	httpClient      *http.Client
	transport       Transport
	customTransport bool
	middleware      []Middleware
	dispatcher      Dispatcher

	tracker          *OpenRequestTracker
	cache            *ResponseCache
	requestListeners *listenerRegistry[RequestListener]
	contentListeners *listenerRegistry[ContentListener]
	slots            *semaphore.Weighted

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	lifecycle sync.RWMutex
	closed    bool
	inflight  sync.WaitGroup

	validationError error
}

// New constructs a Client for baseURL using the provided functional options.
// Configuration problems do not panic; they are reported by IsValid and
// ValidationError and make StartRequest fail.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL:          baseURL,
		persistentParams: NewParams(),
		timeout:          DefaultTimeout,
		cacheEnabled:     false,
		allowDuplicates:  false,
		cacheCapacity:    DefaultCacheCapacity,
		httpClient:       &http.Client{},
		middleware:       []Middleware{},
		debug:            DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	client.tracker = NewOpenRequestTracker()
	client.cache = NewResponseCache(client.cacheCapacity)
	client.requestListeners = newListenerRegistry[RequestListener](client.dispatcher)
	client.contentListeners = newListenerRegistry[ContentListener](client.dispatcher)
	if client.maxConcurrency > 0 {
		client.slots = semaphore.NewWeighted(int64(client.maxConcurrency))
	}
	if !client.customTransport && client.httpClient != nil {
		client.transport = NewHTTPTransport(client.httpClient, client.middleware...)
	}

	return client
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetPersistentURLParameter adds or replaces a parameter sent with every
// request. Request parameters with the same name win.
func (c *Client) SetPersistentURLParameter(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.persistentParams.Clone()
	next.Set(name, value)
	c.persistentParams = next
}

// RemovePersistentURLParameter removes a persistent parameter.
func (c *Client) RemovePersistentURLParameter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.persistentParams.Clone()
	next.Remove(name)
	c.persistentParams = next
}

// PersistentURLParameters returns a copy of the persistent parameters.
func (c *Client) PersistentURLParameters() *Params {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.persistentParams.Clone()
}

// SetTimeout changes the bound on exchanges started from now on. A
// non-positive value restores DefaultTimeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}

	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Timeout returns the current exchange bound.
func (c *Client) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.timeout
}

// SetCacheEnabled switches the response cache. Disabling it drops every
// cached response, including any a completing request was about to store.
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	if !enabled {
		c.cache.Clear()
	}
	c.mu.Unlock()

	if !enabled {
		c.metrics.RecordCacheSize(0)
		if c.debugEnabled(debugCache) {
			c.logger.Debug("Cache disabled and cleared")
		}
	}
}

// CacheEnabled reports whether the response cache is in use.
func (c *Client) CacheEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cacheEnabled
}

// SetAllowDuplicates switches duplicate suppression off (true) or on (false).
func (c *Client) SetAllowDuplicates(allow bool) {
	c.mu.Lock()
	c.allowDuplicates = allow
	c.mu.Unlock()
}

// AllowDuplicates reports whether overlapping identical requests all run.
func (c *Client) AllowDuplicates() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.allowDuplicates
}

// StartListening subscribes listener to request resolutions. Keep the
// returned Subscription and call Unsubscribe to stop. Subscribing the same
// listener twice yields two notifications per event.
func (c *Client) StartListening(listener RequestListener) *Subscription {
	if listener == nil {
		return nil
	}
	return c.requestListeners.subscribe(listener)
}

// StartListeningContent subscribes listener to content invalidations.
func (c *Client) StartListeningContent(listener ContentListener) *Subscription {
	if listener == nil {
		return nil
	}
	return c.contentListeners.subscribe(listener)
}

// Prepare converts req into the transport request StartRequest would send.
func (c *Client) Prepare(req Request) (*TransportRequest, error) {
	if err := c.checkReady(req); err != nil {
		return nil, err
	}
	return c.prepare(req), nil
}

// StartRequest resolves req from the cache or starts its network exchange and
// reports which path was taken:
//
//   - RequestCacheHit: Complete and the listeners already ran on this goroutine.
//   - RequestDeduplicated: an identical exchange is in flight; req gets no callback.
//   - RequestInFlight: the exchange runs on its own goroutine and ends in exactly
//     one of Complete or Fail, followed by the listeners.
//
// An error means the request was not started and no callback will follow.
func (c *Client) StartRequest(req Request) (RequestState, error) {
	if err := c.checkReady(req); err != nil {
		return RequestCreated, err
	}

	treq := c.prepare(req)
	id := treq.ResourceIdentity()
	contentName := req.ContentName()
	endpoint := endpointOf(treq.URL)
	requestID := c.newRequestID()

	c.mu.RLock()
	timeout := c.timeout
	cacheEnabled := c.cacheEnabled
	allowDuplicates := c.allowDuplicates
	c.mu.RUnlock()

	if c.debugEnabled(debugRequests) {
		c.logger.Debug("Starting request", "requestID", requestID, "method", treq.Method, "url", treq.URL, "digest", treq.Digest())
	}

	if cacheEnabled && contentName != "" {
		if resp, found := c.cache.Lookup(contentName, id); found {
			c.metrics.RecordCacheHit(contentName)
			if c.debugEnabled(debugCache) {
				c.logger.Debug("Cache hit", "requestID", requestID, "content", contentName, "digest", treq.Digest())
			}

			req.Complete(resp)
			c.notifyResolved(req, requestID)
			return RequestCacheHit, nil
		}

		c.metrics.RecordCacheMiss(contentName)
		if c.debugEnabled(debugCache) {
			c.logger.Debug("Cache miss", "requestID", requestID, "content", contentName, "digest", treq.Digest())
		}
	}

	if allowDuplicates {
		c.tracker.MarkOpen(id)
	} else if !c.tracker.TryMarkOpen(id) {
		c.metrics.RecordDeduplicationDrop(string(treq.Method), endpoint)
		if c.debugEnabled(debugDedup) {
			c.logger.Debug("Duplicate request dropped", "requestID", requestID, "digest", treq.Digest())
		}
		return RequestDeduplicated, nil
	}

	c.lifecycle.RLock()
	if c.closed {
		c.lifecycle.RUnlock()
		c.tracker.MarkClosed(id)
		return RequestCreated, ErrClosed
	}
	c.inflight.Add(1)
	c.lifecycle.RUnlock()

	go c.execute(req, treq, id, contentName, requestID, timeout)

	return RequestInFlight, nil
}

// execute runs one exchange and resolves req. The identity is closed before
// listeners are notified so a listener may restart the same request.
func (c *Client) execute(req Request, treq *TransportRequest, id, contentName, requestID string, timeout time.Duration) {
	defer c.inflight.Done()

	method := string(treq.Method)
	endpoint := endpointOf(treq.URL)
	start := time.Now()

	resp, err := c.exchange(treq, timeout)
	duration := time.Since(start)

	if err != nil {
		clientErr := asClientError(err, treq, requestID, duration)
		c.metrics.RecordRequest(method, endpoint, 0, duration)
		c.metrics.RecordError(clientErr.Type, method, endpoint)
		if c.logger != nil {
			c.logger.Warn("Request failed", "requestID", requestID, "url", treq.URL, "error", clientErr)
		}

		req.Fail(clientErr)
		c.tracker.MarkClosed(id)
		c.notifyResolved(req, requestID)
		return
	}

	c.metrics.RecordRequest(method, endpoint, resp.StatusCode, duration)
	if c.debugEnabled(debugRequests) {
		c.logger.Debug("Request completed", "requestID", requestID, "statusCode", resp.StatusCode, "duration", duration)
	}

	req.Complete(resp)

	if ttl := req.CacheTime(); contentName != "" && c.storeResponse(contentName, id, resp, ttl) {
		c.metrics.RecordCacheStore(contentName)
		c.metrics.RecordCacheSize(c.cache.Len())
		if c.debugEnabled(debugCache) {
			c.logger.Debug("Response cached", "requestID", requestID, "content", contentName, "ttl", ttl)
		}
	}

	c.tracker.MarkClosed(id)
	c.notifyResolved(req, requestID)
}

// storeResponse caches resp unless ttl is not positive or the cache is
// disabled. The enabled check and the write happen under c.mu so a concurrent
// SetCacheEnabled(false) cannot be undone by a late store.
func (c *Client) storeResponse(contentName, id string, resp *Response, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.cacheEnabled {
		return false
	}
	c.cache.Store(contentName, id, resp, ttl)
	return true
}

func (c *Client) exchange(treq *TransportRequest, timeout time.Duration) (*Response, error) {
	ctx := context.Background()
	if c.slots != nil {
		if err := c.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.slots.Release(1)
	}

	method := string(treq.Method)
	endpoint := endpointOf(treq.URL)
	c.metrics.RecordRequestStart(method, endpoint)
	defer c.metrics.RecordRequestEnd(method, endpoint)

	resp, err := c.transport.Execute(ctx, treq, timeout)
	if err == nil && resp == nil {
		err = errors.New("transport returned no response")
	}
	return resp, err
}

// InvalidateContent drops every cached response stored under contentName and
// notifies the content listeners once, whether or not anything was cached.
func (c *Client) InvalidateContent(contentName string) {
	removed := c.cache.Invalidate(contentName)
	c.metrics.RecordCacheInvalidation(contentName)
	c.metrics.RecordCacheSize(c.cache.Len())
	if c.debugEnabled(debugCache) {
		c.logger.Debug("Content invalidated", "content", contentName, "removed", removed)
	}

	c.notifyContentInvalidated(contentName)
}

// InvalidateContentMatching invalidates every cached content name matching the
// glob pattern and returns the matched names. Each match is notified once.
func (c *Client) InvalidateContentMatching(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "invalid content pattern " + pattern,
			Cause:     err,
			Timestamp: time.Now(),
		}
	}

	matched := c.cache.InvalidateMatching(g)
	c.metrics.RecordCacheSize(c.cache.Len())
	for _, name := range matched {
		c.metrics.RecordCacheInvalidation(name)
		c.notifyContentInvalidated(name)
	}
	return matched, nil
}

// OpenRequests returns the number of distinct identities in flight.
func (c *Client) OpenRequests() int {
	return c.tracker.Len()
}

// CachedResponses returns the number of cached responses, including expired
// ones not purged yet.
func (c *Client) CachedResponses() int {
	return c.cache.Len()
}

// Close stops accepting requests and waits until every exchange in flight has
// resolved or ctx is done.
func (c *Client) Close(ctx context.Context) error {
	c.lifecycle.Lock()
	c.closed = true
	c.lifecycle.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) checkReady(req Request) error {
	if c == nil || c.baseURL == "" {
		return &ClientError{
			Type:      ErrorTypeNotInitialized,
			Message:   "client has no base URL",
			Cause:     ErrNotInitialized,
			Timestamp: time.Now(),
		}
	}
	if c.validationError != nil {
		return c.validationError
	}
	if req == nil {
		return ErrNilRequest
	}

	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// prepare builds the transport request for req against the current persistent
// parameters.
func (c *Client) prepare(req Request) *TransportRequest {
	c.mu.RLock()
	params := c.persistentParams.Merge(req.URLParameters())
	c.mu.RUnlock()

	method := req.Method()
	if method == "" {
		method = MethodGet
	}

	fullURL, fellBack := buildURL(c.baseURL, req.Path(), params.QueryString())
	if fellBack && c.logger != nil {
		c.logger.Warn("Malformed request URL, falling back to base URL", "base", c.baseURL, "path", req.Path())
	}

	return &TransportRequest{
		Method: method,
		URL:    fullURL,
		Body:   req.BodyParameters().QueryString(),
	}
}

func (c *Client) notifyResolved(req Request, requestID string) {
	n := c.requestListeners.notify(func(l RequestListener) {
		l.OnRequestResolved(req)
	})
	c.metrics.RecordListenerNotifications("request", n)
	if c.debugEnabled(debugListeners) {
		c.logger.Debug("Listeners notified", "requestID", requestID, "listeners", n)
	}
}

func (c *Client) notifyContentInvalidated(contentName string) {
	n := c.contentListeners.notify(func(l ContentListener) {
		l.OnContentInvalidated(contentName)
	})
	c.metrics.RecordListenerNotifications("content", n)
	if c.debugEnabled(debugListeners) {
		c.logger.Debug("Content listeners notified", "content", contentName, "listeners", n)
	}
}

type debugCategory int

const (
	debugRequests debugCategory = iota
	debugCache
	debugDedup
	debugListeners
)

func (c *Client) debugEnabled(category debugCategory) bool {
	if c.debug == nil || !c.debug.Enabled || c.logger == nil {
		return false
	}

	switch category {
	case debugRequests:
		return c.debug.LogRequests
	case debugCache:
		return c.debug.LogCache
	case debugDedup:
		return c.debug.LogDedup
	case debugListeners:
		return c.debug.LogListeners
	default:
		return false
	}
}

func (c *Client) newRequestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

// asClientError attaches request context to a transport error.
func asClientError(err error, treq *TransportRequest, requestID string, duration time.Duration) *ClientError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		out := *clientErr
		if out.RequestID == "" {
			out.RequestID = requestID
		}
		if out.Duration == 0 {
			out.Duration = duration
		}
		return &out
	}

	wrapped := transportError(treq, "network request failed", err, duration)
	wrapped.RequestID = requestID
	return wrapped
}
