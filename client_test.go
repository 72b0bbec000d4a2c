package wapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://api.test/"

func TestNew(t *testing.T) {
	client := New(testBaseURL)

	require.NotNil(t, client)
	assert.True(t, client.IsValid())
	assert.NoError(t, client.ValidationError())
	assert.Equal(t, DefaultTimeout, client.Timeout())
	assert.Equal(t, 15*time.Second, client.Timeout())
	assert.False(t, client.CacheEnabled())
	assert.False(t, client.AllowDuplicates())
	assert.Equal(t, testBaseURL, client.BaseURL())
	assert.IsType(t, &HTTPTransport{}, client.transport)
}

func TestStartRequestWithoutBaseURL(t *testing.T) {
	client := New("")

	assert.False(t, client.IsValid())

	req := NewSimpleRequest("items")
	state, err := client.StartRequest(req)
	require.Error(t, err)
	assert.Equal(t, RequestCreated, state)
	assert.ErrorIs(t, err, ErrNotInitialized)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, ErrorTypeNotInitialized, clientErr.Type)
	assert.False(t, req.IsResolved())
}

func TestStartRequestOnNilClient(t *testing.T) {
	var client *Client

	_, err := client.StartRequest(NewSimpleRequest("items"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStartRequestNilRequest(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}))

	_, err := client.StartRequest(nil)
	assert.ErrorIs(t, err, ErrNilRequest)
}

func TestStartRequestInvalidConfiguration(t *testing.T) {
	client := New(testBaseURL, WithTimeout(-time.Second))

	_, err := client.StartRequest(NewSimpleRequest("items"))
	require.Error(t, err)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, ErrorTypeValidation, clientErr.Type)
}

func TestResourceIdentityIgnoresParameterOrder(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithPersistentURLParameter("key", "k1"))

	first := &SimpleRequest{Endpoint: "items", Query: NewParams().Set("a", "1").Set("b", "2")}
	second := &SimpleRequest{Endpoint: "items", Query: NewParams().Set("b", "2").Set("a", "1")}

	t1, err := client.Prepare(first)
	require.NoError(t, err)
	t2, err := client.Prepare(second)
	require.NoError(t, err)

	assert.Equal(t, t1.ResourceIdentity(), t2.ResourceIdentity())
	assert.Equal(t, "http://api.test/items?a=1&b=2&key=k1", t1.URL)
	assert.Equal(t, MethodGet, t1.Method)
}

func TestPrepareRequestParametersWin(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}))
	client.SetPersistentURLParameter("lang", "en")
	client.SetPersistentURLParameter("key", "secret")

	req := &SimpleRequest{
		Endpoint: "search",
		Verb:     MethodPost,
		Query:    NewParams().Set("lang", "nl"),
		Form:     NewParams().Set("name", "a b").Set("age", "3"),
	}

	treq, err := client.Prepare(req)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/search?key=secret&lang=nl", treq.URL)
	assert.Equal(t, MethodPost, treq.Method)
	assert.Equal(t, "age=3&name=a%20b", treq.Body)

	client.RemovePersistentURLParameter("key")
	treq, err = client.Prepare(req)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/search?lang=nl", treq.URL)
	assert.False(t, client.PersistentURLParameters().Has("key"))
}

func TestPrepareMalformedPathFallsBack(t *testing.T) {
	logger := newRecordingLogger()
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithLogger(logger))

	req := &SimpleRequest{Endpoint: "%zz", Query: NewParams().Set("q", "x")}
	treq, err := client.Prepare(req)
	require.NoError(t, err)

	assert.Equal(t, "http://api.test/?q=x", treq.URL)
	assert.Equal(t, 1, logger.count("warn"))
}

func TestNotFoundCompletesRequest(t *testing.T) {
	seen := make(chan *url.URL, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such item"))
	}))
	defer server.Close()

	client := New(server.URL + "/")
	req := &SimpleRequest{Endpoint: "items", Query: NewParams().Set("q", "a b")}

	state, err := client.StartRequest(req)
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, req.Wait(ctx))

	got := <-seen
	assert.Equal(t, "/items", got.Path)
	assert.Equal(t, "q=a%20b", got.RawQuery)
	assert.True(t, req.HasSucceeded())
	assert.False(t, req.HasFailed())
	assert.Equal(t, http.StatusNotFound, req.Response().StatusCode)
	assert.Equal(t, "no such item", req.Response().Text())

	closeClient(t, client)
	assert.Equal(t, 0, client.OpenRequests())
}

func TestScenarioURLWithFakeTransport(t *testing.T) {
	transport := &fakeTransport{
		respond: func(req *TransportRequest) (*Response, error) {
			return &Response{RequestURL: req.URL, StatusCode: http.StatusNotFound}, nil
		},
	}
	client := New(testBaseURL, WithTransport(transport))
	req := &SimpleRequest{Endpoint: "items", Query: NewParams().Set("q", "a b")}

	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	assert.Equal(t, "http://api.test/items?q=a%20b", transport.lastRequest().URL)
	assert.True(t, req.HasSucceeded())
	assert.Equal(t, 0, client.CachedResponses())
}

func TestDuplicateSuppression(t *testing.T) {
	transport := &fakeTransport{gate: make(chan struct{})}
	client := New(testBaseURL, WithTransport(transport))
	recorder := newResolvedRecorder()
	client.StartListening(recorder)

	first := NewSimpleRequest("items")
	second := NewSimpleRequest("items")

	state, err := client.StartRequest(first)
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state)
	assert.Equal(t, 1, client.OpenRequests())

	state, err = client.StartRequest(second)
	require.NoError(t, err)
	assert.Equal(t, RequestDeduplicated, state)

	close(transport.gate)
	closeClient(t, client)

	assert.Equal(t, int32(1), transport.calls.Load())
	assert.Equal(t, int32(1), recorder.count.Load())
	assert.True(t, first.IsResolved())
	assert.False(t, second.IsResolved(), "a dropped duplicate receives no callback")
	assert.Equal(t, 0, client.OpenRequests())
}

func TestAllowDuplicates(t *testing.T) {
	transport := &fakeTransport{gate: make(chan struct{})}
	client := New(testBaseURL, WithTransport(transport), WithAllowDuplicates(true))
	recorder := newResolvedRecorder()
	client.StartListening(recorder)

	first := NewSimpleRequest("items")
	second := NewSimpleRequest("items")

	state, err := client.StartRequest(first)
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state)

	state, err = client.StartRequest(second)
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state)

	close(transport.gate)
	closeClient(t, client)

	assert.Equal(t, int32(2), transport.calls.Load())
	assert.Equal(t, int32(2), recorder.count.Load())
	assert.True(t, first.IsResolved())
	assert.True(t, second.IsResolved())
	assert.Equal(t, 0, client.OpenRequests())
}

func TestSetAllowDuplicatesWhileInFlight(t *testing.T) {
	transport := &fakeTransport{gate: make(chan struct{})}
	client := New(testBaseURL, WithTransport(transport))

	client.SetAllowDuplicates(true)
	_, err := client.StartRequest(NewSimpleRequest("items"))
	require.NoError(t, err)
	_, err = client.StartRequest(NewSimpleRequest("items"))
	require.NoError(t, err)

	client.SetAllowDuplicates(false)
	state, err := client.StartRequest(NewSimpleRequest("items"))
	require.NoError(t, err)
	assert.Equal(t, RequestDeduplicated, state)

	close(transport.gate)
	closeClient(t, client)
	assert.Equal(t, 0, client.OpenRequests())
	assert.Equal(t, int32(2), transport.calls.Load())
}

func TestTimeoutFailsRequest(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL+"/", WithCache())
	client.SetTimeout(50 * time.Millisecond)
	recorder := newResolvedRecorder()
	client.StartListening(recorder)

	req := &SimpleRequest{Endpoint: "slow", Content: "list", TTL: time.Minute}
	_, err := client.StartRequest(req)
	require.NoError(t, err)

	resolved := recorder.next(t)
	assert.Same(t, req, resolved)

	assert.True(t, req.HasFailed())
	assert.False(t, req.HasSucceeded())
	assert.Nil(t, req.Response())
	assert.True(t, IsTimeout(req.Err()))
	assert.True(t, IsTransient(req.Err()))

	closeClient(t, client)
	assert.Equal(t, 0, client.OpenRequests())
	assert.Equal(t, 0, client.CachedResponses())
}

func TestTransportErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	transport := &fakeTransport{
		respond: func(*TransportRequest) (*Response, error) { return nil, boom },
	}
	client := New(testBaseURL, WithTransport(transport), WithCache())

	req := &SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	require.True(t, req.HasFailed())
	var clientErr *ClientError
	require.ErrorAs(t, req.Err(), &clientErr)
	assert.Equal(t, ErrorTypeNetwork, clientErr.Type)
	assert.Equal(t, "http://api.test/items", clientErr.URL)
	assert.ErrorIs(t, req.Err(), boom)
	assert.Equal(t, 0, client.CachedResponses())
}

func TestOversizedBodyFailsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("more than four bytes"))
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	transport.maxBodySize = 4
	client := New(server.URL+"/", WithTransport(transport), WithCache())

	req := &SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	require.True(t, req.HasFailed(), "a truncated body must not complete the request")
	assert.Nil(t, req.Response())
	assert.ErrorIs(t, req.Err(), ErrBodyTooLarge)
	assert.Equal(t, 0, client.CachedResponses())
	assert.Equal(t, 0, client.OpenRequests())
}

func TestCacheHitSkipsTransport(t *testing.T) {
	transport := &fakeTransport{}
	client := New(testBaseURL, WithTransport(transport), WithCache())
	recorder := newResolvedRecorder()
	client.StartListening(recorder)

	first := &SimpleRequest{Endpoint: "items", Content: "list", TTL: 60 * time.Second}
	state, err := client.StartRequest(first)
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state)
	recorder.next(t)

	assert.Equal(t, 1, client.CachedResponses())

	second := &SimpleRequest{Endpoint: "items", Content: "list", TTL: 60 * time.Second}
	state, err = client.StartRequest(second)
	require.NoError(t, err)
	assert.Equal(t, RequestCacheHit, state)

	assert.True(t, second.IsResolved(), "cache hits complete before StartRequest returns")
	assert.Same(t, first.Response(), second.Response())
	assert.Same(t, second, recorder.next(t))
	assert.Equal(t, int32(1), transport.calls.Load())
	assert.Equal(t, 0, client.OpenRequests())

	closeClient(t, client)
}

func TestCacheRequiresContentNameAndTime(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ttl     time.Duration
	}{
		{"no content name", "", time.Minute},
		{"zero cache time", "list", 0},
		{"negative cache time", "list", -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{}
			client := New(testBaseURL, WithTransport(transport), WithCache())
			recorder := newResolvedRecorder()
			client.StartListening(recorder)

			for i := 0; i < 2; i++ {
				req := &SimpleRequest{Endpoint: "items", Content: tt.content, TTL: tt.ttl}
				state, err := client.StartRequest(req)
				require.NoError(t, err)
				assert.Equal(t, RequestInFlight, state)
				recorder.next(t)
			}
			closeClient(t, client)

			assert.Equal(t, int32(2), transport.calls.Load())
			assert.Equal(t, 0, client.CachedResponses())
		})
	}
}

func TestCacheDisabledNeverStores(t *testing.T) {
	transport := &fakeTransport{}
	client := New(testBaseURL, WithTransport(transport))

	req := &SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	assert.Equal(t, 0, client.CachedResponses())
}

func TestCacheTimeReadAfterComplete(t *testing.T) {
	transport := &fakeTransport{
		respond: func(req *TransportRequest) (*Response, error) {
			return &Response{RequestURL: req.URL, StatusCode: http.StatusNotFound}, nil
		},
	}
	client := New(testBaseURL, WithTransport(transport), WithCache())

	req := &statusAwareRequest{SimpleRequest: SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute}}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	assert.True(t, req.sawResponse.Load(), "CacheTime must be asked after Complete")
	assert.Equal(t, 0, client.CachedResponses())
}

// statusAwareRequest only caches successful responses.
type statusAwareRequest struct {
	SimpleRequest
	sawResponse atomic.Bool
}

func (r *statusAwareRequest) CacheTime() time.Duration {
	resp := r.Response()
	r.sawResponse.Store(resp != nil)
	if resp == nil || resp.Class() != StatusSuccess {
		return 0
	}
	return r.TTL
}

func TestSetCacheEnabledFalseClears(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithCache())
	client.cache.Store("list", "id", &Response{StatusCode: 200}, time.Minute)
	require.Equal(t, 1, client.CachedResponses())

	client.SetCacheEnabled(false)

	assert.False(t, client.CacheEnabled())
	assert.Equal(t, 0, client.CachedResponses())
}

// cacheDisablingRequest switches the client's cache off while its response is
// being considered for caching.
type cacheDisablingRequest struct {
	SimpleRequest
	client *Client
}

func (r *cacheDisablingRequest) CacheTime() time.Duration {
	r.client.SetCacheEnabled(false)
	return r.TTL
}

func TestCacheDisabledDuringCompletionStoresNothing(t *testing.T) {
	transport := &fakeTransport{}
	client := New(testBaseURL, WithTransport(transport), WithCache())
	recorder := newResolvedRecorder()
	client.StartListening(recorder)

	req := &cacheDisablingRequest{
		SimpleRequest: SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute},
		client:        client,
	}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	recorder.next(t)

	assert.False(t, client.CacheEnabled())
	assert.Equal(t, 0, client.CachedResponses(), "a disabled cache must stay empty")

	client.SetCacheEnabled(true)
	state, err := client.StartRequest(&SimpleRequest{Endpoint: "items", Content: "list", TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, RequestInFlight, state, "no stale entry may be served after re-enabling")
	recorder.next(t)

	closeClient(t, client)
	assert.EqualValues(t, 2, transport.calls.Load())
}

func TestInvalidateContent(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithCache())
	client.cache.Store("users", "a", &Response{StatusCode: 200}, time.Minute)
	client.cache.Store("users", "b", &Response{StatusCode: 200}, time.Minute)
	client.cache.Store("items", "a", &Response{StatusCode: 200}, time.Minute)

	var mu sync.Mutex
	var first, second []string
	client.StartListeningContent(ContentListenerFunc(func(name string) {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, name)
	}))
	client.StartListeningContent(ContentListenerFunc(func(name string) {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, name)
	}))

	client.InvalidateContent("users")

	assert.Equal(t, []string{"users"}, first)
	assert.Equal(t, []string{"users"}, second)
	assert.Equal(t, 1, client.CachedResponses())
	assert.Equal(t, []string{"items"}, client.cache.ContentNames())
}

func TestInvalidateContentMatching(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithCache())
	client.cache.Store("user.list", "a", &Response{StatusCode: 200}, time.Minute)
	client.cache.Store("user.detail", "b", &Response{StatusCode: 200}, time.Minute)
	client.cache.Store("items", "c", &Response{StatusCode: 200}, time.Minute)

	var notified []string
	client.StartListeningContent(ContentListenerFunc(func(name string) {
		notified = append(notified, name)
	}))

	matched, err := client.InvalidateContentMatching("user.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.detail", "user.list"}, matched)
	assert.ElementsMatch(t, matched, notified)
	assert.Equal(t, 1, client.CachedResponses())

	_, err = client.InvalidateContentMatching("[")
	require.Error(t, err)
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, ErrorTypeValidation, clientErr.Type)
}

func TestListenerMayRestartSameRequest(t *testing.T) {
	transport := &fakeTransport{}
	client := New(testBaseURL, WithTransport(transport))

	restarted := make(chan RequestState, 1)
	var once sync.Once
	client.StartListening(RequestListenerFunc(func(req Request) {
		once.Do(func() {
			state, err := client.StartRequest(NewSimpleRequest("items"))
			if err != nil {
				t.Errorf("restart failed: %v", err)
			}
			restarted <- state
		})
	}))

	_, err := client.StartRequest(NewSimpleRequest("items"))
	require.NoError(t, err)

	select {
	case state := <-restarted:
		assert.Equal(t, RequestInFlight, state)
	case <-time.After(waitTimeout):
		t.Fatal("listener was not notified")
	}

	closeClient(t, client)
	assert.Equal(t, int32(2), transport.calls.Load())
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}))
	recorder := newResolvedRecorder()
	sub := client.StartListening(recorder)

	_, err := client.StartRequest(NewSimpleRequest("a"))
	require.NoError(t, err)
	recorder.next(t)

	sub.Unsubscribe()
	_, err = client.StartRequest(NewSimpleRequest("b"))
	require.NoError(t, err)
	closeClient(t, client)

	assert.Equal(t, int32(1), recorder.count.Load())
	assert.Equal(t, 0, client.requestListeners.len())
}

func TestSameListenerTwiceNotifiedTwice(t *testing.T) {
	client := New(testBaseURL, WithTransport(&fakeTransport{}))
	recorder := newResolvedRecorder()
	client.StartListening(recorder)
	client.StartListening(recorder)

	_, err := client.StartRequest(NewSimpleRequest("a"))
	require.NoError(t, err)
	closeClient(t, client)

	assert.Equal(t, int32(2), recorder.count.Load())
}

func TestDispatcherRunsCallbacks(t *testing.T) {
	var dispatched atomic.Int32
	dispatch := func(fn func()) {
		dispatched.Add(1)
		fn()
	}
	client := New(testBaseURL, WithTransport(&fakeTransport{}), WithDispatcher(dispatch))
	recorder := newResolvedRecorder()
	client.StartListening(recorder)
	client.StartListeningContent(ContentListenerFunc(func(string) {}))

	_, err := client.StartRequest(NewSimpleRequest("a"))
	require.NoError(t, err)
	closeClient(t, client)
	client.InvalidateContent("a")

	assert.Equal(t, int32(2), dispatched.Load())
	assert.Equal(t, int32(1), recorder.count.Load())
}

func TestMaxConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	gate := make(chan struct{})
	transport := &fakeTransport{
		respond: func(req *TransportRequest) (*Response, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-gate
			active.Add(-1)
			return &Response{RequestURL: req.URL, StatusCode: 200}, nil
		},
	}
	client := New(testBaseURL, WithTransport(transport), WithMaxConcurrency(1))

	for _, path := range []string{"a", "b", "c"} {
		_, err := client.StartRequest(NewSimpleRequest(path))
		require.NoError(t, err)
	}
	close(gate)
	closeClient(t, client)

	assert.Equal(t, int32(3), transport.calls.Load())
	assert.Equal(t, int32(1), peak.Load())
}

func TestTimeoutPassedToTransport(t *testing.T) {
	transport := &fakeTransport{}
	client := New(testBaseURL, WithTransport(transport), WithTimeout(3*time.Second))

	_, err := client.StartRequest(NewSimpleRequest("a"))
	require.NoError(t, err)
	client.SetTimeout(0)
	_, err = client.StartRequest(NewSimpleRequest("b"))
	require.NoError(t, err)
	closeClient(t, client)

	assert.ElementsMatch(t, []time.Duration{3 * time.Second, DefaultTimeout}, transport.timeouts)
}

func TestCloseRejectsNewRequests(t *testing.T) {
	transport := &fakeTransport{gate: make(chan struct{})}
	client := New(testBaseURL, WithTransport(transport))

	req := NewSimpleRequest("a")
	_, err := client.StartRequest(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Close(ctx), context.DeadlineExceeded)

	_, err = client.StartRequest(NewSimpleRequest("b"))
	assert.ErrorIs(t, err, ErrClosed)

	close(transport.gate)
	closeClient(t, client)
	assert.True(t, req.IsResolved())
}

func TestDebugLogging(t *testing.T) {
	logger := newRecordingLogger()
	var ids atomic.Int32
	client := New(testBaseURL,
		WithTransport(&fakeTransport{}),
		WithCache(),
		WithDebug(),
		WithLogger(logger),
		WithRequestIDGenerator(func() string {
			ids.Add(1)
			return "req"
		}),
	)
	require.True(t, client.IsValid())

	req := &SimpleRequest{Endpoint: "a", Content: "list", TTL: time.Minute}
	_, err := client.StartRequest(req)
	require.NoError(t, err)
	closeClient(t, client)

	assert.Equal(t, int32(1), ids.Load())
	assert.GreaterOrEqual(t, logger.count("debug"), 4)
}
