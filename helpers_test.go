package wapi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 5 * time.Second

// fakeTransport records every exchange and answers with respond, or with a
// 200 "ok" response when respond is nil. A non-nil gate holds every exchange
// until it is closed.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*TransportRequest
	timeouts []time.Duration
	calls    atomic.Int32
	gate     chan struct{}
	respond  func(req *TransportRequest) (*Response, error)
}

func (f *fakeTransport) Execute(ctx context.Context, req *TransportRequest, timeout time.Duration) (*Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.respond != nil {
		return f.respond(req)
	}
	return &Response{RequestURL: req.URL, StatusCode: 200, Body: []byte("ok"), CreatedAt: time.Now()}, nil
}

func (f *fakeTransport) lastRequest() *TransportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// resolvedRecorder is a RequestListener that forwards every resolution.
type resolvedRecorder struct {
	count    atomic.Int32
	resolved chan Request
}

func newResolvedRecorder() *resolvedRecorder {
	return &resolvedRecorder{resolved: make(chan Request, 64)}
}

func (r *resolvedRecorder) OnRequestResolved(req Request) {
	r.count.Add(1)
	r.resolved <- req
}

func (r *resolvedRecorder) next(t *testing.T) Request {
	t.Helper()

	select {
	case req := <-r.resolved:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a resolved request")
		return nil
	}
}

// recordingLogger keeps formatted log lines per level.
type recordingLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{lines: make(map[string][]string)}
}

func (l *recordingLogger) record(level, msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines[level] = append(l.lines[level], fmt.Sprint(append([]any{msg}, keysAndValues...)...))
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record("debug", msg, kv...) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record("info", msg, kv...) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record("warn", msg, kv...) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record("error", msg, kv...) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.lines[level])
}

func closeClient(t *testing.T, c *Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
}
