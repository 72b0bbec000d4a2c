package wapi

import (
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned when a listener is registered. Keep it
// for as long as notifications are wanted.
type Subscription struct {
	cancelled atomic.Bool
}

// Unsubscribe stops further notifications. The registry drops the entry on its
// next notification pass. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.cancelled.Store(true)
}

// Active reports whether the subscription still receives notifications.
func (s *Subscription) Active() bool {
	return s != nil && !s.cancelled.Load()
}

type registration[L any] struct {
	listener L
	sub      *Subscription
}

// listenerRegistry holds subscribed listeners of one kind. The same listener
// may be subscribed several times and is then notified once per subscription.
type listenerRegistry[L any] struct {
	mu       sync.Mutex
	entries  []registration[L]
	dispatch Dispatcher
}

func newListenerRegistry[L any](dispatch Dispatcher) *listenerRegistry[L] {
	return &listenerRegistry[L]{dispatch: dispatch}
}

func (r *listenerRegistry[L]) subscribe(listener L) *Subscription {
	sub := &Subscription{}

	r.mu.Lock()
	r.entries = append(r.entries, registration[L]{listener: listener, sub: sub})
	r.mu.Unlock()

	return sub
}

// notify invokes call for every active listener and prunes cancelled ones.
// Callbacks run without the registry lock held, so they may subscribe or start
// new requests.
func (r *listenerRegistry[L]) notify(call func(L)) int {
	r.mu.Lock()
	live := r.entries[:0:0]
	for _, entry := range r.entries {
		if entry.sub.Active() {
			live = append(live, entry)
		}
	}
	r.entries = live
	snapshot := make([]registration[L], len(live))
	copy(snapshot, live)
	dispatch := r.dispatch
	r.mu.Unlock()

	for _, entry := range snapshot {
		listener := entry.listener
		if dispatch != nil {
			dispatch(func() { call(listener) })
		} else {
			call(listener)
		}
	}
	return len(snapshot)
}

func (r *listenerRegistry[L]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
