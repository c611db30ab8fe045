package core

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// RequestCallback is invoked exactly once when a tracked IQ request
// resolves, either with the matching result node or with a non-nil error
// (RequestError, or waerrors.Disconnected on disconnect()).
type RequestCallback func(result *Node, err error)

// RequestTracker holds in-flight IQ requests keyed by message id, resolving
// each to its completion callback when a matching inbound `iq` arrives.
// Duplicate concurrent requests for the same logical key (e.g. repeated
// last-seen lookups for one JID while the first is still in flight) are
// collapsed with singleflight so only one IQ hits the wire.
type RequestTracker struct {
	mu      sync.Mutex
	pending map[string]RequestCallback
	group   singleflight.Group
}

// NewRequestTracker creates an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{pending: make(map[string]RequestCallback)}
}

// Track registers cb to be called when id resolves.
func (t *RequestTracker) Track(id string, cb RequestCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = cb
}

// Resolve delivers result to the callback tracked under id, if any, and
// forgets it. Returns whether a callback was found.
func (t *RequestTracker) Resolve(id string, result *Node, err error) bool {
	t.mu.Lock()
	cb, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	cb(result, err)
	return true
}

// Cancel forgets a tracked request without invoking its callback (used
// when the caller abandons a request through some other path).
func (t *RequestTracker) Cancel(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// CancelAll resolves every pending request with err (used on disconnect).
func (t *RequestTracker) CancelAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]RequestCallback)
	t.mu.Unlock()
	for _, cb := range pending {
		cb(nil, err)
	}
}

// Len reports the number of in-flight requests.
func (t *RequestTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Dedupe collapses concurrent calls sharing the same key: the first caller
// runs fn and every caller (first and subsequent) receives its result.
// Used (through SessionStateMachine.DedupeIQ) to fold repeated last-seen
// lookups for one JID into a single in-flight IQ.
func (t *RequestTracker) Dedupe(key string, fn func() (*Node, error)) (*Node, error, bool) {
	v, err, shared := t.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if v == nil {
		return nil, err, shared
	}
	return v.(*Node), err, shared
}
