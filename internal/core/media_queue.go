package core

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PendingMedia is the bookkeeping recorded while an outbound media send
// waits for the server to allocate (or reuse) an upload slot, per the
// two-phase flow in §4.4.
type PendingMedia struct {
	Filepath string
	Filesize int64
	To       string
	Caption  string
	MimeType string
}

// MediaRequestQueue tracks outbound media uploads awaiting a server
// response, keyed by the IQ id of the upload-slot request.
type MediaRequestQueue struct {
	mu      sync.Mutex
	pending map[string]PendingMedia
}

// NewMediaRequestQueue creates an empty queue.
func NewMediaRequestQueue() *MediaRequestQueue {
	return &MediaRequestQueue{pending: make(map[string]PendingMedia)}
}

// Add records a pending media send under the given IQ id.
func (q *MediaRequestQueue) Add(id string, media PendingMedia) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[id] = media
}

// Take removes and returns the pending media recorded under id, if any.
func (q *MediaRequestQueue) Take(id string) (PendingMedia, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.pending[id]
	if ok {
		delete(q.pending, id)
	}
	return m, ok
}

// Len reports the number of pending media uploads.
func (q *MediaRequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain re-submits every still-pending media upload concurrently via resend
// after a reconnect: the original upload-slot request's id died with the
// old connection, so each one needs a fresh request rather than a retry of
// the dead id. Returns the first resend error, if any.
func (q *MediaRequestQueue) Drain(ctx context.Context, resend func(context.Context, PendingMedia) error) error {
	q.mu.Lock()
	pending := q.pending
	q.pending = make(map[string]PendingMedia)
	q.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, media := range pending {
		media := media
		g.Go(func() error {
			return resend(gctx, media)
		})
	}
	return g.Wait()
}
