package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMediaRequestQueueAddTakeLen(t *testing.T) {
	q := NewMediaRequestQueue()
	q.Add("id-1", PendingMedia{To: "alice", Filepath: "/tmp/a.jpg"})
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}

	got, ok := q.Take("id-1")
	if !ok || got.To != "alice" {
		t.Fatalf("expected to find the pending media, got %+v (ok=%v)", got, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after Take, got %d", q.Len())
	}

	if _, ok := q.Take("id-1"); ok {
		t.Fatal("expected a second Take for the same id to find nothing")
	}
}

func TestMediaRequestQueueDrainResendsEveryPendingEntry(t *testing.T) {
	q := NewMediaRequestQueue()
	q.Add("id-1", PendingMedia{To: "alice"})
	q.Add("id-2", PendingMedia{To: "bob"})

	var mu sync.Mutex
	resent := make(map[string]bool)
	err := q.Drain(context.Background(), func(ctx context.Context, m PendingMedia) error {
		mu.Lock()
		resent[m.To] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !resent["alice"] || !resent["bob"] {
		t.Fatalf("expected both pending entries to be resent, got %v", resent)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue drained, got len %d", q.Len())
	}
}

func TestMediaRequestQueueDrainPropagatesFirstError(t *testing.T) {
	q := NewMediaRequestQueue()
	q.Add("id-1", PendingMedia{To: "alice"})

	wantErr := errors.New("resend failed")
	err := q.Drain(context.Background(), func(ctx context.Context, m PendingMedia) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected Drain to surface the resend error, got %v", err)
	}
}
