package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nimda/waxmpp/internal/interfaces"
)

// fakeMediaSender implements the unexported mediaSender interface by being
// in the same package; it fails every job whose To field is "bad".
type fakeMediaSender struct {
	mu   sync.Mutex
	sent []MediaUploadJob
}

func (f *fakeMediaSender) SendMediaJob(ctx context.Context, job MediaUploadJob) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, job)
	f.mu.Unlock()
	if job.To == "bad" {
		return "", fmt.Errorf("upload rejected")
	}
	return "msg-" + job.To, nil
}

func drainResults(p *MediaUploadPool) []MediaUploadResult {
	var out []MediaUploadResult
	for r := range p.Results() {
		out = append(out, r)
	}
	return out
}

func TestMediaUploadPoolRunsEveryJob(t *testing.T) {
	sender := &fakeMediaSender{}
	jobs := []MediaUploadJob{
		{To: "alice", Path: "/tmp/a.jpg", MimeType: "image/jpeg"},
		{To: "bob", Path: "/tmp/b.jpg", MimeType: "image/jpeg"},
		{To: "carol", Path: "/tmp/c.jpg", MimeType: "image/jpeg"},
	}
	pool := NewMediaUploadPool(2, 0, sender, interfaces.NoopMetrics{})
	if err := pool.Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	results := drainResults(pool)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for _, r := range results {
		if !r.Success || r.MessageID == "" {
			t.Fatalf("expected successful result, got %+v", r)
		}
	}
}

func TestMediaUploadPoolRejectsEmptyJobSet(t *testing.T) {
	pool := NewMediaUploadPool(1, 0, &fakeMediaSender{}, nil)
	if err := pool.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for an empty job list")
	}
}

func TestMediaUploadPoolTripsBreakerOnConsecutiveErrors(t *testing.T) {
	sender := &fakeMediaSender{}
	jobs := make([]MediaUploadJob, 0, 10)
	for i := 0; i < 10; i++ {
		jobs = append(jobs, MediaUploadJob{To: "bad", Path: "/tmp/x.jpg", MimeType: "image/jpeg"})
	}
	pool := NewMediaUploadPool(1, 0, sender, interfaces.NoopMetrics{})
	if err := pool.Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	done := make(chan struct{})
	var results []MediaUploadResult
	go func() {
		results = drainResults(pool)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not complete within timeout; breaker likely did not trip")
	}

	if len(results) >= len(jobs) {
		t.Fatalf("expected breaker to stop before exhausting all %d jobs, got %d results", len(jobs), len(results))
	}
	for _, r := range results {
		if r.Success {
			t.Fatal("expected every attempted job to fail")
		}
	}
}
