package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nimda/waxmpp/internal/interfaces"
)

func newTestSession(t *testing.T) *SessionStateMachine {
	t.Helper()
	cfg := interfaces.Apply(
		interfaces.WithCredentials("16505551234", []byte("pw")),
		interfaces.WithServer("127.0.0.1", 443),
		interfaces.WithChallengeFile(t.TempDir()+"/challenge"),
	)
	return NewSessionStateMachine(cfg, DefaultDictionary)
}

func TestNextMessageIdWithPrefixIsMonotonicAndPrefixed(t *testing.T) {
	s := newTestSession(t)
	first := s.NextMessageId("iq")
	second := s.NextMessageId("iq")
	if !strings.HasPrefix(first, "iq-") || !strings.HasPrefix(second, "iq-") {
		t.Fatalf("expected both ids to carry the prefix, got %q and %q", first, second)
	}
	if first == second {
		t.Fatal("expected successive ids to differ")
	}
}

func TestNextMessageIdWithoutPrefixFallsBackToUUID(t *testing.T) {
	s := newTestSession(t)
	id := s.NextMessageId("")
	if strings.Contains(id, "-") == false || len(id) < 32 {
		t.Fatalf("expected a UUID-shaped id, got %q", id)
	}
	another := s.NextMessageId("")
	if id == another {
		t.Fatal("expected successive no-prefix ids to differ")
	}
}

func TestBackoffWithJitterGrowsAndCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	first := backoffWithJitter(base, max, 0)
	if first < base {
		t.Fatalf("expected first backoff >= base, got %v", first)
	}

	late := backoffWithJitter(base, max, 20)
	// Even with jitter, the wait must not exceed max plus its own 20% jitter cap.
	if late > max+max/5+1 {
		t.Fatalf("expected backoff to cap near max (%v), got %v", max, late)
	}
}

func TestMediaResumeHandlerIsSettable(t *testing.T) {
	s := newTestSession(t)
	var captured PendingMedia
	s.SetMediaResumeHandler(func(ctx context.Context, pending PendingMedia) error {
		captured = pending
		return nil
	})
	if err := s.mediaResume(context.Background(), PendingMedia{To: "alice"}); err != nil {
		t.Fatalf("mediaResume: %v", err)
	}
	if captured.To != "alice" {
		t.Fatalf("expected handler to receive the pending media, got %+v", captured)
	}
}
