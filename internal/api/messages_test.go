package api

import (
	"strings"
	"testing"

	"github.com/nimda/waxmpp/internal/core"
	"github.com/nimda/waxmpp/internal/interfaces"
)

func newTestSurface(t *testing.T) *ApiSurface {
	t.Helper()
	cfg := interfaces.Apply(
		interfaces.WithCredentials("16505551234", []byte("pw")),
		interfaces.WithServer("127.0.0.1", 443),
		interfaces.WithChallengeFile(t.TempDir()+"/challenge"),
	)
	session := core.NewSessionStateMachine(cfg, core.DefaultDictionary)
	return NewApiSurface(session, nil, nil)
}

// Before login, ApiSurface's send methods buffer onto the session's
// SendQueue rather than touch the network, so these exercise the queuing
// path without a live connection.

func TestSendTextReturnsAssignedID(t *testing.T) {
	a := newTestSurface(t)
	id, err := a.SendText("16505559999@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if !strings.HasPrefix(id, "msg-") {
		t.Fatalf("expected id with msg- prefix, got %q", id)
	}
}

func TestSendLocationReturnsAssignedID(t *testing.T) {
	a := newTestSurface(t)
	id, err := a.SendLocation("16505559999@s.whatsapp.net", 37.77, -122.41, "HQ")
	if err != nil {
		t.Fatalf("SendLocation: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}
}

func TestSendVcardReturnsAssignedID(t *testing.T) {
	a := newTestSurface(t)
	id, err := a.SendVcard("16505559999@s.whatsapp.net", "Alice", []byte("BEGIN:VCARD"))
	if err != nil {
		t.Fatalf("SendVcard: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}
}

func TestSendComposingAndPausedSucceed(t *testing.T) {
	a := newTestSurface(t)
	if err := a.SendComposing("16505559999@s.whatsapp.net"); err != nil {
		t.Fatalf("SendComposing: %v", err)
	}
	if err := a.SendPaused("16505559999@s.whatsapp.net"); err != nil {
		t.Fatalf("SendPaused: %v", err)
	}
}

func TestSetPresenceSucceeds(t *testing.T) {
	a := newTestSurface(t)
	if err := a.SetPresence(true); err != nil {
		t.Fatalf("SetPresence(true): %v", err)
	}
	if err := a.SetPresence(false); err != nil {
		t.Fatalf("SetPresence(false): %v", err)
	}
}

func TestSendEncryptedTextRequiresBridge(t *testing.T) {
	a := newTestSurface(t)
	if _, err := a.SendEncryptedText("16505559999@s.whatsapp.net", "hi"); err == nil {
		t.Fatal("expected error when no encryption bridge is wired")
	}
}
