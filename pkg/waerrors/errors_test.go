package waerrors

import (
	"errors"
	"testing"
)

func TestProtocolErrorUnwraps(t *testing.T) {
	underlying := errors.New("bad token")
	err := NewProtocolError(underlying)
	if !errors.Is(err, underlying) {
		t.Fatal("expected errors.Is to find the underlying error")
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty message")
	}
}

func TestMacErrorUnwraps(t *testing.T) {
	underlying := errors.New("hmac mismatch")
	err := NewMacError(underlying)
	if !errors.Is(err, underlying) {
		t.Fatal("expected errors.Is to find the underlying error")
	}
}

func TestMediaErrorIncludesTarget(t *testing.T) {
	err := NewMediaError("/tmp/x.jpg", errors.New("upload failed"))
	if err.Target != "/tmp/x.jpg" {
		t.Fatalf("expected target preserved, got %q", err.Target)
	}
	if !errors.Is(err, err.Underlying) {
		t.Fatal("expected errors.Is to find the underlying error")
	}
}

func TestAuthErrorAndRequestErrorCarryCode(t *testing.T) {
	auth := NewAuthError("401", "bad password")
	if auth.Code != "401" || auth.Text != "bad password" {
		t.Fatalf("unexpected AuthError: %+v", auth)
	}
	req := NewRequestError(404, "not found")
	if req.Code != 404 {
		t.Fatalf("unexpected RequestError code: %d", req.Code)
	}
}

func TestEncryptionErrorUnwraps(t *testing.T) {
	underlying := errors.New("no session")
	err := NewEncryptionError("16505551234@s.whatsapp.net", underlying)
	if !errors.Is(err, underlying) {
		t.Fatal("expected errors.Is to find the underlying error")
	}
	if err.Jid == "" {
		t.Fatal("expected jid to be preserved")
	}
}
