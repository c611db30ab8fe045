package core

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestChallengeStoreLoadMissingFile(t *testing.T) {
	s := NewChallengeStore(filepath.Join(t.TempDir(), "missing"))
	nonce, ok, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok || nonce != nil {
		t.Fatalf("expected (nil, false) for a missing file, got (%v, %v)", nonce, ok)
	}
}

func TestChallengeStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "challenge")
	s := NewChallengeStore(path)

	want := []byte{0x01, 0x02, 0x03, 0xff}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after Save")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestChallengeStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenge")
	s := NewChallengeStore(path)

	if err := s.Save([]byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save([]byte("second")); err != nil {
		t.Fatalf("Save (overwrite): %v", err)
	}

	got, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwritten value \"second\", got %q", got)
	}
}
