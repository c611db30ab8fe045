package interfaces

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePort(t *testing.T) {
	if err := ValidatePort(443); err != nil {
		t.Fatalf("expected 443 to be valid, got %v", err)
	}
	for _, p := range []int{0, -1, 65536} {
		if err := ValidatePort(p); err == nil {
			t.Fatalf("expected port %d to be invalid", p)
		}
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jpg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ValidateFile(path); err != nil {
		t.Fatalf("expected existing file to validate, got %v", err)
	}
	if err := ValidateFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatal("expected error for a missing file")
	}
	if err := ValidateFile(dir); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}

func TestValidateWorkerCount(t *testing.T) {
	if err := ValidateWorkerCount(4); err != nil {
		t.Fatalf("expected 4 workers to be valid, got %v", err)
	}
	if err := ValidateWorkerCount(0); err == nil {
		t.Fatal("expected 0 workers to be invalid")
	}
	if err := ValidateWorkerCount(33); err == nil {
		t.Fatal("expected 33 workers to exceed the max")
	}
}

func TestValidateJID(t *testing.T) {
	if err := ValidateJID("16505551234@s.whatsapp.net"); err != nil {
		t.Fatalf("expected valid JID, got %v", err)
	}
	if err := ValidateJID(""); err == nil {
		t.Fatal("expected empty JID to be invalid")
	}
	if err := ValidateJID("16505551234"); err == nil {
		t.Fatal("expected JID missing @server to be invalid")
	}
}
