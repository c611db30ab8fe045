package core

import "testing"

func TestNormalizeTextPassesThroughValidUTF8(t *testing.T) {
	in := "héllo wörld"
	if got := NormalizeText([]byte(in)); got != in {
		t.Fatalf("expected valid UTF-8 unchanged, got %q", got)
	}
}

func TestNormalizeTextDecodesLegacyLatin1(t *testing.T) {
	// 0xe9 alone is invalid UTF-8; under ISO-8859-1 it's U+00E9 (é).
	legacy := []byte{'c', 'a', 'f', 0xe9}
	got := NormalizeText(legacy)
	want := "café"
	if got != want {
		t.Fatalf("NormalizeText(%v) = %q, want %q", legacy, got, want)
	}
}

func TestIsValidUTF8(t *testing.T) {
	if !isValidUTF8([]byte("plain ascii")) {
		t.Fatal("expected plain ASCII to be valid UTF-8")
	}
	if isValidUTF8([]byte{0xff, 0xfe}) {
		t.Fatal("expected invalid byte sequence to fail UTF-8 validation")
	}
}
