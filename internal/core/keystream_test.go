package core

import (
	"bytes"
	"testing"
)

func TestKeyStreamEncodeDecodeRoundTrip(t *testing.T) {
	cipherKey := bytes.Repeat([]byte{0x11}, 20)
	macKey := bytes.Repeat([]byte{0x22}, 20)

	writer, err := NewKeyStream(cipherKey, macKey)
	if err != nil {
		t.Fatalf("NewKeyStream writer: %v", err)
	}
	reader, err := NewKeyStream(cipherKey, macKey)
	if err != nil {
		t.Fatalf("NewKeyStream reader: %v", err)
	}

	plaintext := []byte("hello protocol")
	framed := make([]byte, macSize+len(plaintext))
	copy(framed[macSize:], plaintext)
	if err := writer.Encode(framed, 0, macSize, len(plaintext)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if bytes.Equal(framed[macSize:], plaintext) {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	if err := reader.Decode(framed, 0, macSize, len(plaintext)); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(framed[macSize:], plaintext) {
		t.Fatalf("expected decoded plaintext %q, got %q", plaintext, framed[macSize:])
	}
}

func TestKeyStreamDecodeRejectsTamperedCiphertext(t *testing.T) {
	cipherKey := bytes.Repeat([]byte{0x33}, 20)
	macKey := bytes.Repeat([]byte{0x44}, 20)
	writer, _ := NewKeyStream(cipherKey, macKey)
	reader, _ := NewKeyStream(cipherKey, macKey)

	plaintext := []byte("tamper me")
	framed := make([]byte, macSize+len(plaintext))
	copy(framed[macSize:], plaintext)
	if err := writer.Encode(framed, 0, macSize, len(plaintext)); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	framed[macSize] ^= 0xff

	if err := reader.Decode(framed, 0, macSize, len(plaintext)); err != ErrMacMismatch {
		t.Fatalf("expected ErrMacMismatch, got %v", err)
	}
}

func TestKeyStreamSequenceAdvancesEvenOnMismatch(t *testing.T) {
	cipherKey := bytes.Repeat([]byte{0x55}, 20)
	macKey := bytes.Repeat([]byte{0x66}, 20)
	reader, _ := NewKeyStream(cipherKey, macKey)

	framed := make([]byte, macSize+4)
	if reader.Seq() != 0 {
		t.Fatalf("expected seq 0, got %d", reader.Seq())
	}
	_ = reader.Decode(framed, 0, macSize, 4)
	if reader.Seq() != 1 {
		t.Fatalf("expected seq to advance to 1 regardless of MAC outcome, got %d", reader.Seq())
	}
}

func TestDeriveKeysProducesFourDistinctKeys(t *testing.T) {
	keys := DeriveKeys([]byte("password"), []byte("nonce-value"))
	all := [][]byte{keys.WriterCipherKey, keys.WriterMacKey, keys.ReaderCipherKey, keys.ReaderMacKey}
	for i, k := range all {
		if len(k) != 20 {
			t.Fatalf("expected 20-byte key at index %d, got %d", i, len(k))
		}
		for j, other := range all {
			if i != j && bytes.Equal(k, other) {
				t.Fatalf("expected derived keys %d and %d to differ", i, j)
			}
		}
	}
}

func TestDerivedKeysBuildUsableKeyStreams(t *testing.T) {
	keys := DeriveKeys([]byte("password"), []byte("nonce-value"))
	if _, err := keys.NewWriterKeyStream(); err != nil {
		t.Fatalf("NewWriterKeyStream: %v", err)
	}
	if _, err := keys.NewReaderKeyStream(); err != nil {
		t.Fatalf("NewReaderKeyStream: %v", err)
	}
}
