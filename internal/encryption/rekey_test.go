package encryption

import (
	"bytes"
	"testing"
)

func TestSealedBundleSharedSecretAgreesBothDirections(t *testing.T) {
	aPub, aPriv, err := generateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generateEphemeralKeyPair (a): %v", err)
	}
	bPub, bPriv, err := generateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generateEphemeralKeyPair (b): %v", err)
	}

	secretFromA, err := sealedBundleSharedSecret(aPriv, bPub)
	if err != nil {
		t.Fatalf("sealedBundleSharedSecret (a side): %v", err)
	}
	secretFromB, err := sealedBundleSharedSecret(bPriv, aPub)
	if err != nil {
		t.Fatalf("sealedBundleSharedSecret (b side): %v", err)
	}

	if !bytes.Equal(secretFromA, secretFromB) {
		t.Fatal("expected both sides of the X25519 exchange to agree on the same shared secret")
	}
}

func TestGenerateEphemeralKeyPairIsNotReused(t *testing.T) {
	pubA, privA, err := generateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generateEphemeralKeyPair: %v", err)
	}
	pubB, privB, err := generateEphemeralKeyPair()
	if err != nil {
		t.Fatalf("generateEphemeralKeyPair: %v", err)
	}
	if bytes.Equal(pubA[:], pubB[:]) || bytes.Equal(privA[:], privB[:]) {
		t.Fatal("expected successive ephemeral key pairs to differ")
	}
}
