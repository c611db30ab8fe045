package encryption

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// generateEphemeralKeyPair makes a throwaway X25519 pair for a sealed
// bundle fetch. Bridge.fetchBundle uses it (through sealedFetchSecret) only
// after EnableSealedBundleFetch; the default bundle path (a plain <iq> over
// the already-TLS'd session) never needs it.
func generateEphemeralKeyPair() (public, private [32]byte, err error) {
	if _, err = rand.Read(private[:]); err != nil {
		return public, private, fmt.Errorf("encryption: generating ephemeral private key: %w", err)
	}
	curve25519.ScalarBaseMult(&public, &private)
	return public, private, nil
}

// sealedBundleSharedSecret derives the X25519 shared secret for a sealed
// bundle fetch from the endpoint's published public key and our ephemeral
// private key. fetchBundle puts its first 4 bytes on the request as the
// "seal" tag; no response is decrypted with it.
func sealedBundleSharedSecret(ourPrivate, theirPublic [32]byte) ([]byte, error) {
	shared, err := curve25519.X25519(ourPrivate[:], theirPublic[:])
	if err != nil {
		return nil, fmt.Errorf("encryption: deriving sealed-bundle shared secret: %w", err)
	}
	return shared, nil
}
