package encryption

import "testing"

func TestSealedFetchSecretDisabledByDefault(t *testing.T) {
	b := &Bridge{}
	secret, ok, err := b.sealedFetchSecret()
	if err != nil {
		t.Fatalf("sealedFetchSecret: %v", err)
	}
	if ok || secret != nil {
		t.Fatalf("expected sealed mode to be off by default, got ok=%v secret=%v", ok, secret)
	}
}

func TestSealedFetchSecretEnabled(t *testing.T) {
	b := &Bridge{}
	var endpointPub [32]byte
	endpointPub[0] = 0x01

	b.EnableSealedBundleFetch(endpointPub)

	secret, ok, err := b.sealedFetchSecret()
	if err != nil {
		t.Fatalf("sealedFetchSecret: %v", err)
	}
	if !ok {
		t.Fatal("expected sealed mode to be enabled after EnableSealedBundleFetch")
	}
	if len(secret) == 0 {
		t.Fatal("expected a non-empty shared secret")
	}

	secret2, _, err := b.sealedFetchSecret()
	if err != nil {
		t.Fatalf("sealedFetchSecret (2nd call): %v", err)
	}
	if string(secret) == string(secret2) {
		t.Fatal("expected a fresh ephemeral secret on each call, not a cached one")
	}
}
