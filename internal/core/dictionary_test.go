package core

import "testing"

func TestDictionaryPrimaryTokenRoundTrip(t *testing.T) {
	d := NewDictionary([]string{"", "", "", "message", "body"}, nil)
	tok, ok := d.PrimaryToken("message")
	if !ok || tok != 3 {
		t.Fatalf("expected token 3, got %d (ok=%v)", tok, ok)
	}
	s, ok := d.PrimaryAt(tok)
	if !ok || s != "message" {
		t.Fatalf("expected round trip to \"message\", got %q (ok=%v)", s, ok)
	}
	if _, ok := d.PrimaryToken("nowhere"); ok {
		t.Fatal("expected absent string to miss")
	}
}

func TestDictionaryReservedIndicesNeverTokenize(t *testing.T) {
	d := NewDictionary([]string{"", "", ""}, nil)
	if _, ok := d.PrimaryToken(""); ok {
		t.Fatal("empty placeholder strings must never resolve to a token")
	}
}

func TestDictionarySecondaryTokenRoundTrip(t *testing.T) {
	secondary := [][]string{{"alpha", "beta"}, {"gamma"}}
	d := NewDictionary([]string{"", "", ""}, secondary)
	prefix, idx, ok := d.SecondaryToken("gamma")
	if !ok {
		t.Fatal("expected \"gamma\" to resolve in second secondary table")
	}
	if !IsSecondaryPrefix(prefix) {
		t.Fatalf("expected %d to be a valid secondary prefix", prefix)
	}
	s, ok := d.SecondaryAt(prefix, idx)
	if !ok || s != "gamma" {
		t.Fatalf("expected round trip to \"gamma\", got %q (ok=%v)", s, ok)
	}
}

func TestDefaultDictionaryCoversSessionTokens(t *testing.T) {
	for _, s := range []string{"message", "iq", "success", "failure", "challenge", "response", "stream:features"} {
		if _, ok := DefaultDictionary.PrimaryToken(s); !ok {
			t.Fatalf("expected DefaultDictionary to contain %q", s)
		}
	}
}
