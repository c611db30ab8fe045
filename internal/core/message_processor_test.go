package core

import (
	"bytes"
	"testing"
)

func TestMessageProcessorDispatchesText(t *testing.T) {
	p := NewMessageProcessor()
	n := NewNode("message").
		SetAttr("from", "16505551234@s.whatsapp.net").
		SetAttr("id", "1").
		SetAttr("t", "1700000000").
		AddChild(NewNode("body").SetText("hi there"))

	ev, ok := p.Process(n)
	if !ok {
		t.Fatal("expected text message to match")
	}
	if ev.Kind != EventReceivedText {
		t.Fatalf("expected EventReceivedText, got %v", ev.Kind)
	}
	if ev.Text.Body != "hi there" || ev.Text.Timestamp != 1700000000 {
		t.Fatalf("unexpected text payload: %+v", ev.Text)
	}
}

func TestMessageProcessorDispatchesLocation(t *testing.T) {
	p := NewMessageProcessor()
	n := NewNode("message").
		SetAttr("from", "16505551234@s.whatsapp.net").
		AddChild(NewNode("location").
			SetAttr("latitude", "37.77").
			SetAttr("longitude", "-122.41").
			SetAttr("name", "HQ"))

	ev, ok := p.Process(n)
	if !ok || ev.Kind != EventReceivedLocation {
		t.Fatalf("expected location match, got kind=%v ok=%v", ev.Kind, ok)
	}
	if ev.Location.Name != "HQ" || ev.Location.Latitude != 37.77 {
		t.Fatalf("unexpected location payload: %+v", ev.Location)
	}
}

func TestMessageProcessorDispatchesMediaByChildType(t *testing.T) {
	p := NewMessageProcessor()
	n := NewNode("message").
		SetAttr("from", "16505551234@s.whatsapp.net").
		AddChild(NewNode("media").
			SetAttr("type", "image").
			SetAttr("url", "https://example.invalid/x").
			SetAttr("mimetype", "image/jpeg").
			SetAttr("width", "640").
			SetAttr("height", "480"))

	ev, ok := p.Process(n)
	if !ok || ev.Kind != EventReceivedImage {
		t.Fatalf("expected image match, got kind=%v ok=%v", ev.Kind, ok)
	}
	if ev.Media.Width != 640 || ev.Media.Height != 480 {
		t.Fatalf("unexpected media payload: %+v", ev.Media)
	}
}

func TestMessageProcessorVcardNormalizesLegacyPayload(t *testing.T) {
	p := NewMessageProcessor()
	// 0xe9 is not valid standalone UTF-8 but is "é" under ISO-8859-1.
	legacy := []byte{'e', 0xe9}
	n := NewNode("message").
		SetAttr("from", "16505551234@s.whatsapp.net").
		AddChild(NewNode("vcard").SetAttr("name", "card").SetPayload(legacy))

	ev, ok := p.Process(n)
	if !ok || ev.Kind != EventReceivedVcard {
		t.Fatalf("expected vcard match, got kind=%v ok=%v", ev.Kind, ok)
	}
	if bytes.Equal(ev.Vcard.Vcard, legacy) {
		t.Fatal("expected legacy payload to be re-decoded, not passed through raw")
	}
	if string(ev.Vcard.Vcard) != "eé" {
		t.Fatalf("expected \"eé\", got %q", ev.Vcard.Vcard)
	}
}

func TestMessageProcessorNoMatchReturnsFalse(t *testing.T) {
	p := NewMessageProcessor()
	n := NewNode("message").SetAttr("from", "x").AddChild(NewNode("receipt"))
	if _, ok := p.Process(n); ok {
		t.Fatal("expected no matcher to fire for an unrecognized message shape")
	}
}
