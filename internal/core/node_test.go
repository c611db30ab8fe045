package core

import "testing"

func TestNodeSetAttrOverwritesInPlace(t *testing.T) {
	n := NewNode("iq").SetAttr("id", "1").SetAttr("type", "get").SetAttr("id", "2")
	if got := n.AttrKeys(); len(got) != 2 || got[0] != "id" || got[1] != "type" {
		t.Fatalf("expected attr order [id type], got %v", got)
	}
	if v, _ := n.Attr("id"); v != "2" {
		t.Fatalf("expected overwritten id=2, got %q", v)
	}
}

func TestNodeAttrMissing(t *testing.T) {
	n := NewNode("iq")
	if v, ok := n.Attr("missing"); ok || v != "" {
		t.Fatalf("expected (\"\", false), got (%q, %v)", v, ok)
	}
	if v := n.AttrOr("missing", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %q", v)
	}
}

func TestNodeChildFindsFirstMatch(t *testing.T) {
	n := NewNode("message").
		AddChild(NewNode("body").SetText("first")).
		AddChild(NewNode("body").SetText("second"))
	if got := n.Child("body").Text(); got != "first" {
		t.Fatalf("expected first matching child, got %q", got)
	}
	if n.Child("missing") != nil {
		t.Fatal("expected nil for absent child tag")
	}
}

func TestNodeValidateRejectsEmptyTagAndDuplicateAttrs(t *testing.T) {
	if err := NewNode("").Validate(); err == nil {
		t.Fatal("expected error for empty tag")
	}
	dup := &Node{Tag: "iq", attrs: []attr{{"id", "1"}, {"id", "2"}}}
	if err := dup.Validate(); err == nil {
		t.Fatal("expected error for duplicate attribute")
	}
	nested := NewNode("message").AddChild(&Node{Tag: ""})
	if err := nested.Validate(); err == nil {
		t.Fatal("expected error propagated from invalid child")
	}
}

func TestNodeEqual(t *testing.T) {
	a := NewNode("iq").SetAttr("id", "1").AddChild(NewNode("body").SetText("hi"))
	b := NewNode("iq").SetAttr("id", "1").AddChild(NewNode("body").SetText("hi"))
	c := NewNode("iq").SetAttr("id", "2").AddChild(NewNode("body").SetText("hi"))
	if !a.Equal(b) {
		t.Fatal("expected structurally identical nodes to be equal")
	}
	if a.Equal(c) {
		t.Fatal("expected nodes with differing attrs to be unequal")
	}
	if a.Equal(nil) || (*Node)(nil).Equal(a) {
		t.Fatal("expected nil comparisons to be unequal unless both nil")
	}
}

func TestNodeElementCount(t *testing.T) {
	leaf := NewNode("ping")
	if leaf.elementCount() != 1 {
		t.Fatalf("expected bare tag count 1, got %d", leaf.elementCount())
	}
	withAttrs := NewNode("iq").SetAttr("id", "1").SetAttr("type", "get")
	if withAttrs.elementCount() != 5 {
		t.Fatalf("expected 1+2*2=5, got %d", withAttrs.elementCount())
	}
	withBody := NewNode("iq").SetAttr("id", "1").SetText("x")
	if withBody.elementCount() != 4 {
		t.Fatalf("expected 1+2*1+1=4, got %d", withBody.elementCount())
	}
}
