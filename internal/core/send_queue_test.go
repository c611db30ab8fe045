package core

import "testing"

func TestSendQueueEnqueueAndDrainOrder(t *testing.T) {
	q := NewSendQueue()
	first := NewNode("message").SetAttr("id", "1")
	second := NewNode("message").SetAttr("id", "2")

	q.Enqueue("alice", first)
	q.Enqueue("bob", second)

	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}

	drained := q.Drain()
	if len(drained) != 2 || drained[0] != first || drained[1] != second {
		t.Fatalf("expected drain in submission order [first second], got %v", drained)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after drain, got len %d", q.Len())
	}
}

func TestSendQueueDrainOnEmptyQueue(t *testing.T) {
	q := NewSendQueue()
	if drained := q.Drain(); len(drained) != 0 {
		t.Fatalf("expected empty drain, got %v", drained)
	}
}
