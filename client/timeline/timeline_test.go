package timeline

import (
	"testing"
	"time"

	"chat-gateway/internal/protocol"
)

func TestOptimisticEntryReplacedInPlace(t *testing.T) {
	tl := New()
	tl.AddOptimistic("temp-1", "chat-1", "user-1", "alice", "hello")

	created := time.Now().Add(-time.Second)
	changed := tl.ApplyMessage(&protocol.MessagePayload{
		MessageID: "msg-1",
		ChatID:    "chat-1",
		UserID:    "user-1",
		Content:   "hello",
		CreatedAt: created,
		TempID:    "temp-1",
	})
	if !changed {
		t.Fatal("expected the confirmation to change the list")
	}

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("confirmation must replace, not append: %d entries", len(entries))
	}
	e := entries[0]
	if !e.Confirmed || e.MessageID != "msg-1" {
		t.Errorf("expected confirmed entry with durable id, got %+v", e)
	}
	if !e.CreatedAt.Equal(created) {
		t.Error("confirmed entry must adopt the durable timestamp")
	}
}

func TestRemoteMessageMergesIdempotently(t *testing.T) {
	tl := New()
	msg := &protocol.MessagePayload{
		MessageID: "msg-1",
		ChatID:    "chat-1",
		UserID:    "user-2",
		UserName:  "bob",
		Content:   "hi",
		CreatedAt: time.Now(),
	}

	if !tl.ApplyMessage(msg) {
		t.Fatal("first delivery should append")
	}
	if tl.ApplyMessage(msg) {
		t.Fatal("second delivery of the same durable id must be a no-op")
	}
	if got := len(tl.Entries()); got != 1 {
		t.Fatalf("expected 1 entry after duplicate delivery, got %d", got)
	}
}

func TestEntriesSortedByDurableTimestamp(t *testing.T) {
	tl := New()
	base := time.Now()

	// Arrival order differs from persistence order; rendering follows the
	// durable timestamp.
	tl.ApplyMessage(&protocol.MessagePayload{MessageID: "late", CreatedAt: base.Add(2 * time.Second)})
	tl.ApplyMessage(&protocol.MessagePayload{MessageID: "early", CreatedAt: base})
	tl.ApplyMessage(&protocol.MessagePayload{MessageID: "middle", CreatedAt: base.Add(time.Second)})

	entries := tl.Entries()
	want := []string{"early", "middle", "late"}
	for i, id := range want {
		if entries[i].MessageID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, entries[i].MessageID)
		}
	}
}

func TestApplyStatusConfirmsAndFails(t *testing.T) {
	tl := New()
	tl.AddOptimistic("temp-1", "chat-1", "user-1", "alice", "first")
	tl.AddOptimistic("temp-2", "chat-1", "user-1", "alice", "second")

	tl.ApplyStatus(&protocol.Envelope{
		Type:      protocol.EventMessageStatus,
		TempID:    "temp-1",
		MessageID: "msg-1",
		Status:    protocol.DeliveryDelivered,
		Timestamp: time.Now(),
	})
	tl.ApplyStatus(&protocol.Envelope{
		Type:   protocol.EventMessageStatus,
		TempID: "temp-2",
		Status: protocol.DeliveryFailed,
	})

	entries := tl.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	var confirmed, failed int
	for _, e := range entries {
		if e.Confirmed {
			confirmed++
		}
		if e.Failed {
			failed++
		}
	}
	if confirmed != 1 || failed != 1 {
		t.Errorf("expected 1 confirmed and 1 failed, got %d/%d", confirmed, failed)
	}
}

func TestConfirmationThenBroadcastDoesNotDuplicate(t *testing.T) {
	tl := New()
	tl.AddOptimistic("temp-1", "chat-1", "user-1", "alice", "hello")

	// The ack arrives first, then the room broadcast for the same message.
	tl.ApplyStatus(&protocol.Envelope{
		TempID:    "temp-1",
		MessageID: "msg-1",
		Status:    protocol.DeliveryDelivered,
		Timestamp: time.Now(),
	})
	tl.ApplyMessage(&protocol.MessagePayload{
		MessageID: "msg-1",
		Content:   "hello",
		CreatedAt: time.Now(),
		TempID:    "temp-1",
	})

	if got := len(tl.Entries()); got != 1 {
		t.Fatalf("ack plus broadcast must yield one entry, got %d", got)
	}
}

func TestApplyEditAndDelete(t *testing.T) {
	tl := New()
	tl.ApplyMessage(&protocol.MessagePayload{MessageID: "msg-1", Content: "original", CreatedAt: time.Now()})

	tl.ApplyEdit("msg-1", "edited")
	if entries := tl.Entries(); entries[0].Content != "edited" {
		t.Errorf("expected edited content, got %q", entries[0].Content)
	}

	tl.ApplyDelete("msg-1")
	if got := len(tl.Entries()); got != 0 {
		t.Fatalf("expected empty timeline after delete, got %d", got)
	}
	// Deleting again is a no-op.
	tl.ApplyDelete("msg-1")
}

func TestAutoScrollFollowsBottomPin(t *testing.T) {
	tl := New()
	if !tl.ShouldAutoScroll() {
		t.Error("a fresh timeline starts pinned to the bottom")
	}
	tl.SetAtBottom(false)
	if tl.ShouldAutoScroll() {
		t.Error("scrolled away must suppress auto-scroll")
	}
	tl.SetAtBottom(true)
	if !tl.ShouldAutoScroll() {
		t.Error("returning to the bottom re-enables auto-scroll")
	}
}
