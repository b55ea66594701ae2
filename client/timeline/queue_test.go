package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-gateway/client/storage"
)

type replayRecorder struct {
	mu   sync.Mutex
	sent []string
	errs map[string]error
	done chan struct{}
	want int
}

func newReplayRecorder(want int) *replayRecorder {
	return &replayRecorder{
		errs: make(map[string]error),
		done: make(chan struct{}),
		want: want,
	}
}

func (r *replayRecorder) send(ctx context.Context, e QueueEntry) error {
	r.mu.Lock()
	r.sent = append(r.sent, e.TempID)
	if len(r.sent) == r.want {
		close(r.done)
	}
	err := r.errs[e.TempID]
	r.mu.Unlock()
	return err
}

func (r *replayRecorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish in time")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	copy(out, r.sent)
	return out
}

func newTestQueue(store storage.Storage, rec *replayRecorder) *Queue {
	q := NewQueue(store, rec.send)
	q.pace = time.Millisecond
	return q
}

func TestReplayPreservesEnqueueOrder(t *testing.T) {
	rec := newReplayRecorder(3)
	q := newTestQueue(storage.NewMemoryStorage(), rec)

	q.Enqueue(QueueEntry{TempID: "a", ChatID: "chat-1", Content: "1"})
	q.Enqueue(QueueEntry{TempID: "b", ChatID: "chat-2", Content: "2"})
	q.Enqueue(QueueEntry{TempID: "c", ChatID: "chat-1", Content: "3"})

	q.SetConnected(context.Background(), true)

	sent := rec.wait(t)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if sent[i] != id {
			t.Fatalf("replay order broken: got %v, want %v", sent, want)
		}
	}
}

func TestReplayTriggersOncePerReconnect(t *testing.T) {
	rec := newReplayRecorder(1)
	q := newTestQueue(storage.NewMemoryStorage(), rec)
	q.Enqueue(QueueEntry{TempID: "a"})

	ctx := context.Background()
	q.SetConnected(ctx, true)
	rec.wait(t)

	// A repeated connected signal without an intervening disconnect must not
	// replay again.
	q.SetConnected(ctx, true)
	time.Sleep(20 * time.Millisecond)

	rec.mu.Lock()
	sends := len(rec.sent)
	rec.mu.Unlock()
	if sends != 1 {
		t.Fatalf("expected a single replay, got %d sends", sends)
	}
}

func TestAckRemovesEntry(t *testing.T) {
	q := NewQueue(storage.NewMemoryStorage(), func(ctx context.Context, e QueueEntry) error { return nil })

	q.Enqueue(QueueEntry{TempID: "a"})
	q.Enqueue(QueueEntry{TempID: "b"})
	q.Ack("a")

	pending := q.Pending()
	if len(pending) != 1 || pending[0].TempID != "b" {
		t.Fatalf("expected only b pending, got %v", pending)
	}
}

func TestFailSpendsRetryBudget(t *testing.T) {
	q := NewQueue(storage.NewMemoryStorage(), func(ctx context.Context, e QueueEntry) error { return nil })
	q.Enqueue(QueueEntry{TempID: "a"})

	if !q.Fail("a") {
		t.Fatal("first failure should keep the entry queued")
	}
	if !q.Fail("a") {
		t.Fatal("second failure should keep the entry queued")
	}
	if q.Fail("a") {
		t.Fatal("third failure must drop the entry")
	}
	if len(q.Pending()) != 0 {
		t.Fatalf("expected empty queue after the budget is spent, got %v", q.Pending())
	}
}

func TestQueueSurvivesReload(t *testing.T) {
	store := storage.NewMemoryStorage()

	q := NewQueue(store, func(ctx context.Context, e QueueEntry) error { return nil })
	q.Enqueue(QueueEntry{TempID: "a", Content: "hello"})
	q.Enqueue(QueueEntry{TempID: "b", Content: "world"})
	q.Ack("a")

	// A page reload constructs a new queue over the same storage; only the
	// unacknowledged entry comes back.
	reloaded := NewQueue(store, func(ctx context.Context, e QueueEntry) error { return nil })
	pending := reloaded.Pending()
	if len(pending) != 1 || pending[0].TempID != "b" {
		t.Fatalf("expected only b after reload, got %v", pending)
	}
}

func TestReplayStopsWhenDisconnected(t *testing.T) {
	rec := newReplayRecorder(1)
	store := storage.NewMemoryStorage()
	q := NewQueue(store, rec.send)
	q.pace = 50 * time.Millisecond

	q.Enqueue(QueueEntry{TempID: "a"})
	q.Enqueue(QueueEntry{TempID: "b"})

	ctx := context.Background()
	q.SetConnected(ctx, true)
	rec.wait(t)
	q.SetConnected(ctx, false)

	time.Sleep(150 * time.Millisecond)
	rec.mu.Lock()
	sends := len(rec.sent)
	rec.mu.Unlock()
	if sends != 1 {
		t.Fatalf("replay must stop after a disconnect, got %d sends", sends)
	}
}
