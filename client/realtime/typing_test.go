package realtime

import (
	"sync"
	"testing"
	"time"
)

type emitRecorder struct {
	mu      sync.Mutex
	signals []bool
}

func (r *emitRecorder) emit(chatID string, isTyping bool) {
	r.mu.Lock()
	r.signals = append(r.signals, isTyping)
	r.mu.Unlock()
}

func (r *emitRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.signals))
	copy(out, r.signals)
	return out
}

func TestNotifierDebouncesBurst(t *testing.T) {
	rec := &emitRecorder{}
	n := NewNotifier("chat-1", rec.emit)

	// A burst of keystrokes inside the debounce window emits one signal.
	n.Keystroke()
	n.Keystroke()
	n.Keystroke()

	time.Sleep(typingDebounce + 100*time.Millisecond)

	signals := rec.snapshot()
	if len(signals) != 1 || !signals[0] {
		t.Fatalf("expected a single typing=true emission, got %v", signals)
	}
}

func TestNotifierStopEmitsFalseOnlyWhenOutstanding(t *testing.T) {
	rec := &emitRecorder{}
	n := NewNotifier("chat-1", rec.emit)

	// Stop with nothing emitted stays silent.
	n.Stop()
	if signals := rec.snapshot(); len(signals) != 0 {
		t.Fatalf("expected no emission, got %v", signals)
	}

	n.Keystroke()
	time.Sleep(typingDebounce + 100*time.Millisecond)
	n.Stop()

	signals := rec.snapshot()
	if len(signals) != 2 || !signals[0] || signals[1] {
		t.Fatalf("expected [true false], got %v", signals)
	}

	// A second stop emits nothing: the state did not change.
	n.Stop()
	if signals := rec.snapshot(); len(signals) != 2 {
		t.Fatalf("redundant stop must not emit, got %v", signals)
	}
}

func TestAggregatorTracksAndExpires(t *testing.T) {
	a := NewAggregator()
	base := time.Now()
	a.now = func() time.Time { return base }

	a.Apply("chat-1", "u1", "alice", true)
	a.Apply("chat-1", "u2", "bob", true)

	if names := a.Typing("chat-1"); len(names) != 2 {
		t.Fatalf("expected 2 typing users, got %v", names)
	}

	// Explicit stop clears immediately.
	a.Apply("chat-1", "u2", "bob", false)
	if names := a.Typing("chat-1"); len(names) != 1 || names[0] != "alice" {
		t.Fatalf("expected only alice, got %v", names)
	}

	// The remaining entry self-expires after the window.
	a.now = func() time.Time { return base.Add(typingExpiry + time.Millisecond) }
	if names := a.Typing("chat-1"); len(names) != 0 {
		t.Fatalf("expected expiry, got %v", names)
	}
}

func TestAggregatorRefreshResetsExpiry(t *testing.T) {
	a := NewAggregator()
	base := time.Now()
	a.now = func() time.Time { return base }

	a.Apply("chat-1", "u1", "alice", true)

	a.now = func() time.Time { return base.Add(3 * time.Second) }
	a.Apply("chat-1", "u1", "alice", true)

	a.now = func() time.Time { return base.Add(7 * time.Second) }
	if names := a.Typing("chat-1"); len(names) != 1 {
		t.Fatalf("refreshed entry should survive, got %v", names)
	}
}

func TestAggregatorSummary(t *testing.T) {
	a := NewAggregator()

	tests := []struct {
		name  string
		users []string
		want  string
	}{
		{"nobody", nil, ""},
		{"one user", []string{"alice"}, "alice is typing…"},
		{"three users", []string{"alice", "bob", "carol"}, "3 users are typing…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatID := "chat-" + tt.name
			for _, name := range tt.users {
				a.Apply(chatID, name, name, true)
			}
			if got := a.Summary(chatID); got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregatorSummaryTwoUsers(t *testing.T) {
	a := NewAggregator()
	a.Apply("chat-1", "u1", "alice", true)
	a.Apply("chat-1", "u2", "bob", true)

	got := a.Summary("chat-1")
	if got != "alice and bob are typing…" && got != "bob and alice are typing…" {
		t.Errorf("unexpected two-user summary: %q", got)
	}
}

func TestAggregatorOnChange(t *testing.T) {
	a := NewAggregator()
	var mu sync.Mutex
	changes := 0
	a.OnChange(func(chatID string) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	a.Apply("chat-1", "u1", "alice", true)
	a.Apply("chat-1", "u1", "alice", false)

	mu.Lock()
	defer mu.Unlock()
	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}
}
