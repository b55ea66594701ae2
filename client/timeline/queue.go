package timeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-gateway/client/storage"
	"chat-gateway/internal/protocol"
)

// QueueKey is where the pending submissions persist so a page reload within
// the browser session does not lose them.
const QueueKey = "chat.offlineQueue"

const (
	defaultMaxAttempts = 3
	defaultReplayPace  = 150 * time.Millisecond
)

// QueueEntry is one buffered outbound submission.
type QueueEntry struct {
	TempID     string                `json:"tempId"`
	ChatID     string                `json:"chatId"`
	Content    string                `json:"content"`
	ReplyToID  string                `json:"replyToId,omitempty"`
	Files      []protocol.Attachment `json:"files,omitempty"`
	EnqueuedAt time.Time             `json:"enqueuedAt"`
	Attempts   int                   `json:"attempts"`
}

// SendFunc transmits one entry over the live connection.
type SendFunc func(ctx context.Context, e QueueEntry) error

// Queue buffers outbound submissions while disconnected and replays them in
// enqueue order on the disconnected-to-connected transition. Entries leave
// the queue on a positive acknowledgment or after the retry budget is spent.
type Queue struct {
	store storage.Storage
	send  SendFunc

	mu          sync.Mutex
	entries     []QueueEntry
	connected   bool
	replaying   bool
	maxAttempts int
	pace        time.Duration
}

func NewQueue(store storage.Storage, send SendFunc) *Queue {
	q := &Queue{
		store:       store,
		send:        send,
		maxAttempts: defaultMaxAttempts,
		pace:        defaultReplayPace,
	}
	q.load()
	return q
}

// Enqueue buffers a submission. Every outbound send passes through here
// before hitting the wire, so a drop mid-flight is replayed later.
func (q *Queue) Enqueue(e QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	q.persist()
}

// Ack removes an entry once its durable acknowledgment arrived.
func (q *Queue) Ack(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(tempID)
	q.persist()
}

// Fail counts a delivery failure against the entry's retry budget, removing
// it once the budget is spent. Returns true while the entry remains queued.
func (q *Queue) Fail(tempID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].TempID != tempID {
			continue
		}
		q.entries[i].Attempts++
		if q.entries[i].Attempts >= q.maxAttempts {
			q.remove(tempID)
			q.persist()
			return false
		}
		q.persist()
		return true
	}
	return false
}

// Pending returns the queued entries in enqueue order.
func (q *Queue) Pending() []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// SetConnected records the connection state. Exactly the disconnected to
// connected transition triggers a replay; repeated connected signals do not.
func (q *Queue) SetConnected(ctx context.Context, connected bool) {
	q.mu.Lock()
	wasConnected := q.connected
	q.connected = connected
	start := connected && !wasConnected && !q.replaying
	if start {
		q.replaying = true
	}
	q.mu.Unlock()

	if start {
		go q.replay(ctx)
	}
}

// replay walks the snapshot taken at reconnect time in order, pacing sends so
// the gateway is not flooded the instant the connection returns. Entries stay
// queued until acknowledged.
func (q *Queue) replay(ctx context.Context) {
	defer func() {
		q.mu.Lock()
		q.replaying = false
		q.mu.Unlock()
	}()

	for _, e := range q.Pending() {
		q.mu.Lock()
		connected := q.connected
		q.mu.Unlock()
		if !connected {
			return
		}

		if err := q.send(ctx, e); err != nil {
			q.Fail(e.TempID)
		}

		timer := time.NewTimer(q.pace)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (q *Queue) remove(tempID string) {
	for i := range q.entries {
		if q.entries[i].TempID == tempID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *Queue) load() {
	raw, ok := q.store.Get(QueueKey)
	if !ok || raw == "" {
		return
	}
	var entries []QueueEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		q.store.Delete(QueueKey)
		return
	}
	q.entries = entries
}

func (q *Queue) persist() {
	raw, err := json.Marshal(q.entries)
	if err != nil {
		return
	}
	q.store.Set(QueueKey, string(raw))
}
