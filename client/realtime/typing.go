// Package realtime holds the client-side view of the live connection: the
// typing notifier and aggregator, the presence cache, and the websocket
// wrapper the other pieces hang off.
package realtime

import (
	"fmt"
	"sync"
	"time"
)

const (
	// typingDebounce delays the first typing signal so a single keystroke
	// burst emits one event.
	typingDebounce = 300 * time.Millisecond
	// typingIdle auto-reverts an emitted typing signal when the user stops
	// without an explicit stop.
	typingIdle = 5 * time.Second
	// typingExpiry drops inbound typing entries that were never explicitly
	// stopped.
	typingExpiry = 5 * time.Second
)

// EmitFunc sends a typing signal over the live connection.
type EmitFunc func(chatID string, isTyping bool)

// Notifier debounces local keystrokes into typing signals. A signal is only
// emitted when the typing state actually changes, and an emitted "true"
// reverts to "false" after five seconds of inactivity.
type Notifier struct {
	mu       sync.Mutex
	emit     EmitFunc
	chatID   string
	sent     bool
	debounce *time.Timer
	idle     *time.Timer
}

func NewNotifier(chatID string, emit EmitFunc) *Notifier {
	return &Notifier{chatID: chatID, emit: emit}
}

// Keystroke records local input. The first keystroke of a burst schedules a
// typing=true emission after the debounce window; every keystroke pushes the
// idle revert out.
func (n *Notifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.idle != nil {
		n.idle.Stop()
	}
	n.idle = time.AfterFunc(typingIdle, n.idleRevert)

	if n.sent || n.debounce != nil {
		return
	}
	n.debounce = time.AfterFunc(typingDebounce, n.debounceFire)
}

// Stop emits an explicit typing=false when a signal is outstanding, for
// example when the user sends the message or leaves the chat.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimersLocked()
	if n.sent {
		n.sent = false
		n.emit(n.chatID, false)
	}
}

func (n *Notifier) debounceFire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.debounce = nil
	if !n.sent {
		n.sent = true
		n.emit(n.chatID, true)
	}
}

func (n *Notifier) idleRevert() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelTimersLocked()
	if n.sent {
		n.sent = false
		n.emit(n.chatID, false)
	}
}

func (n *Notifier) cancelTimersLocked() {
	if n.debounce != nil {
		n.debounce.Stop()
		n.debounce = nil
	}
	if n.idle != nil {
		n.idle.Stop()
		n.idle = nil
	}
}

type typingEntry struct {
	userName string
	deadline time.Time
}

// Aggregator folds inbound typing events into a per-chat display state. Each
// entry self-expires five seconds after its last refresh; an explicit stop
// clears it immediately.
type Aggregator struct {
	mu       sync.Mutex
	chats    map[string]map[string]typingEntry
	now      func() time.Time
	onChange func(chatID string)
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		chats: make(map[string]map[string]typingEntry),
		now:   time.Now,
	}
}

// OnChange registers a callback fired after every visible state change.
func (a *Aggregator) OnChange(fn func(chatID string)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Apply folds one inbound typing event.
func (a *Aggregator) Apply(chatID, userID, userName string, isTyping bool) {
	a.mu.Lock()
	if isTyping {
		users, ok := a.chats[chatID]
		if !ok {
			users = make(map[string]typingEntry)
			a.chats[chatID] = users
		}
		users[userID] = typingEntry{userName: userName, deadline: a.now().Add(typingExpiry)}
	} else if users, ok := a.chats[chatID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(a.chats, chatID)
		}
	}
	fn := a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(chatID)
	}
}

// Typing returns the display names of users currently typing in the chat.
func (a *Aggregator) Typing(chatID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	users, ok := a.chats[chatID]
	if !ok {
		return nil
	}
	now := a.now()
	names := make([]string, 0, len(users))
	for userID, e := range users {
		if now.After(e.deadline) {
			delete(users, userID)
			continue
		}
		names = append(names, e.userName)
	}
	if len(users) == 0 {
		delete(a.chats, chatID)
	}
	return names
}

// Summary renders the aggregate indicator line for a chat. Empty when nobody
// is typing.
func (a *Aggregator) Summary(chatID string) string {
	names := a.Typing(chatID)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing…", names[0], names[1])
	default:
		return fmt.Sprintf("%d users are typing…", len(names))
	}
}
