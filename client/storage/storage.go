// Package storage abstracts the client's durable key-value store. Browser
// embedders back it with local storage; tests and headless clients use the
// in-memory implementation. Change notifications model the storage events
// sibling tabs of the same origin observe.
package storage

import "sync"

// Change describes one key mutation. OldValue or NewValue is empty when the
// key was absent on that side of the mutation.
type Change struct {
	Key      string
	OldValue string
	NewValue string
}

// Listener receives change notifications. Listeners run synchronously on the
// mutating goroutine and must not mutate storage reentrantly.
type Listener func(Change)

// Storage is a string key-value store with change notification.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	// Subscribe registers a listener for every subsequent change and returns
	// an unsubscribe function.
	Subscribe(l Listener) (unsubscribe func())
}

// MemoryStorage is the in-process Storage. Two MemoryStorage handles sharing
// one underlying instance behave like two tabs on one origin.
type MemoryStorage struct {
	mu        sync.Mutex
	data      map[string]string
	listeners map[int]Listener
	nextID    int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:      make(map[string]string),
		listeners: make(map[int]Listener),
	}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	old := m.data[key]
	m.data[key] = value
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if old == value {
		return
	}
	change := Change{Key: key, OldValue: old, NewValue: value}
	for _, l := range listeners {
		l(change)
	}
}

func (m *MemoryStorage) Delete(key string) {
	m.mu.Lock()
	old, existed := m.data[key]
	delete(m.data, key)
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if !existed {
		return
	}
	change := Change{Key: key, OldValue: old}
	for _, l := range listeners {
		l(change)
	}
}

func (m *MemoryStorage) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *MemoryStorage) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}
