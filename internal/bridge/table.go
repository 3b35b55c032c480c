package bridge

import (
	"sort"
	"sync"
)

// EventType identifies a handle lifecycle transition.
type EventType int

const (
	EventAllocated EventType = iota + 1
	EventInitialized
	EventReleased
	EventDestroyed
)

func (e EventType) String() string {
	switch e {
	case EventAllocated:
		return "allocated"
	case EventInitialized:
		return "initialized"
	case EventReleased:
		return "released"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition. Value is the native value the
// transition concerns: the new value for EventInitialized, the dropped one
// for EventReleased.
type Event struct {
	Type     EventType
	Handle   uint64
	TypeName string
	Value    any
}

// Observer receives handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnHandleEvent calls f(e).
func (f ObserverFunc) OnHandleEvent(e Event) {
	f(e)
}

// Table tracks the live handles of one Instance.
type Table struct {
	mu        sync.Mutex
	next      uint64
	handles   map[uint64]*Handle
	closed    bool
	obsMu     sync.RWMutex
	observers []Observer
}

func newTable() *Table {
	return &Table{handles: map[uint64]*Handle{}}
}

// insert assigns h an id and tracks it. It reports false once the table is
// closed.
func (t *Table) insert(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.next++
	h.id = t.next
	t.handles[h.id] = h
	return true
}

func (t *Table) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles, id)
}

// Get returns the live handle with id.
func (t *Table) Get(id uint64) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// close stops accepting handles and returns the ones still live.
func (t *Table) close() []*Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	live := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		live = append(live, h)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].id < live[j].id })
	return live
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
