package gateway

import "sync"

// ChangeKind names what happened to a definition.
type ChangeKind string

// Change kinds published by the gateway.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is published after a mutation reaches the store.
type Change struct {
	ID   string     `json:"id"`
	Kind ChangeKind `json:"kind"`
}

// changeBuffer bounds how far a slow listener may fall behind before
// changes are dropped for it.
const changeBuffer = 16

// Notifier broadcasts definition changes to subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Change]struct{}
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[chan Change]struct{}),
	}
}

// Subscribe returns a channel that receives every subsequent change.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Change {
	ch := make(chan Change, changeBuffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Change) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Broadcast sends c to all listeners without blocking. A listener whose
// buffer is full misses c.
func (n *Notifier) Broadcast(c Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- c:
		default:
		}
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
