// Package event is the book's observer registry. Each book owns one Notifier;
// handlers run synchronously on the publishing goroutine, in registration order.
package event

import (
	"sync"

	"xbt_book/internal/domain"
)

// Kind identifies a book transition.
type Kind uint8

const (
	// KindInitialized fires after a snapshot has been applied.
	KindInitialized Kind = iota + 1
	// KindUpdated fires after every applied incremental update.
	KindUpdated
	// KindOrderCreated fires after KindUpdated when the update created an order.
	KindOrderCreated
)

func (k Kind) String() string {
	switch k {
	case KindInitialized:
		return "initialized"
	case KindUpdated:
		return "updated"
	case KindOrderCreated:
		return "order_created"
	default:
		return "unknown"
	}
}

// Notification is delivered to handlers. Order is only set for KindOrderCreated.
type Notification struct {
	Kind  Kind
	Order domain.Order
}

// Handler receives notifications.
type Handler func(Notification)

// Handle identifies a subscription for Unsubscribe.
type Handle uint64

type subscription struct {
	handle Handle
	fn     Handler
	once   bool
}

// Notifier is safe for concurrent use.
type Notifier struct {
	mu   sync.Mutex
	next Handle
	subs map[Kind][]subscription
}

// NewNotifier creates an empty registry.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[Kind][]subscription)}
}

// Subscribe registers fn for every notification of kind.
func (n *Notifier) Subscribe(kind Kind, fn Handler) Handle {
	return n.add(kind, fn, false)
}

// Once registers fn for the next notification of kind only.
func (n *Notifier) Once(kind Kind, fn Handler) Handle {
	return n.add(kind, fn, true)
}

func (n *Notifier) add(kind Kind, fn Handler, once bool) Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	n.subs[kind] = append(n.subs[kind], subscription{handle: n.next, fn: fn, once: once})
	return n.next
}

// Unsubscribe removes a subscription. It reports whether the handle was registered.
func (n *Notifier) Unsubscribe(h Handle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for kind, list := range n.subs {
		for i, s := range list {
			if s.handle == h {
				n.subs[kind] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish invokes the handlers registered for note.Kind. One-shot handlers are
// removed before any handler runs, so a handler may subscribe or unsubscribe freely.
func (n *Notifier) Publish(note Notification) {
	n.mu.Lock()
	list := n.subs[note.Kind]
	if len(list) == 0 {
		n.mu.Unlock()
		return
	}
	fire := make([]Handler, 0, len(list))
	keep := list[:0:0]
	for _, s := range list {
		fire = append(fire, s.fn)
		if !s.once {
			keep = append(keep, s)
		}
	}
	n.subs[note.Kind] = keep
	n.mu.Unlock()

	for _, fn := range fire {
		fn(note)
	}
}

// Len returns the number of handlers registered for kind.
func (n *Notifier) Len(kind Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[kind])
}
