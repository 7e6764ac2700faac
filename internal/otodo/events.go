package otodo

import "sync"

// Event is a connectivity notification delivered through the Hub.
type Event int

const (
	EventOnline Event = iota
	EventOffline
)

func (e Event) String() string {
	if e == EventOnline {
		return "online"
	}
	return "offline"
}

// Hub is an explicit notification interface for connectivity changes.
// Subscription and unsubscription are idempotent: subscribing under an
// existing name replaces the previous handler, unsubscribing an unknown name
// is a no-op. Handlers run synchronously on the publishing caller, keeping
// the cooperative single-threaded scheduling model.
type Hub struct {
	mu   sync.Mutex
	subs map[string]func(Event)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]func(Event))}
}

// Subscribe registers fn under name.
func (h *Hub) Subscribe(name string, fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[name] = fn
}

// Unsubscribe removes the handler registered under name.
func (h *Hub) Unsubscribe(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, name)
}

// Publish delivers ev to every subscriber. Handlers are invoked outside the
// hub lock so a handler may subscribe or unsubscribe while handling.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	handlers := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
