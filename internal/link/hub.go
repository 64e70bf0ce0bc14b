package link

import "sync"

// Hub fans named events out to subscribers. Handlers run on the
// dispatching goroutine, in arrival order.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func([]byte)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]func([]byte))}
}

// Subscribe registers handler for event. The returned cancel is idempotent.
func (h *Hub) Subscribe(event string, handler func(data []byte)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.subs[event] == nil {
		h.subs[event] = make(map[int]func([]byte))
	}
	h.subs[event][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[event], id)
			if len(h.subs[event]) == 0 {
				delete(h.subs, event)
			}
		})
	}
}

// Dispatch reports whether anyone was listening.
func (h *Hub) Dispatch(event string, data []byte) bool {
	h.mu.RLock()
	handlers := make([]func([]byte), 0, len(h.subs[event]))
	for _, fn := range h.subs[event] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(data)
	}
	return len(handlers) > 0
}

func (h *Hub) Events() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for e := range h.subs {
		out = append(out, e)
	}
	return out
}
