package gateway

import (
	"sort"
	"sync"
)

// Bus is an in-process EventSource. Publish delivers synchronously on the
// caller's goroutine, without holding the bus lock.
type Bus struct {
	mu       sync.Mutex
	handlers map[EventKind]map[uint64]Handler
	nextID   uint64
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventKind]map[uint64]Handler)}
}

func (b *Bus) Subscribe(kind EventKind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]Handler)
	}
	b.handlers[kind][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[kind], id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to the handlers of its kind and returns how many ran.
func (b *Bus) Publish(ev Event) int {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.handlers[ev.Kind]))
	for id := range b.handlers[ev.Kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.handlers[ev.Kind][id]
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return len(handlers)
}

// Subscribers counts live handlers across all kinds.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, hs := range b.handlers {
		n += len(hs)
	}
	return n
}
