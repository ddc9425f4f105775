// Package progress implements the listener fan-out used to push queue state
// to UI subscribers.
package progress

import "sync"

// Publisher is a synchronous callback registry. Subscribers receive every
// published value in subscription order; a panicking listener never prevents
// the remaining listeners from being notified.
type Publisher[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
	order     []int
}

// NewPublisher constructs an empty publisher.
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{listeners: make(map[int]func(T))}
}

// Subscribe registers a listener and returns its de-registration function.
// Unsubscribing twice is harmless.
func (p *Publisher[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.order = append(p.order, id)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Publish delivers value to every registered listener synchronously.
func (p *Publisher[T]) Publish(value T) {
	p.mu.Lock()
	fns := make([]func(T), 0, len(p.listeners))
	for _, id := range p.order {
		if fn, ok := p.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		invoke(fn, value)
	}
}

// Len reports the number of active listeners.
func (p *Publisher[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func invoke[T any](fn func(T), value T) {
	// Listener panics must not take down the queue engine or starve
	// the remaining subscribers.
	defer func() { _ = recover() }()
	fn(value)
}
