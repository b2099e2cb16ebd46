package event

import "sync"

// Package event provides a way for listeners to subscribe to synchronous events.

// Listener receives events
// We use an interface instead of a function, because functions cannot be compared for equality.
// Comparison for equality is essential for removing an existing listener.
type Listener[T any] interface {
	OnEvent(event T)
}

// ListenerFunc adapts a plain function into a Listener.
// Because functions are not comparable, a ListenerFunc must be registered by pointer
// if you intend to remove it later.
type ListenerFunc[T any] func(event T)

func (f *ListenerFunc[T]) OnEvent(event T) {
	(*f)(event)
}

// Sender sends events of type T to all registered listeners, in the order that they were added.
// The zero value is ready to use.
type Sender[T any] struct {
	listenersLock sync.Mutex
	listeners     []Listener[T]
}

// Add a new listener
// If the listener is already present, then the function returns immediately
func (s *Sender[T]) AddListener(listener Listener[T]) {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	for _, l := range s.listeners {
		if l == listener {
			return
		}
	}
	s.listeners = append(s.listeners, listener)
}

// Remove an existing listener
// Returns false if the listener was not present
func (s *Sender[T]) RemoveListener(listener Listener[T]) bool {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Send an event to all listeners.
// The listener list is copied before dispatch, so a listener may add or remove
// listeners (including itself) without deadlocking.
func (s *Sender[T]) SendEvent(event T) {
	s.listenersLock.Lock()
	list := make([]Listener[T], len(s.listeners))
	copy(list, s.listeners)
	s.listenersLock.Unlock()

	for _, l := range list {
		l.OnEvent(event)
	}
}
