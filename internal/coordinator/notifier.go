package coordinator

import "sync"

// Token identifies a listener registration.
type Token uint64

// Notifier is the subscription capability the coordinator offers to entities.
// Listeners receive no payload; they re-read state when called.
type Notifier interface {
	Subscribe(cb func()) Token
	Unsubscribe(tok Token)
}

// listenerSet is a mutex-guarded registry with O(1) add and remove.
type listenerSet struct {
	mu        sync.Mutex
	next      Token
	listeners map[Token]func()
}

func newListenerSet() *listenerSet {
	return &listenerSet{listeners: make(map[Token]func())}
}

func (s *listenerSet) add(cb func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.listeners[s.next] = cb
	return s.next
}

func (s *listenerSet) remove(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, tok)
}

// snapshot copies the current listeners so callbacks run without the lock
// held and may unsubscribe themselves.
func (s *listenerSet) snapshot() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]func(), 0, len(s.listeners))
	for _, cb := range s.listeners {
		out = append(out, cb)
	}
	return out
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.listeners)
}
