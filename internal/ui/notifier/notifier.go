// Package notifier pings open SSE update streams. A ping carries no data:
// listeners re-render from server-side state when they receive one.
package notifier

import "sync"

// Notifier delivers pings to listeners, either to every open console or to
// the consoles of one browser session.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]string
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]string),
	}
}

// Subscribe returns a channel that receives pings for session.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe(session string) chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = session
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast pings every listener, for example after the config reloaded.
func (n *Notifier) Broadcast() {
	n.send(func(string) bool { return true })
}

// Notify pings the listeners of one session.
func (n *Notifier) Notify(session string) {
	n.send(func(s string) bool { return s == session })
}

// send never blocks: a listener with a pending ping already has work queued.
func (n *Notifier) send(match func(string) bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch, session := range n.listeners {
		if !match(session) {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
