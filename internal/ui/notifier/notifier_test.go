package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func received(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe("s1")
	require.NotNil(t, ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 1)
	n.mu.RUnlock()

	n.Unsubscribe(ch)

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New()

	ch1 := n.Subscribe("s1")
	ch2 := n.Subscribe("s2")
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast()

	assert.True(t, received(ch1), "ch1 did not receive broadcast")
	assert.True(t, received(ch2), "ch2 did not receive broadcast")
}

func TestNotifier_NotifyIsScopedToSession(t *testing.T) {
	n := New()

	mine := n.Subscribe("s1")
	mineToo := n.Subscribe("s1")
	other := n.Subscribe("s2")
	defer n.Unsubscribe(mine)
	defer n.Unsubscribe(mineToo)
	defer n.Unsubscribe(other)

	n.Notify("s1")

	assert.True(t, received(mine))
	assert.True(t, received(mineToo))
	assert.False(t, received(other))
}

func TestNotifier_Broadcast_NonBlocking(t *testing.T) {
	n := New()

	ch := n.Subscribe("s1")
	defer n.Unsubscribe(ch)

	// Fill the channel buffer
	ch <- struct{}{}

	done := make(chan bool)
	go func() {
		n.Broadcast()
		n.Notify("s1")
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Broadcast blocked on full channel")
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe("s")
			n.Broadcast()
			n.Notify("s")
			n.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	n.mu.RLock()
	assert.Len(t, n.listeners, 0)
	n.mu.RUnlock()
}
