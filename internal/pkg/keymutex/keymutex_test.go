package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameKey_Serializes(t *testing.T) {
	km := New()
	const workers = 16
	const rounds = 200

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				km.Lock("user-1")
				counter++
				km.Unlock("user-1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*rounds, counter)
}

func TestDifferentKeys_Independent(t *testing.T) {
	km := New()
	km.Lock("alice")

	done := make(chan struct{})
	go func() {
		km.Lock("bob")
		km.Unlock("bob")
		close(done)
	}()

	// Must not block on alice's lock.
	<-done
	km.Unlock("alice")
}

func TestEntries_DroppedWhenIdle(t *testing.T) {
	km := New()
	km.Lock("alice")
	km.Unlock("alice")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}

func TestUnlock_WithoutLock_Panics(t *testing.T) {
	km := New()
	assert.Panics(t, func() { km.Unlock("nobody") })
}
