package server

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	k := newKeyedLocks()

	unlock := k.Lock("f-1")
	acquired := make(chan struct{})
	go func() {
		u := k.Lock("f-1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	// Other keys are independent.
	k.Lock("f-2")()

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released key")
	}
}

func TestKeyedLocks_ReleasesEntries(t *testing.T) {
	k := newKeyedLocks()

	var wg sync.WaitGroup
	var mu sync.Mutex
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("f-1")
			defer unlock()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if n := k.held(); n != 0 {
		t.Fatalf("expected no entries left, got %d", n)
	}
}
