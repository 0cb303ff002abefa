package ledger

import (
	"sync"
	"testing"
)

func TestKeyLock_TryAcquire(t *testing.T) {
	l := newKeyLock()

	if !l.TryAcquire("u1|AAPL") {
		t.Fatal("first acquire should succeed")
	}
	if l.TryAcquire("u1|AAPL") {
		t.Error("second acquire of a held key should fail")
	}
	if !l.TryAcquire("u1|TSLA") {
		t.Error("a different key should not contend")
	}
	if !l.TryAcquire("u2|AAPL") {
		t.Error("a different user on the same symbol should not contend")
	}

	l.Release("u1|AAPL")
	if !l.TryAcquire("u1|AAPL") {
		t.Error("acquire after release should succeed")
	}
}

func TestKeyLock_Concurrent(t *testing.T) {
	l := newKeyLock()

	const n = 50
	var wg sync.WaitGroup
	acquired := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- l.TryAcquire("u1|AAPL")
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("exactly one goroutine should win the key, got %d", wins)
	}
}
