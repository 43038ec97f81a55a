package syncutil

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	l := NewKeyLock()
	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock("alice/repo#7")
			defer l.Unlock("alice/repo#7")
			v := atomic.AddInt64(&counter, 1)
			time.Sleep(time.Millisecond)
			if v != atomic.LoadInt64(&counter) {
				t.Error("concurrent access detected under same key")
			}
			atomic.AddInt64(&counter, -1)
		}()
	}
	wg.Wait()
}

func TestKeyLock_DistinctKeysRunInParallel(t *testing.T) {
	l := NewKeyLock()
	l.Lock("a")
	defer l.Unlock("a")

	if !l.TryLock("b") {
		t.Fatal("expected distinct key to be lockable independently")
	}
	l.Unlock("b")
}

func TestKeyLock_TryLockFailsWhenHeld(t *testing.T) {
	l := NewKeyLock()
	l.Lock("k")
	defer l.Unlock("k")

	if l.TryLock("k") {
		t.Fatal("expected TryLock to fail while key is held")
	}
}
