// Package syncutil provides the per-key mutex the Orchestrator uses to keep
// at most one review running per (repo, pullNumber) at a time.
package syncutil

import "sync"

// KeyLock manages one mutex per key, created lazily.
type KeyLock struct {
	locks sync.Map // string -> *sync.Mutex
}

func NewKeyLock() *KeyLock { return &KeyLock{} }

func (l *KeyLock) Lock(key string) {
	val, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	val.(*sync.Mutex).Lock()
}

func (l *KeyLock) Unlock(key string) {
	val, ok := l.locks.Load(key)
	if !ok {
		return
	}
	val.(*sync.Mutex).Unlock()
}

// TryLock attempts to acquire the lock for key without blocking.
func (l *KeyLock) TryLock(key string) bool {
	val, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	return val.(*sync.Mutex).TryLock()
}
