package tree

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a minimal lock for very short critical sections such as swapping
// a child slice. It must never be held across I/O or recursion.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired
func (l *SpinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock
func (l *SpinLock) Unlock() {
	l.held.Store(false)
}
