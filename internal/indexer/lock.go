package indexer

import "sync/atomic"

// IndexLock is a non-blocking mutex guarding registry maintenance. A job
// that cannot take it reports ErrBusy instead of queueing behind the
// running one.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a job is running
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
