package core

// writer_lock.go serializes directory writes inside one process.
//
// Reconciliation reads the directory and then writes a plan derived from
// that read, so two interleaved ingests could each delete or overwrite what
// the other just wrote. The lock is a one-slot semaphore: a second ingest
// waits up to maxWait and then fails with ErrIngestInProgress. Stores shared
// between processes add their own IngestLocker on top.

import (
	"context"
	"sync"
	"time"
)

// DefaultLockWait is how long to wait for the writer lock before rejecting.
const DefaultLockWait = 30 * time.Second

// WriterLock is a single-slot semaphore with a bounded wait.
type WriterLock struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	holding bool
	since   time.Time
}

// NewWriterLock creates a lock whose Acquire gives up after maxWait.
func NewWriterLock(maxWait time.Duration) *WriterLock {
	if maxWait <= 0 {
		maxWait = DefaultLockWait
	}
	return &WriterLock{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the lock, waiting at most maxWait.
// The caller MUST call Release() when done (use defer).
func (l *WriterLock) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.mu.Lock()
		l.holding = true
		l.since = time.Now()
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrIngestInProgress
	}
}

// TryAcquire takes the lock only if it is free.
func (l *WriterLock) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		l.mu.Lock()
		l.holding = true
		l.since = time.Now()
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the lock. Must be called exactly once per successful acquire.
func (l *WriterLock) Release() {
	l.mu.Lock()
	l.holding = false
	l.since = time.Time{}
	l.mu.Unlock()

	<-l.slot
}

// Held reports whether an ingest currently holds the lock.
func (l *WriterLock) Held() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.holding
}

// WaitForDrain blocks until the lock is free or ctx is done.
// Used during shutdown so an in-flight ingest can finish its chunks.
func (l *WriterLock) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Held() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WriterLockStatus is a snapshot of the lock for health reporting.
type WriterLockStatus struct {
	Held  bool      `json:"held"`
	Since time.Time `json:"since,omitzero"`
}

// Status returns the current lock state.
func (l *WriterLock) Status() WriterLockStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return WriterLockStatus{Held: l.holding, Since: l.since}
}
