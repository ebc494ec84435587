package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrWorkerClosed is returned by Do after Close.
var ErrWorkerClosed = errors.New("sqlite: writer closed")

// TxFn runs inside a write transaction. Returning an error rolls it back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Job states. A queued job is claimed once, either by the loop to run it
// or by Do to abandon it.
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type job struct {
	ctx   context.Context
	fn    TxFn
	ch    chan error
	state *atomic.Int32
}

// Worker serializes write transactions on one goroutine.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting jobs and waits for queued ones to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	<-w.done
}

// Do queues fn and waits for its transaction to commit or roll back.
//
// If ctx ends while the job is still queued, the job is dropped and Do
// returns ctx.Err(). Once the transaction has started it runs to commit or
// rollback regardless of ctx, and Do reports that outcome.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	j := job{ctx: ctx, fn: fn, ch: make(chan error, 1), state: new(atomic.Int32)}
	if err := w.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.ch:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		return <-j.ch
	}
}

func (w *Worker) enqueue(ctx context.Context, j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerClosed
	}

	select {
	case w.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			continue
		}
		if err := j.ctx.Err(); err != nil {
			j.ch <- err
			continue
		}

		ctx := context.WithoutCancel(j.ctx)
		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
