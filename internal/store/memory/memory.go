// Package memory holds process-local stores for tests, the CLI and
// DB_DRIVER=memory. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/roster/internal/core"
)

// Directory is a map-backed core.Directory.
type Directory struct {
	mu   sync.RWMutex
	data map[string]core.PersonRecord
}

func NewDirectory() *Directory {
	return &Directory{data: make(map[string]core.PersonRecord)}
}

func (d *Directory) Get(_ context.Context, key string) (core.PersonRecord, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.data[key]
	return rec, ok, nil
}

func (d *Directory) List(_ context.Context) ([]core.PersonRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]core.PersonRecord, 0, len(d.data))
	for _, rec := range d.data {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b core.PersonRecord) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (d *Directory) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.data), nil
}

// UpsertMany replaces each record by key under one lock, so readers see
// the whole chunk or none of it.
func (d *Directory) UpsertMany(ctx context.Context, recs []core.PersonRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rec := range recs {
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = time.Now().UTC()
		}
		d.data[rec.Key] = rec
	}
	return nil
}

func (d *Directory) DeleteKeys(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.data, k)
	}
	return nil
}

// AccessLog is an in-memory append-only access log.
type AccessLog struct {
	mu      sync.Mutex
	entries []core.AccessLogEntry
}

func NewAccessLog() *AccessLog {
	return &AccessLog{}
}

func (l *AccessLog) Append(_ context.Context, e core.AccessLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *AccessLog) Query(_ context.Context, from, to time.Time) ([]core.AccessLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []core.AccessLogEntry
	for _, e := range l.entries {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	// Stable keeps append order for equal timestamps before reversing.
	slices.SortStableFunc(out, func(a, b core.AccessLogEntry) int { return a.Timestamp.Compare(b.Timestamp) })
	slices.Reverse(out)
	return out, nil
}

// Entries returns a copy of all recorded entries in append order.
func (l *AccessLog) Entries() []core.AccessLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}
