package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errStore = errors.New("store unavailable")

// fakeDirectory is an in-memory Directory with failure injection.
type fakeDirectory struct {
	mu      sync.Mutex
	recs    map[string]PersonRecord
	upserts [][]string // keys of each UpsertMany call, in call order

	failUpsertCall int // 1-based call number to fail, 0 for none
	failDelete     bool
	failList       bool
	failGet        bool
}

func newFakeDirectory(recs ...PersonRecord) *fakeDirectory {
	d := &fakeDirectory{recs: make(map[string]PersonRecord)}
	for _, r := range recs {
		d.recs[r.Key] = r
	}
	return d
}

func (d *fakeDirectory) Get(_ context.Context, key string) (PersonRecord, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failGet {
		return PersonRecord{}, false, errStore
	}
	r, ok := d.recs[key]
	return r, ok, nil
}

func (d *fakeDirectory) List(context.Context) ([]PersonRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failList {
		return nil, errStore
	}
	out := make([]PersonRecord, 0, len(d.recs))
	for _, r := range d.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *fakeDirectory) Count(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recs), nil
}

func (d *fakeDirectory) UpsertMany(_ context.Context, recs []PersonRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key
	}
	d.upserts = append(d.upserts, keys)
	if d.failUpsertCall == len(d.upserts) {
		return errStore
	}
	for _, r := range recs {
		d.recs[r.Key] = r
	}
	return nil
}

func (d *fakeDirectory) DeleteKeys(_ context.Context, keys []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failDelete {
		return errStore
	}
	for _, k := range keys {
		delete(d.recs, k)
	}
	return nil
}

func (d *fakeDirectory) get(key string) (PersonRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.recs[key]
	return r, ok
}

// fakeAccessLog records appends in memory.
type fakeAccessLog struct {
	mu      sync.Mutex
	entries []AccessLogEntry
	fail    bool
}

func (l *fakeAccessLog) Append(_ context.Context, e AccessLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errStore
	}
	l.entries = append(l.entries, e)
	return nil
}

func (l *fakeAccessLog) Query(_ context.Context, from, to time.Time) ([]AccessLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []AccessLogEntry
	for _, e := range l.entries {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (l *fakeAccessLog) all() []AccessLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AccessLogEntry(nil), l.entries...)
}

// lockingDirectory adds an IngestLocker that can be held by the test.
type lockingDirectory struct {
	*fakeDirectory
	lock chan struct{}
}

func newLockingDirectory() *lockingDirectory {
	return &lockingDirectory{fakeDirectory: newFakeDirectory(), lock: make(chan struct{}, 1)}
}

func (d *lockingDirectory) LockIngest(ctx context.Context) (func(), error) {
	select {
	case d.lock <- struct{}{}:
		return func() { <-d.lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func person(key, name string, current bool) PersonRecord {
	return PersonRecord{Key: key, DisplayName: name, DuesStatus: current}
}
