package core

import (
	"context"
	"time"
)

// Directory is the keyed person store. Implementations must keep exactly
// one record per key and make each UpsertMany call atomic.
type Directory interface {
	Get(ctx context.Context, key string) (PersonRecord, bool, error)

	// List returns every record ordered by key.
	List(ctx context.Context) ([]PersonRecord, error)

	Count(ctx context.Context) (int, error)

	// UpsertMany inserts or wholesale-overwrites records by key.
	UpsertMany(ctx context.Context, recs []PersonRecord) error

	DeleteKeys(ctx context.Context, keys []string) error
}

// AccessLog is the append-only lookup audit trail. Append must be safe for
// concurrent use.
type AccessLog interface {
	Append(ctx context.Context, e AccessLogEntry) error

	// Query returns entries with from <= Timestamp < to, newest first.
	Query(ctx context.Context, from, to time.Time) ([]AccessLogEntry, error)
}

// IngestLocker is implemented by stores shared between processes. The
// returned unlock must be called exactly once.
type IngestLocker interface {
	LockIngest(ctx context.Context) (unlock func(), err error)
}

// snapshot loads the directory as a key map for reconciliation.
func snapshot(ctx context.Context, dir Directory) (map[string]PersonRecord, error) {
	recs, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]PersonRecord, len(recs))
	for _, r := range recs {
		m[r.Key] = r
	}
	return m, nil
}
