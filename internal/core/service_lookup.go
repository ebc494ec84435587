package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/google/uuid"
)

// Lookup resolves a gate query against the directory and records the
// attempt in the access log before returning.
//
// The query is normalized like an ingested key; a query without digits
// fails with ErrInvalidQuery and is not logged. A store read failure is
// returned without a log entry since there is no outcome to record. A
// failed log append is logged and does not fail the lookup, so a gate is
// never blocked by the audit store.
func (s *Service) Lookup(ctx context.Context, query string) (LookupResult, error) {
	key := NormalizeKey(query)
	if key == "" {
		return LookupResult{}, fmt.Errorf("%w: %q", ErrInvalidQuery, query)
	}

	rec, found, err := s.dir.Get(ctx, key)
	if err != nil {
		return LookupResult{}, fmt.Errorf("lookup %s: %w", key, err)
	}

	res := LookupResult{Key: key}
	entry := AccessLogEntry{
		ID:         uuid.New(),
		Timestamp:  s.now().UTC(),
		QueriedKey: key,
		Found:      found,
		ClientIP:   ClientIPFromContext(ctx),
	}
	if found {
		res.Record = &rec
		entry.Snapshot = SnapshotOf(rec)
	}
	res.Classification = Classify(res.Record)

	s.recordAccess(ctx, entry)
	return res, nil
}

func (s *Service) recordAccess(ctx context.Context, e AccessLogEntry) {
	// The append outlives a caller that hangs up mid-request.
	if err := s.log.Append(context.WithoutCancel(ctx), e); err != nil {
		logging.FromContext(ctx).Error("access log append failed",
			"key", e.QueriedKey,
			"found", e.Found,
			"error", err,
		)
	}
}
