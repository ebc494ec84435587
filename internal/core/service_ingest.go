package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/google/uuid"
)

// Format names the payload encoding of an ingest.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// IngestRequest is one administrative load.
type IngestRequest struct {
	// Mode is parsed with ParseMode, so legacy names are accepted.
	Mode   string
	Format Format

	// Data is delimited text for FormatCSV or a JSON array for FormatJSON.
	Data []byte

	// DryRun stops after reconciliation and writes nothing.
	DryRun bool
}

// IngestResult summarizes a load. On a persistence failure it is returned
// alongside the error with SavedCount reflecting the chunks that committed.
type IngestResult struct {
	BatchID   uuid.UUID `json:"batchId"`
	Mode      Mode      `json:"mode"`
	Format    Format    `json:"format"`
	Delimiter string    `json:"delimiter,omitempty"`
	Lenient   bool      `json:"lenient,omitempty"`
	DryRun    bool      `json:"dryRun"`

	ReceivedCount  int `json:"receivedCount"`
	ValidCount     int `json:"validCount"`
	RejectedCount  int `json:"rejectedCount"`
	AddedCount     int `json:"addedCount"`
	UpdatedCount   int `json:"updatedCount"`
	UnchangedCount int `json:"unchangedCount"`
	DeletedCount   int `json:"deletedCount"`
	SavedCount     int `json:"savedCount"`
}

// Ingest parses, validates, reconciles and persists one batch.
//
// Parse, mapping and validation failures return before the writer lock is
// taken, so nothing is written. Errors from later phases are *IngestError
// values naming the phase.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	res := &IngestResult{
		BatchID: uuid.New(),
		Mode:    mode,
		Format:  req.Format,
		DryRun:  req.DryRun,
	}
	log := logging.WithFields(ctx, "batch_id", res.BatchID, "mode", mode, "format", req.Format)

	recs, err := s.candidates(req, res)
	if err != nil {
		log.Warn("ingest rejected", "phase", PhaseOf(err), "error", err)
		return nil, err
	}
	res.ValidCount = len(recs)
	res.RejectedCount = res.ReceivedCount - res.ValidCount

	// Once validated, the load runs to completion on its own deadline: a
	// REPLACE cut short after its deletes would leave the directory truncated.
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	unlock, err := s.acquireWriter(ctx)
	if err != nil {
		log.Warn("ingest lock unavailable", "error", err)
		return nil, phaseError(PhaseLock, err)
	}
	defer unlock()

	existing, err := snapshot(ctx, s.dir)
	if err != nil {
		return nil, phaseError(PhaseSnapshot, fmt.Errorf("%w: read directory: %w", ErrPersistence, err))
	}

	plan := Reconcile(recs, existing, mode, s.now().UTC())
	res.AddedCount = plan.AddedCount
	res.UpdatedCount = plan.UpdatedCount
	res.UnchangedCount = plan.UnchangedCount
	res.DeletedCount = plan.DeletedCount()

	if req.DryRun {
		log.Info("ingest previewed",
			"received", res.ReceivedCount,
			"valid", res.ValidCount,
			"added", res.AddedCount,
			"updated", res.UpdatedCount,
			"deleted", res.DeletedCount,
		)
		return res, nil
	}

	persisted, err := s.exec.Execute(ctx, s.dir, plan)
	res.SavedCount = persisted.Upserted
	if err != nil {
		if persisted.Deleted == 0 {
			res.DeletedCount = 0
		}
		log.Error("ingest failed", "phase", PhaseOf(err), "saved", res.SavedCount, "error", err)
		return res, err
	}

	log.Info("ingest completed",
		"received", res.ReceivedCount,
		"valid", res.ValidCount,
		"rejected", res.RejectedCount,
		"added", res.AddedCount,
		"updated", res.UpdatedCount,
		"unchanged", res.UnchangedCount,
		"deleted", res.DeletedCount,
		"saved", res.SavedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// candidates turns the payload into normalized records and fills the
// received count and table details on res.
func (s *Service) candidates(req IngestRequest, res *IngestResult) ([]PersonRecord, error) {
	var raws []RawRecord

	if len(bytes.TrimSpace(req.Data)) == 0 {
		return nil, phaseError(PhaseParse, ErrEmptyInput)
	}

	switch req.Format {
	case FormatJSON:
		objs, err := DecodeJSONObjects(req.Data)
		if err != nil {
			return nil, phaseError(PhaseParse, err)
		}
		raws = make([]RawRecord, len(objs))
		for i, obj := range objs {
			raws[i] = RawFromObject(obj, s.aliases)
		}

	case FormatCSV, "":
		res.Format = FormatCSV
		text, err := NormalizeText(req.Data)
		if err != nil {
			return nil, phaseError(PhaseParse, fmt.Errorf("%w: %v", ErrParse, err))
		}
		table, err := ParseTabular(text)
		if err != nil {
			return nil, phaseError(PhaseParse, err)
		}
		res.Delimiter = string(table.Delimiter)
		res.Lenient = table.Lenient

		cols, err := MapHeaders(table.Rows[0], s.aliases)
		if err != nil {
			return nil, phaseError(PhaseMap, err)
		}
		rows := table.Rows[1:]
		raws = make([]RawRecord, len(rows))
		for i, row := range rows {
			raws[i] = cols.Extract(row)
		}

	default:
		return nil, phaseError(PhaseParse, fmt.Errorf("%w: unsupported format %q", ErrParse, req.Format))
	}

	res.ReceivedCount = len(raws)
	if len(raws) == 0 {
		return nil, phaseError(PhaseParse, ErrEmptyInput)
	}

	recs := make([]PersonRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := NormalizeRecord(raw); ok {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, phaseError(PhaseNormalize, ErrNoValidRecords)
	}
	return recs, nil
}

// acquireWriter takes the in-process lock and, when the store is shared
// between processes, the store lock as well.
func (s *Service) acquireWriter(ctx context.Context) (func(), error) {
	if err := s.lock.Acquire(ctx); err != nil {
		return nil, err
	}

	locker, ok := s.dir.(IngestLocker)
	if !ok {
		return s.lock.Release, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlockStore, err := locker.LockIngest(lockCtx)
	if err != nil {
		s.lock.Release()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrIngestInProgress
		}
		return nil, err
	}

	return func() {
		unlockStore()
		s.lock.Release()
	}, nil
}
