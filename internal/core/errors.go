package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput is returned when a submission carries no rows at all.
	ErrEmptyInput = errors.New("empty input")

	// ErrParse is returned for tabular or JSON input that yields no rows.
	ErrParse = errors.New("parse error")

	// ErrMissingRequiredColumns is returned when key or displayName has no column.
	ErrMissingRequiredColumns = errors.New("missing required columns")

	// ErrNoValidRecords is returned when every row was rejected.
	ErrNoValidRecords = errors.New("no valid records")

	// ErrInvalidMode is returned for a mode other than REPLACE or MERGE.
	ErrInvalidMode = errors.New("invalid ingest mode")

	// ErrInvalidQuery is returned when a lookup key has no digits.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidRange is returned for malformed or reversed audit date ranges.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrPersistence wraps store failures during an ingest.
	ErrPersistence = errors.New("persistence error")

	// ErrIngestInProgress is returned when the writer lock could not be taken
	// within the configured wait.
	ErrIngestInProgress = errors.New("another ingest is in progress")
)

// MissingColumnsError names the required fields that could not be resolved.
type MissingColumnsError struct {
	Fields []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.String()
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingRequiredColumns
}

// PersistenceError reports a failed store operation. Start and End are the
// 1-based inclusive positions of the failed chunk within the write set; both
// are zero for the delete step.
type PersistenceError struct {
	Op    string
	Start int
	End   int
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Start == 0 {
		return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence error: %s records %s: %v", e.Op, e.Range(), e.Err)
}

// Range renders the chunk bounds as "start-end".
func (e *PersistenceError) Range() string {
	if e.Start == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", e.Start, e.End)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Ingest phases, reported on failure.
const (
	PhaseParse     = "parse"
	PhaseMap       = "map"
	PhaseNormalize = "normalize"
	PhaseLock      = "lock"
	PhaseSnapshot  = "snapshot"
	PhaseDelete    = "delete"
	PhaseUpsert    = "upsert"
)

// IngestError ties a failure to the ingest phase that produced it.
type IngestError struct {
	Phase string
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Phase, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func phaseError(phase string, err error) error {
	return &IngestError{Phase: phase, Err: err}
}

// PhaseOf returns the failing ingest phase of err, or "".
func PhaseOf(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Phase
	}
	return ""
}
