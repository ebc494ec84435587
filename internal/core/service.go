package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/roster/internal/config"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	ChunkSize        int
	ChunkConcurrency int
	LockWait         time.Duration
	IngestTimeout    time.Duration
	Aliases          *AliasTable
	Location         *time.Location

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// OptionsFromConfig builds Options from the ingest and audit settings,
// loading the alias overrides file when one is configured.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		ChunkSize:        cfg.Ingest.ChunkSize,
		ChunkConcurrency: cfg.Ingest.ChunkConcurrency,
		LockWait:         cfg.Ingest.LockWait,
		IngestTimeout:    cfg.Ingest.Timeout,
	}

	loc, err := cfg.Audit.Location()
	if err != nil {
		return opts, fmt.Errorf("audit timezone: %w", err)
	}
	opts.Location = loc

	if cfg.Ingest.AliasesFile != "" {
		aliases, err := LoadAliases(cfg.Ingest.AliasesFile)
		if err != nil {
			return opts, err
		}
		opts.Aliases = aliases
	}

	return opts, nil
}

// Service ties the directory, the access log and the ingest pipeline
// together. It is safe for concurrent use; ingests are serialized by the
// writer lock while lookups run freely.
type Service struct {
	dir     Directory
	log     AccessLog
	aliases *AliasTable
	exec    Executor
	lock    *WriterLock

	lockWait time.Duration
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a Service over the given stores.
func NewService(dir Directory, log AccessLog, opts Options) *Service {
	s := &Service{
		dir:     dir,
		log:     log,
		aliases: opts.Aliases,
		exec: Executor{
			ChunkSize:   opts.ChunkSize,
			Concurrency: opts.ChunkConcurrency,
		},
		lock:     NewWriterLock(opts.LockWait),
		lockWait: opts.LockWait,
		timeout:  opts.IngestTimeout,
		loc:      opts.Location,
		now:      opts.Now,
	}

	if s.aliases == nil {
		s.aliases = DefaultAliases()
	}
	if s.lockWait <= 0 {
		s.lockWait = DefaultLockWait
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the timezone used for calendar-day audit queries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Directory lists every record ordered by key.
func (s *Service) Directory(ctx context.Context) ([]PersonRecord, error) {
	return s.dir.List(ctx)
}

// DirectorySize counts the records in the directory.
func (s *Service) DirectorySize(ctx context.Context) (int, error) {
	return s.dir.Count(ctx)
}

// WriterStatus reports whether an ingest is running.
func (s *Service) WriterStatus() WriterLockStatus {
	return s.lock.Status()
}

// WaitForIngest blocks until no ingest holds the writer lock.
func (s *Service) WaitForIngest(ctx context.Context) error {
	return s.lock.WaitForDrain(ctx)
}
