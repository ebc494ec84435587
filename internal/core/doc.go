// Package core provides the roster ingestion, reconciliation and gate lookup
// logic.
//
// This package holds all domain logic independent of any transport or store.
// The HTTP server, the rosterctl CLI and the tests all drive it through
// [Service].
//
// # Ingest Pipeline
//
// An administrative load flows through:
//
//  1. [NormalizeText]: BOM removal, Windows-1252 fallback, \n line endings
//  2. [ParseTabular]: delimiter detection and quote-aware row splitting
//  3. [MapHeaders]: header aliases (dni, documento, nombre, ...) to fields
//  4. [NormalizeRecord]: per-field rules; bad rows are counted, not fatal
//  5. [Reconcile]: last-write-wins dedup and REPLACE or MERGE against the directory
//  6. [Executor]: deletes, then chunked upserts
//
// JSON arrays skip steps 1-3 and resolve properties through the same alias
// table ([RawFromObject]).
//
// Steps 5 and 6 run under a single-writer lock ([WriterLock], plus the
// store's [IngestLocker] when it has one) so two loads never interleave.
//
// # Lookups
//
// [Service.Lookup] normalizes the query like an ingested key, classifies the
// hit as FOUND_CURRENT, FOUND_OWING or NOT_FOUND and appends one
// [AccessLogEntry] per attempt.
//
// # Error Handling
//
// Failures are sentinel errors ([ErrParse], [ErrMissingRequiredColumns],
// [ErrPersistence], ...) wrapped in an [IngestError] naming the phase.
// [MapError] turns any of them into a coded [UserMessage].
package core
