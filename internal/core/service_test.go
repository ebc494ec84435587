package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestService(t *testing.T, dir Directory) (*Service, *fakeAccessLog, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)}
	log := &fakeAccessLog{}
	svc := NewService(dir, log, Options{
		ChunkSize: 2,
		LockWait:  50 * time.Millisecond,
		Now:       clock.now,
	})
	return svc, log, clock
}

func ingestJSON(t *testing.T, svc *Service, mode, body string) *IngestResult {
	t.Helper()
	res, err := svc.Ingest(context.Background(), IngestRequest{Mode: mode, Format: FormatJSON, Data: []byte(body)})
	if err != nil {
		t.Fatalf("Ingest(%s) error = %v", mode, err)
	}
	return res
}

func TestService_IngestThenLookup(t *testing.T) {
	dir := newFakeDirectory()
	svc, log, _ := newTestService(t, dir)
	ctx := context.Background()

	res := ingestJSON(t, svc, "MERGE",
		`[{"dni":"25328387","nombre":"Martin Lagamma","tipoIngreso":"Socio","cuota":"1"}]`)
	if res.AddedCount != 1 || res.SavedCount != 1 {
		t.Errorf("first ingest = %+v, want 1 added and saved", res)
	}

	got, err := svc.Lookup(ctx, "25.328.387")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Classification != FoundCurrent || got.Record.DisplayName != "Martin Lagamma" {
		t.Errorf("Lookup() = %+v, want FOUND_CURRENT for Martin Lagamma", got)
	}

	res = ingestJSON(t, svc, "MERGE",
		`[{"dni":"25328387","nombre":"Martin Lagamma","tipoIngreso":"Socio","cuota":"0"}]`)
	if res.UpdatedCount != 1 || res.AddedCount != 0 {
		t.Errorf("second ingest = %+v, want 1 updated", res)
	}

	got, err = svc.Lookup(ctx, "25328387")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Classification != FoundOwing || got.Status() != "OWING" {
		t.Errorf("Lookup() = %+v, want FOUND_OWING", got)
	}

	entries := log.all()
	if len(entries) != 2 {
		t.Fatalf("access log has %d entries, want 2", len(entries))
	}
	last := entries[1]
	if !last.Found || last.Snapshot == nil || last.Snapshot.DuesStatus {
		t.Errorf("last entry = %+v, want found with owing snapshot", last)
	}
}

func TestService_IngestSemicolonCSV(t *testing.T) {
	dir := newFakeDirectory()
	svc, _, _ := newTestService(t, dir)

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Mode: "REPLACE",
		Data: []byte("dni;nombre;cuota\n12345678;Ana Ruiz;0"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Format != FormatCSV || res.Delimiter != ";" {
		t.Errorf("format/delimiter = %s/%q, want csv/;", res.Format, res.Delimiter)
	}

	rec, ok := dir.get("12345678")
	if !ok || rec.DisplayName != "Ana Ruiz" || rec.DuesStatus {
		t.Errorf("stored = %+v, %v, want Ana Ruiz owing", rec, ok)
	}
}

func TestService_IngestReplaceDeletes(t *testing.T) {
	dir := newFakeDirectory(person("1", "Ana", true), person("2", "Bruno", true), person("3", "Carla", true))
	svc, _, _ := newTestService(t, dir)

	res := ingestJSON(t, svc, "REPLACE", `[{"dni":"2","nombre":"Bruno","cuota":"1"},{"dni":"4","nombre":"Dario"}]`)

	if res.DeletedCount != 2 || res.AddedCount != 1 || res.UnchangedCount != 1 {
		t.Errorf("result = %+v, want 2 deleted, 1 added, 1 unchanged", res)
	}
	list, _ := dir.List(context.Background())
	if got := keysOf(list); len(got) != 2 || got[0] != "2" || got[1] != "4" {
		t.Errorf("directory keys = %v, want [2 4]", got)
	}
}

func TestService_IngestLegacyModes(t *testing.T) {
	tests := []struct {
		mode string
		want Mode
	}{
		{"NUEVO", ModeReplace},
		{"reemplazar", ModeReplace},
		{"AGREGAR", ModeMerge},
		{" merge ", ModeMerge},
	}

	for _, tt := range tests {
		svc, _, _ := newTestService(t, newFakeDirectory())
		res := ingestJSON(t, svc, tt.mode, `[{"dni":"1","nombre":"Ana"}]`)
		if res.Mode != tt.want {
			t.Errorf("Ingest(mode %q).Mode = %s, want %s", tt.mode, res.Mode, tt.want)
		}
	}
}

func TestService_IngestRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name      string
		req       IngestRequest
		wantErr   error
		wantPhase string
	}{
		{
			name:      "invalid mode",
			req:       IngestRequest{Mode: "DELETE", Data: []byte("dni,nombre\n1,Ana")},
			wantErr:   ErrInvalidMode,
			wantPhase: "",
		},
		{
			name:      "missing name column",
			req:       IngestRequest{Mode: "REPLACE", Data: []byte("dni,cuota\n1,1")},
			wantErr:   ErrMissingRequiredColumns,
			wantPhase: PhaseMap,
		},
		{
			name:      "no valid rows",
			req:       IngestRequest{Mode: "REPLACE", Data: []byte("dni,nombre\nabc,Ana\n123,")},
			wantErr:   ErrNoValidRecords,
			wantPhase: PhaseNormalize,
		},
		{
			name:      "header only",
			req:       IngestRequest{Mode: "REPLACE", Data: []byte("dni,nombre\n")},
			wantErr:   ErrEmptyInput,
			wantPhase: PhaseParse,
		},
		{
			name:      "blank body",
			req:       IngestRequest{Mode: "MERGE", Data: []byte(" \r\n")},
			wantErr:   ErrEmptyInput,
			wantPhase: PhaseParse,
		},
		{
			name:      "empty json array",
			req:       IngestRequest{Mode: "REPLACE", Format: FormatJSON, Data: []byte("[]")},
			wantErr:   ErrEmptyInput,
			wantPhase: PhaseParse,
		},
		{
			name:      "malformed json",
			req:       IngestRequest{Mode: "MERGE", Format: FormatJSON, Data: []byte("{")},
			wantErr:   ErrParse,
			wantPhase: PhaseParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory(person("9", "Keep", true))
			svc, _, _ := newTestService(t, dir)

			res, err := svc.Ingest(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if PhaseOf(err) != tt.wantPhase {
				t.Errorf("PhaseOf() = %q, want %q", PhaseOf(err), tt.wantPhase)
			}
			if res != nil {
				t.Errorf("Ingest() result = %+v, want nil", res)
			}
			if len(dir.upserts) != 0 {
				t.Errorf("UpsertMany called %d times", len(dir.upserts))
			}
			if _, ok := dir.get("9"); !ok {
				t.Error("existing record was removed")
			}
		})
	}
}

func TestService_IngestCountsRejectedRows(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeDirectory())

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Mode: "MERGE",
		Data: []byte("dni,nombre\n1,Ana\nx,Bad\n2,\n3,Carla"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.ReceivedCount != 4 || res.ValidCount != 2 || res.RejectedCount != 2 {
		t.Errorf("counts = received %d valid %d rejected %d, want 4 2 2",
			res.ReceivedCount, res.ValidCount, res.RejectedCount)
	}
}

func TestService_IngestDryRun(t *testing.T) {
	dir := newFakeDirectory(person("1", "Ana", true))
	svc, _, _ := newTestService(t, dir)

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Mode:   "REPLACE",
		Format: FormatJSON,
		Data:   []byte(`[{"dni":"2","nombre":"Bruno"}]`),
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !res.DryRun || res.AddedCount != 1 || res.DeletedCount != 1 || res.SavedCount != 0 {
		t.Errorf("dry run result = %+v", res)
	}
	if len(dir.upserts) != 0 {
		t.Error("dry run wrote to the directory")
	}
	if _, ok := dir.get("1"); !ok {
		t.Error("dry run deleted a record")
	}
}

func TestService_IngestPartialFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.failUpsertCall = 2
	svc, _, _ := newTestService(t, dir)

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Mode: "MERGE",
		Data: []byte("dni,nombre\n1,A\n2,B\n3,C\n4,D\n5,E"),
	})

	if !errors.Is(err, ErrPersistence) || PhaseOf(err) != PhaseUpsert {
		t.Fatalf("Ingest() error = %v, want upsert persistence error", err)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Range() != "3-4" {
		t.Errorf("failed range = %v, want 3-4", err)
	}
	if res == nil || res.SavedCount != 2 {
		t.Errorf("result = %+v, want SavedCount 2", res)
	}
}

func TestService_IngestOutlivesCallerCancellation(t *testing.T) {
	dir := newFakeDirectory(person("9", "Old", true))
	svc, _, _ := newTestService(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Ingest(ctx, IngestRequest{
		Mode: "REPLACE",
		Data: []byte("dni,nombre\n1,A\n2,B\n3,C\n4,D\n5,E"),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v, want the load to finish after the caller went away", err)
	}
	if res.SavedCount != 5 || res.DeletedCount != 1 {
		t.Errorf("result = %+v, want 5 saved and 1 deleted", res)
	}
	if n, _ := dir.Count(context.Background()); n != 5 {
		t.Errorf("directory size = %d, want 5", n)
	}
}

func TestService_IngestSnapshotFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.failList = true
	svc, _, _ := newTestService(t, dir)

	_, err := svc.Ingest(context.Background(), IngestRequest{Mode: "MERGE", Data: []byte("dni,nombre\n1,A")})
	if !errors.Is(err, ErrPersistence) || PhaseOf(err) != PhaseSnapshot {
		t.Errorf("Ingest() error = %v, want snapshot persistence error", err)
	}
}

func TestService_IngestLockContention(t *testing.T) {
	dir := newLockingDirectory()
	svc, _, _ := newTestService(t, dir)

	// Another process holds the store lock.
	dir.lock <- struct{}{}

	_, err := svc.Ingest(context.Background(), IngestRequest{Mode: "MERGE", Data: []byte("dni,nombre\n1,A")})
	if !errors.Is(err, ErrIngestInProgress) || PhaseOf(err) != PhaseLock {
		t.Fatalf("Ingest() error = %v, want ErrIngestInProgress in lock phase", err)
	}
	if svc.WriterStatus().Held {
		t.Error("writer lock still held after a failed store lock")
	}

	<-dir.lock
	if _, err := svc.Ingest(context.Background(), IngestRequest{Mode: "MERGE", Data: []byte("dni,nombre\n1,A")}); err != nil {
		t.Errorf("Ingest() after release error = %v", err)
	}
}

func TestService_LookupNotFound(t *testing.T) {
	svc, log, clock := newTestService(t, newFakeDirectory())
	ctx := ContextWithClientIP(context.Background(), "10.0.0.7")

	got, err := svc.Lookup(ctx, "99999999")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Found() || got.Record != nil || got.Status() != "" {
		t.Errorf("Lookup() = %+v, want NOT_FOUND", got)
	}

	entries := log.all()
	if len(entries) != 1 {
		t.Fatalf("access log has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Found || e.Snapshot != nil || e.QueriedKey != "99999999" || e.ClientIP != "10.0.0.7" {
		t.Errorf("entry = %+v", e)
	}
	if !e.Timestamp.Equal(clock.t) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, clock.t)
	}
}

func TestService_LookupInvalidQuery(t *testing.T) {
	svc, log, _ := newTestService(t, newFakeDirectory())

	for _, q := range []string{"", "abc", " - "} {
		if _, err := svc.Lookup(context.Background(), q); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Lookup(%q) error = %v, want ErrInvalidQuery", q, err)
		}
	}
	if n := len(log.all()); n != 0 {
		t.Errorf("access log has %d entries, want 0", n)
	}
}

func TestService_LookupStoreFailure(t *testing.T) {
	dir := newFakeDirectory()
	dir.failGet = true
	svc, log, _ := newTestService(t, dir)

	if _, err := svc.Lookup(context.Background(), "1"); !errors.Is(err, errStore) {
		t.Errorf("Lookup() error = %v, want store error", err)
	}
	if n := len(log.all()); n != 0 {
		t.Errorf("access log has %d entries, want 0", n)
	}
}

func TestService_LookupSurvivesLogFailure(t *testing.T) {
	svc, log, _ := newTestService(t, newFakeDirectory(person("1", "Ana", true)))
	log.fail = true

	got, err := svc.Lookup(context.Background(), "1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Classification != FoundCurrent {
		t.Errorf("Classification = %s, want FOUND_CURRENT", got.Classification)
	}
}

func TestService_AccessLog(t *testing.T) {
	svc, _, clock := newTestService(t, newFakeDirectory(person("1", "Ana", true)))
	ctx := context.Background()

	for _, ts := range []time.Time{
		time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	} {
		clock.t = ts
		if _, err := svc.Lookup(ctx, "1"); err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
	}

	entries, err := svc.AccessLog(ctx, "2025-03-01", "2025-03-01")
	if err != nil {
		t.Fatalf("AccessLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("AccessLog() returned %d entries, want 2", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Error("entries are not newest first")
	}

	if _, err := svc.AccessLog(ctx, "2025-03-02", "2025-03-01"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidRange", err)
	}
}

func TestDayRange(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	now := time.Date(2025, 3, 2, 1, 30, 0, 0, time.UTC) // 2025-03-01 22:30 local

	tests := []struct {
		name     string
		from, to string
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "single day",
			from:     "2025-03-01",
			to:       "2025-03-01",
			wantFrom: time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "missing to mirrors from",
			from:     "2025-02-10",
			wantFrom: time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 2, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "missing from mirrors to",
			to:       "2025-02-10",
			wantFrom: time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 2, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "both missing is today in loc",
			wantFrom: time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name:     "multi day",
			from:     "2025-01-30",
			to:       "2025-02-01",
			wantFrom: time.Date(2025, 1, 30, 3, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 2, 2, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := DayRange(tt.from, tt.to, loc, now)
			if err != nil {
				t.Fatalf("DayRange() error = %v", err)
			}
			if !from.Equal(tt.wantFrom) || !to.Equal(tt.wantTo) {
				t.Errorf("DayRange(%q, %q) = [%v, %v), want [%v, %v)", tt.from, tt.to, from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}

	for _, bad := range [][2]string{{"2025-13-01", ""}, {"01/03/2025", ""}, {"2025-03-02", "2025-03-01"}} {
		if _, _, err := DayRange(bad[0], bad[1], loc, now); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("DayRange(%q, %q) error = %v, want ErrInvalidRange", bad[0], bad[1], err)
		}
	}
}
