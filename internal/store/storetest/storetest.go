// Package storetest holds the behaviour every directory and access log
// backend must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/roster/internal/core"
)

// Factory returns fresh, empty stores for one subtest.
type Factory func(t *testing.T) (core.Directory, core.AccessLog)

// Run exercises dir and log through the core interfaces.
func Run(t *testing.T, newStores Factory) {
	t.Run("DirectoryUpsertAndGet", func(t *testing.T) { testUpsertAndGet(t, newStores) })
	t.Run("DirectoryOverwrite", func(t *testing.T) { testOverwrite(t, newStores) })
	t.Run("DirectoryListOrdered", func(t *testing.T) { testListOrdered(t, newStores) })
	t.Run("DirectoryDeleteKeys", func(t *testing.T) { testDeleteKeys(t, newStores) })
	t.Run("DirectoryLargeChunk", func(t *testing.T) { testLargeChunk(t, newStores) })
	t.Run("AccessLogAppendQuery", func(t *testing.T) { testAccessLog(t, newStores) })
	t.Run("ServiceRoundTrip", func(t *testing.T) { testServiceRoundTrip(t, newStores) })
}

var updated = time.Date(2025, 3, 1, 12, 30, 45, 123_000_000, time.UTC)

func rec(key, name string, current bool) core.PersonRecord {
	return core.PersonRecord{Key: key, DisplayName: name, DuesStatus: current, UpdatedAt: updated}
}

func testUpsertAndGet(t *testing.T, newStores Factory) {
	dir, _ := newStores(t)
	ctx := context.Background()

	full := core.PersonRecord{
		Key:         "25328387",
		DisplayName: "Martin Lagamma",
		Category:    "Socio",
		AccessZone:  "Puerta 3",
		Location:    "Platea Norte",
		DuesStatus:  false,
		UpdatedAt:   updated,
	}
	require.NoError(t, dir.UpsertMany(ctx, []core.PersonRecord{full, rec("1", "Ana", true)}))

	got, ok, err := dir.Get(ctx, "25328387")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.SameContent(full), "got %+v", got)
	assert.True(t, got.UpdatedAt.Equal(updated), "UpdatedAt = %v", got.UpdatedAt)

	got, ok, err = dir.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", got.Location)
	assert.True(t, got.DuesStatus)

	_, ok, err = dir.Get(ctx, "404")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := dir.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testOverwrite(t *testing.T, newStores Factory) {
	dir, _ := newStores(t)
	ctx := context.Background()

	first := rec("7", "Old Name", true)
	first.Location = "Norte"
	require.NoError(t, dir.UpsertMany(ctx, []core.PersonRecord{first}))

	second := rec("7", "New Name", false)
	second.UpdatedAt = updated.Add(time.Hour)
	require.NoError(t, dir.UpsertMany(ctx, []core.PersonRecord{second}))

	got, ok, err := dir.Get(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.SameContent(second), "wholesale overwrite expected, got %+v", got)
	assert.True(t, got.UpdatedAt.Equal(second.UpdatedAt))

	n, err := dir.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testListOrdered(t *testing.T, newStores Factory) {
	dir, _ := newStores(t)
	ctx := context.Background()

	require.NoError(t, dir.UpsertMany(ctx, []core.PersonRecord{
		rec("30", "C", true), rec("1000", "A", true), rec("2", "B", false),
	}))

	list, err := dir.List(ctx)
	require.NoError(t, err)

	keys := make([]string, len(list))
	for i, r := range list {
		keys[i] = r.Key
	}
	// Keys are text, so ordering is lexicographic.
	assert.Equal(t, []string{"1000", "2", "30"}, keys)
}

func testDeleteKeys(t *testing.T, newStores Factory) {
	dir, _ := newStores(t)
	ctx := context.Background()

	require.NoError(t, dir.UpsertMany(ctx, []core.PersonRecord{
		rec("1", "A", true), rec("2", "B", true), rec("3", "C", true),
	}))
	require.NoError(t, dir.DeleteKeys(ctx, []string{"1", "3", "missing"}))
	require.NoError(t, dir.DeleteKeys(ctx, nil))

	list, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].Key)
}

func testLargeChunk(t *testing.T, newStores Factory) {
	dir, _ := newStores(t)
	ctx := context.Background()

	recs := make([]core.PersonRecord, core.DefaultChunkSize)
	for i := range recs {
		recs[i] = rec(fmt.Sprintf("%08d", i), fmt.Sprintf("Person %d", i), i%2 == 0)
	}
	require.NoError(t, dir.UpsertMany(ctx, recs))

	n, err := dir.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultChunkSize, n)
}

func testAccessLog(t *testing.T, newStores Factory) {
	_, log := newStores(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []core.AccessLogEntry{
		{ID: uuid.New(), Timestamp: day.Add(-time.Millisecond), QueriedKey: "1"},
		{ID: uuid.New(), Timestamp: day, QueriedKey: "2", Found: true, ClientIP: "10.0.0.1",
			Snapshot: &core.PersonSnapshot{DisplayName: "Ana", Category: "Socio", AccessZone: "P1", Location: "Norte", DuesStatus: true}},
		{ID: uuid.New(), Timestamp: day.Add(8 * time.Hour), QueriedKey: "3", Found: true,
			Snapshot: &core.PersonSnapshot{DisplayName: "Bruno", DuesStatus: false}},
		{ID: uuid.New(), Timestamp: day.Add(24 * time.Hour), QueriedKey: "4"},
	}
	for _, e := range entries {
		require.NoError(t, log.Append(ctx, e))
	}

	got, err := log.Query(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "3", got[0].QueriedKey, "newest first")
	assert.Equal(t, "2", got[1].QueriedKey)

	found := got[1]
	assert.Equal(t, entries[1].ID, found.ID)
	assert.True(t, found.Timestamp.Equal(day))
	assert.True(t, found.Found)
	assert.Equal(t, "10.0.0.1", found.ClientIP)
	require.NotNil(t, found.Snapshot)
	assert.Equal(t, *entries[1].Snapshot, *found.Snapshot)

	got, err = log.Query(ctx, day.Add(-time.Hour), day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].QueriedKey)
	assert.False(t, got[0].Found)
	assert.Nil(t, got[0].Snapshot)
}

// testServiceRoundTrip drives the backend through core.Service the way the
// server does.
func testServiceRoundTrip(t *testing.T, newStores Factory) {
	dir, log := newStores(t)
	ctx := context.Background()
	svc := core.NewService(dir, log, core.Options{ChunkSize: 2})

	res, err := svc.Ingest(ctx, core.IngestRequest{
		Mode: "REPLACE",
		Data: []byte("dni;nombre;sector;cuota\n1;Ana;Socio;1\n2;Bruno;Platea;0\n3;Carla;;1\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SavedCount)

	res, err = svc.Ingest(ctx, core.IngestRequest{
		Mode:   "REPLACE",
		Format: core.FormatJSON,
		Data:   []byte(`[{"dni":"2","nombre":"Bruno","sector":"Platea","cuota":"1"},{"dni":"4","nombre":"Dario"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 1, res.AddedCount)

	got, err := svc.Lookup(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, core.FoundCurrent, got.Classification)

	got, err = svc.Lookup(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, core.NotFound, got.Classification)

	from := time.Now().UTC().Add(-time.Hour)
	entries, err := log.Query(ctx, from, from.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
