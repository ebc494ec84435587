package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/store"
)

func TestOpen_Memory(t *testing.T) {
	b, err := store.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.DriverMemory, b.Driver)
	n, err := b.Directory.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_SQLitePersists(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "roster.db")}

	b, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, b.Directory.UpsertMany(ctx, []core.PersonRecord{{Key: "1", DisplayName: "Ana", DuesStatus: true}}))
	b.Close()
	b.Close()

	b, err = store.Open(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()

	rec, ok, err := b.Directory.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", rec.DisplayName)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown database driver")
}
