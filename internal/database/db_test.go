package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConnectionString(t *testing.T) {
	standard := buildConnectionString("/tmp/config.db", ProfileStandard)
	assert.Contains(t, standard, "journal_mode(WAL)")
	assert.Contains(t, standard, "synchronous(NORMAL)")
	assert.Contains(t, standard, "foreign_keys(1)")

	cache := buildConnectionString("/tmp/client_data.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "temp_store(MEMORY)")
}

func TestNewAndMigrate(t *testing.T) {
	for _, name := range []string{"config", "client_data"} {
		t.Run(name, func(t *testing.T) {
			db, err := New(Config{Path: filepath.Join(t.TempDir(), name+".db"), Name: name})
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, db.Migrate())
			// Schemas are idempotent
			require.NoError(t, db.Migrate())
			assert.NoError(t, db.QuickCheck(context.Background()))
		})
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "config.db"), Name: "config"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	var count int
	err = db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('bucket_configs', 'allocation_settings')",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "other.db"), Name: "other"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}
