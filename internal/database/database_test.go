package database

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     "5433",
		Username: "kc",
		Password: "secret",
		Database: "journal",
	})
	assert.Equal(t, "host=db port=5433 user=kc password=secret dbname=journal sslmode=disable", dsn)
}

func TestOpenSQLite_MemoryIsPrivate(t *testing.T) {
	a, err := OpenSQLite("")
	require.NoError(t, err)
	b, err := OpenSQLite("")
	require.NoError(t, err)

	require.NoError(t, Setup(a))

	assert.True(t, a.Migrator().HasTable(&model.KillCam{}))
	assert.False(t, b.Migrator().HasTable(&model.KillCam{}))
}

func TestSetup_CreatesTables(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	require.NoError(t, Setup(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, Setup(db))
	require.NoError(t, db.Create(&model.Session{ID: "s1", Scene: "Base", StartedAt: time.Now()}).Error)

	path := filepath.Join(t.TempDir(), "dumps", "journal.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	// a second dump replaces the first
	require.NoError(t, db.Create(&model.Session{ID: "s2", Scene: "Base", StartedAt: time.Now()}).Error)
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := OpenSQLite(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.Session{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSQLite("")
	require.NoError(t, err)

	assert.EqualError(t, DumpMemoryDBToDisk(db, ""), "sqlite file path not set")
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt", "db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestManager_ConnectFallsBackToSQLite(t *testing.T) {
	m := NewManager(zerolog.New(io.Discard))

	err := m.Connect(config.StorageConfig{
		Postgres: config.PostgresConfig{
			Host:     "127.0.0.1",
			Port:     "1",
			Username: "postgres",
			Password: "postgres",
			Database: "killcam",
		},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "fallback.db")},
	})
	require.NoError(t, err)

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Rejection{}))
}

func TestManager_SetupWithoutConnect(t *testing.T) {
	m := NewManager(zerolog.New(io.Discard))
	assert.Error(t, m.Setup())
}
