package main

import (
	"fmt"
	"path/filepath"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/database"
	"github.com/OCAP2/killcam/internal/storage"
	gormstorage "github.com/OCAP2/killcam/internal/storage/gorm"
	"github.com/OCAP2/killcam/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/killcam/internal/storage/sqlite"
)

// openStorage creates and initializes the configured journal. A backend that
// fails to start is replaced by the in-memory one so the kill-cam keeps
// working without a journal on disk.
func openStorage(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg)
	if err == nil {
		err = backend.Init()
	}
	if err != nil {
		Logger.Error("Failed to initialize storage backend, using memory", "error", err, "type", storageCfg.Type)
		backend = memory.New(storageCfg.Memory)
		if err := backend.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize memory storage: %w", err)
		}
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbManager := database.NewManager(componentLogger("database"))
		if err := dbManager.Connect(storageCfg); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbManager.ShouldSaveLocal {
			// Postgres is down: journal to SQLite with dumps, like the sqlite type
			if dbManager.SqlDB != nil {
				_ = dbManager.SqlDB.Close()
			}
			return createSQLiteBackend(storageCfg.SQLite)
		}

		migrateBackups(dbManager)
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return gormstorage.New(gormstorage.Dependencies{
			DB:     dbManager.DB,
			Logger: Logger,
		}), nil

	case "sqlite":
		return createSQLiteBackend(storageCfg.SQLite)

	default:
		Logger.Info("Memory storage backend initialized", "maxRows", storageCfg.Memory.MaxRows)
		return memory.New(storageCfg.Memory), nil
	}
}

func createSQLiteBackend(cfg config.SQLiteConfig) (storage.Backend, error) {
	dumpPath := inAddonFolder(cfg.DumpPath)
	if dumpPath == "" {
		dumpPath = filepath.Join(AddonFolder, fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))
	}

	backend, err := sqlitestorage.New(sqlitestorage.Config{
		Path:         inAddonFolder(cfg.Path),
		DumpInterval: cfg.DumpInterval,
		DumpPath:     dumpPath,
	}, Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
	}
	Logger.Info("SQLite storage backend initialized", "path", cfg.Path, "dumpPath", dumpPath)
	return backend, nil
}

// migrateBackups moves journals dumped while Postgres was unreachable into
// Postgres.
func migrateBackups(dbManager *database.Manager) {
	paths, err := database.GetBackupDBPaths(AddonFolder)
	if err != nil {
		Logger.Warn("Failed to list SQLite backups", "error", err)
		return
	}
	if len(paths) == 0 {
		return
	}

	migrated, err := database.MigrateBackups(dbManager.DB, paths, dbManager.Logger)
	if err != nil {
		Logger.Error("Failed to migrate SQLite backups", "error", err, "migrated", len(migrated))
		return
	}
	Logger.Info("Migrated SQLite backups, delete the .migrated files once verified", "count", len(migrated))
}
