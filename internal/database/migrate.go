package database

import (
	"fmt"
	"os"

	"github.com/OCAP2/killcam/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MigratedSuffix is appended to a backup file once its rows are copied.
const MigratedSuffix = ".migrated"

// MigrateBackups copies every SQLite journal in paths into dst, one
// transaction per file, and renames each migrated file with MigratedSuffix.
// It stops at the first file that fails and returns the files migrated so far.
func MigrateBackups(dst *gorm.DB, paths []string, log zerolog.Logger) ([]string, error) {
	if err := Setup(dst); err != nil {
		return nil, fmt.Errorf("error preparing destination: %w", err)
	}

	migrated := make([]string, 0, len(paths))
	for _, path := range paths {
		src, err := OpenSQLite(path)
		if err != nil {
			return migrated, fmt.Errorf("error opening sqlite database %s: %w", path, err)
		}

		err = dst.Transaction(func(tx *gorm.DB) error {
			return migrateJournal(src, tx, log)
		})

		if sqlDB, dbErr := src.DB(); dbErr != nil {
			log.Error().Err(dbErr).Str("path", path).Msg("Error getting sqlite connection")
		} else if closeErr := sqlDB.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Error closing sqlite connection")
		}

		if err != nil {
			return migrated, fmt.Errorf("error migrating %s: %w", path, err)
		}

		if err := os.Rename(path, path+MigratedSuffix); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error renaming sqlite file")
		}
		migrated = append(migrated, path)
	}

	if len(migrated) > 0 {
		log.Info().
			Int("count", len(migrated)).
			Strs("paths", migrated).
			Msg("Successfully migrated backups")
	}
	return migrated, nil
}

func migrateJournal(src, tx *gorm.DB, log zerolog.Logger) error {
	if err := migrateTable[model.Session](src, tx, log, "sessions", nil); err != nil {
		return err
	}
	if err := migrateTable(src, tx, log, "killcams", func(k *model.KillCam) { k.ID = 0 }); err != nil {
		return err
	}
	return migrateTable(src, tx, log, "rejections", func(r *model.Rejection) { r.ID = 0 })
}

// migrateTable copies all rows of M. reset clears fields the destination
// assigns itself, such as autoincrement IDs.
func migrateTable[M any](src, dst *gorm.DB, log zerolog.Logger, table string, reset func(*M)) error {
	var rows []M
	if err := src.Find(&rows).Error; err != nil {
		return fmt.Errorf("error reading %s: %w", table, err)
	}
	log.Info().Int("count", len(rows)).Str("table", table).Msg("Found records")
	if len(rows) == 0 {
		return nil
	}

	if reset != nil {
		for i := range rows {
			reset(&rows[i])
		}
	}

	err := dst.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 500).Error
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("Error migrating table")
		return fmt.Errorf("error writing %s: %w", table, err)
	}
	return nil
}
