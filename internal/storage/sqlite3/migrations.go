/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sqlite3

import (
	"database/sql"
	"fmt"

	gologme "github.com/gologme/log"

	"github.com/JB-SelfCompany/attachmail/internal/logging"
)

const (
	currentSchemaVersion = 3
)

// GetSchemaVersion returns the current schema version from the database.
// Databases without a schema_version table are version 1.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	_, err = db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, strftime('%s', 'now'))", version)
	if err != nil {
		return fmt.Errorf("failed to insert schema version: %w", err)
	}
	return nil
}

// migrateV1toV2 adds the sniffed_type and extension columns
func migrateV1toV2(db *sql.DB, log *gologme.Logger) error {
	log.Infoln("Migrating database schema from v1 to v2...")

	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='attachments'").Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check for attachments table: %w", err)
	}
	if tableExists == 0 {
		log.Infoln("Table 'attachments' doesn't exist yet, will be created with new schema")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	for _, column := range []string{"sniffed_type", "extension"} {
		var columnExists int
		err = tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('attachments') WHERE name=?", column).Scan(&columnExists)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", column, err)
		}
		if columnExists > 0 {
			log.Infof("Column %s already exists, skipping", column)
			continue
		}
		if _, err = tx.Exec("ALTER TABLE attachments ADD COLUMN " + column + " TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("failed to add %s column: %w", column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Infoln("Migration to v2 completed successfully")
	return nil
}

// migrateV2toV3 rebuilds the attachments table so that the primary key
// includes the part number.
func migrateV2toV3(db *sql.DB, log *gologme.Logger) error {
	log.Infoln("Migrating database schema from v2 to v3...")

	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='attachments'").Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check for attachments table: %w", err)
	}
	if tableExists == 0 {
		log.Infoln("Table 'attachments' doesn't exist yet, will be created with new schema")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	for _, stmt := range []string{
		"CREATE TABLE attachments_v3 (" + attachmentsDefinition + ")",
		"INSERT INTO attachments_v3 (" + attachmentColumns + ") SELECT " + attachmentColumns + " FROM attachments",
		"DROP TABLE attachments",
		"ALTER TABLE attachments_v3 RENAME TO attachments",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to rebuild attachments table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Infoln("Migration to v3 completed successfully")
	return nil
}

// RunMigrations brings the database to the current schema version
func RunMigrations(db *sql.DB, log *gologme.Logger) error {
	if log == nil {
		log = logging.Discard()
	}
	version, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	log.Debugf("Current database schema version: %d, target version: %d", version, currentSchemaVersion)
	if version >= currentSchemaVersion {
		return nil
	}

	for v := version; v < currentSchemaVersion; v++ {
		switch v {
		case 1:
			if err := migrateV1toV2(db, log); err != nil {
				return fmt.Errorf("migration v1->v2 failed: %w", err)
			}
			if err := SetSchemaVersion(db, 2); err != nil {
				return fmt.Errorf("failed to set schema version to 2: %w", err)
			}
		case 2:
			if err := migrateV2toV3(db, log); err != nil {
				return fmt.Errorf("migration v2->v3 failed: %w", err)
			}
			if err := SetSchemaVersion(db, 3); err != nil {
				return fmt.Errorf("failed to set schema version to 3: %w", err)
			}
		default:
			return fmt.Errorf("unknown migration version: %d", v)
		}
	}
	return nil
}

type StorageStats struct {
	MessageCount    int
	AttachmentCount int
	DeclaredSize    int64
	StoredSize      int64
	LargestFile     int64
	ByCategory      map[string]int
}

// GetStorageStats summarises the catalog
func GetStorageStats(db *sql.DB) (*StorageStats, error) {
	stats := &StorageStats{ByCategory: map[string]int{}}

	err := db.QueryRow(`
		SELECT
			COUNT(DISTINCT message_id),
			COUNT(*),
			IFNULL(SUM(size), 0),
			IFNULL(SUM(stored_size), 0),
			IFNULL(MAX(stored_size), 0)
		FROM attachments
	`).Scan(&stats.MessageCount, &stats.AttachmentCount, &stats.DeclaredSize, &stats.StoredSize, &stats.LargestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment stats: %w", err)
	}

	rows, err := db.Query("SELECT category, COUNT(*) FROM attachments GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}
	defer rows.Close() // nolint:errcheck
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}
