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
	_ "github.com/mattn/go-sqlite3"

	"github.com/JB-SelfCompany/attachmail/internal/logging"
)

// SQLite3Storage is the attachment catalog.
type SQLite3Storage struct {
	*TableAttachments
	db     *sql.DB
	writer *Writer
}

// NewSQLite3Storage opens or creates the catalog at filename and migrates it
// to the current schema.
func NewSQLite3Storage(filename string, log *gologme.Logger) (*SQLite3Storage, error) {
	if log == nil {
		log = logging.Discard()
	}
	db, err := sql.Open("sqlite3", "file:"+filename+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	s := &SQLite3Storage{
		db:     db,
		writer: NewWriter(),
	}
	if err := RunMigrations(db, log); err != nil {
		db.Close() // nolint:errcheck
		return nil, fmt.Errorf("RunMigrations: %w", err)
	}
	if s.TableAttachments, err = NewTableAttachments(db, s.writer); err != nil {
		db.Close() // nolint:errcheck
		return nil, fmt.Errorf("NewTableAttachments: %w", err)
	}
	return s, nil
}

func (s *SQLite3Storage) Stats() (*StorageStats, error) {
	return GetStorageStats(s.db)
}

func (s *SQLite3Storage) Close() error {
	s.writer.Close()
	return s.db.Close()
}
