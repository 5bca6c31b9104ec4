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
	"time"

	"github.com/JB-SelfCompany/attachmail/internal/storage/types"
)

type TableAttachments struct {
	db                *sql.DB
	writer            *Writer
	selectAttachment  *sql.Stmt
	selectAttachments *sql.Stmt
	selectAll         *sql.Stmt
	countAttachments  *sql.Stmt
	createAttachment  *sql.Stmt
	deleteAttachment  *sql.Stmt
	selectFilePaths   *sql.Stmt
	selectTotalSize   *sql.Stmt
}

const attachmentsSchema = `
	CREATE TABLE IF NOT EXISTS attachments (` + attachmentsDefinition + `);
`

// Part numbers are unique within a message while identifiers may repeat.
const attachmentsDefinition = `
		message_id		TEXT NOT NULL,
		id				TEXT NOT NULL,
		part_number		INTEGER NOT NULL DEFAULT 0,
		name			TEXT NOT NULL,
		category		TEXT NOT NULL,
		content_type	TEXT NOT NULL DEFAULT '',
		sniffed_type	TEXT NOT NULL DEFAULT '', -- detected from the decoded content
		extension		TEXT NOT NULL DEFAULT '',
		disposition		TEXT NOT NULL DEFAULT '',
		size			INTEGER NOT NULL DEFAULT 0, -- declared size of the encoded part
		stored_size		INTEGER NOT NULL DEFAULT 0, -- bytes written to the file store
		file			TEXT NOT NULL,
		datetime		INTEGER NOT NULL,
		PRIMARY KEY (message_id, part_number, id)
`

const attachmentColumns = `
	message_id, id, part_number, name, category, content_type, sniffed_type,
	extension, disposition, size, stored_size, file, datetime
`

const selectAttachmentStmt = `
	SELECT ` + attachmentColumns + ` FROM attachments
	WHERE message_id = $1 AND id = $2
	ORDER BY part_number LIMIT 1
`

const selectAttachmentsStmt = `
	SELECT ` + attachmentColumns + ` FROM attachments
	WHERE message_id = $1
	ORDER BY part_number, id
`

const selectAllAttachmentsStmt = `
	SELECT ` + attachmentColumns + ` FROM attachments
	ORDER BY message_id, part_number, id
`

const countAttachmentsStmt = `
	SELECT COUNT(*) FROM attachments WHERE message_id = $1
`

const insertAttachmentStmt = `
	INSERT INTO attachments (` + attachmentColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const deleteAttachmentStmt = `
	DELETE FROM attachments WHERE message_id = $1 AND part_number = $2 AND id = $3
`

const selectFilePathsStmt = `
	SELECT file FROM attachments
`

const selectTotalSizeStmt = `
	SELECT IFNULL(SUM(stored_size), 0) FROM attachments
`

func NewTableAttachments(db *sql.DB, writer *Writer) (*TableAttachments, error) {
	t := &TableAttachments{
		db:     db,
		writer: writer,
	}
	_, err := db.Exec(attachmentsSchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	t.selectAttachment, err = db.Prepare(selectAttachmentStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectAttachmentStmt): %w", err)
	}
	t.selectAttachments, err = db.Prepare(selectAttachmentsStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectAttachmentsStmt): %w", err)
	}
	t.selectAll, err = db.Prepare(selectAllAttachmentsStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectAllAttachmentsStmt): %w", err)
	}
	t.countAttachments, err = db.Prepare(countAttachmentsStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(countAttachmentsStmt): %w", err)
	}
	t.createAttachment, err = db.Prepare(insertAttachmentStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertAttachmentStmt): %w", err)
	}
	t.deleteAttachment, err = db.Prepare(deleteAttachmentStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(deleteAttachmentStmt): %w", err)
	}
	t.selectFilePaths, err = db.Prepare(selectFilePathsStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectFilePathsStmt): %w", err)
	}
	t.selectTotalSize, err = db.Prepare(selectTotalSizeStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectTotalSizeStmt): %w", err)
	}
	return t, nil
}

// AttachmentCreate records an archived attachment. A zero Date is set to now.
func (t *TableAttachments) AttachmentCreate(rec *types.AttachmentRecord) error {
	if rec.Date.IsZero() {
		rec.Date = time.Now()
	}
	return t.writer.Do(t.db, nil, func(txn *sql.Tx) error {
		_, err := txn.Stmt(t.createAttachment).Exec(
			rec.MessageID, rec.ID, rec.PartNumber, rec.Name, rec.Category,
			rec.ContentType, rec.SniffedType, rec.Extension, rec.Disposition,
			rec.Size, rec.StoredSize, rec.File, rec.Date.Unix(),
		)
		return err
	})
}

// AttachmentSelect returns the lowest numbered part of a message carrying id.
func (t *TableAttachments) AttachmentSelect(messageID, id string) (*types.AttachmentRecord, error) {
	rec, err := scanAttachment(t.selectAttachment.QueryRow(messageID, id))
	if err != nil {
		return nil, fmt.Errorf("t.selectAttachment.QueryRow: %w", err)
	}
	return rec, nil
}

// AttachmentList returns the attachments of a message in part order, or
// every attachment when messageID is empty.
func (t *TableAttachments) AttachmentList(messageID string) ([]*types.AttachmentRecord, error) {
	var rows *sql.Rows
	var err error
	if messageID == "" {
		rows, err = t.selectAll.Query()
	} else {
		rows, err = t.selectAttachments.Query(messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("t.selectAttachments.Query: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var recs []*types.AttachmentRecord
	for rows.Next() {
		rec, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (t *TableAttachments) AttachmentCount(messageID string) (int, error) {
	var count int
	err := t.countAttachments.QueryRow(messageID).Scan(&count)
	return count, err
}

func (t *TableAttachments) AttachmentDelete(messageID string, partNumber int, id string) error {
	return t.writer.Do(t.db, nil, func(txn *sql.Tx) error {
		_, err := txn.Stmt(t.deleteAttachment).Exec(messageID, partNumber, id)
		return err
	})
}

// AttachmentGetAllFilePaths returns the set of file store paths still
// referenced by the catalog.
func (t *TableAttachments) AttachmentGetAllFilePaths() (map[string]bool, error) {
	rows, err := t.selectFilePaths.Query()
	if err != nil {
		return nil, fmt.Errorf("t.selectFilePaths.Query: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	paths := make(map[string]bool)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		paths[path] = true
	}
	return paths, rows.Err()
}

// AttachmentTotalSize returns the stored bytes across all attachments
func (t *TableAttachments) AttachmentTotalSize() (int64, error) {
	var total int64
	if err := t.selectTotalSize.QueryRow().Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to calculate total attachment size: %w", err)
	}
	return total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(s scanner) (*types.AttachmentRecord, error) {
	rec := &types.AttachmentRecord{}
	var datetime int64
	err := s.Scan(
		&rec.MessageID, &rec.ID, &rec.PartNumber, &rec.Name, &rec.Category,
		&rec.ContentType, &rec.SniffedType, &rec.Extension, &rec.Disposition,
		&rec.Size, &rec.StoredSize, &rec.File, &datetime,
	)
	if err != nil {
		return nil, err
	}
	rec.Date = time.Unix(datetime, 0)
	return rec, nil
}
