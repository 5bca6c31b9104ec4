/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package archive persists message attachments to the file store and
// records them in the SQLite catalog.
package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	gologme "github.com/gologme/log"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
	"github.com/JB-SelfCompany/attachmail/internal/logging"
	"github.com/JB-SelfCompany/attachmail/internal/message"
	"github.com/JB-SelfCompany/attachmail/internal/storage/filestore"
	"github.com/JB-SelfCompany/attachmail/internal/storage/sqlite3"
	"github.com/JB-SelfCompany/attachmail/internal/storage/types"
)

var (
	ErrAlreadyArchived = errors.New("message already archived")
	ErrIncomplete      = errors.New("some attachments were not archived")
)

type Archiver struct {
	Store   *filestore.FileStore
	Catalog *sqlite3.SQLite3Storage
	Tracker *logging.ExportTracker
	log     *gologme.Logger
}

func New(store *filestore.FileStore, catalog *sqlite3.SQLite3Storage, log *gologme.Logger) *Archiver {
	if log == nil {
		log = logging.Discard()
	}
	return &Archiver{
		Store:   store,
		Catalog: catalog,
		Tracker: logging.NewExportTracker(log),
		log:     log,
	}
}

// Open opens the on-disk files of the catalog rooted at the given options.
func Open(database, fileStore string, log *gologme.Logger) (*Archiver, error) {
	store, err := filestore.NewFileStore(fileStore, log)
	if err != nil {
		return nil, fmt.Errorf("filestore.NewFileStore: %w", err)
	}
	catalog, err := sqlite3.NewSQLite3Storage(database, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite3.NewSQLite3Storage: %w", err)
	}
	return New(store, catalog, log), nil
}

func (a *Archiver) Close() error {
	return a.Catalog.Close()
}

// Archive stores every attachment of msg under messageID, generating an ID
// when it is empty. An attachment that fails is logged and skipped, the rest
// are still archived, and the returned error wraps ErrIncomplete.
func (a *Archiver) Archive(messageID string, msg *message.Message) (string, []*types.AttachmentRecord, error) {
	if messageID == "" {
		messageID = uuid.NewString()
	}
	count, err := a.Catalog.AttachmentCount(messageID)
	if err != nil {
		return messageID, nil, fmt.Errorf("a.Catalog.AttachmentCount: %w", err)
	}
	if count > 0 {
		return messageID, nil, fmt.Errorf("%w: %s", ErrAlreadyArchived, messageID)
	}
	atts := msg.Attachments()

	var total int64
	for _, att := range atts {
		total += int64(len(att.Content()))
	}

	opID := uuid.NewString()
	a.Tracker.StartOperation(opID, messageID, len(atts), total)

	records := make([]*types.AttachmentRecord, 0, len(atts))
	var errs []error
	for _, att := range atts {
		rec, err := a.archiveOne(messageID, att)
		if err != nil {
			a.Tracker.LogError(opID, att.ID(), err)
			errs = append(errs, fmt.Errorf("part %d (%s): %w", att.PartNumber(), att.ID(), err))
			continue
		}
		a.Tracker.LogMilestone(opID, att.ID(), rec.StoredSize, rec.Name)
		records = append(records, rec)
	}

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrIncomplete, errors.Join(errs...))
		a.Tracker.EndOperation(opID, false, err.Error())
		return messageID, records, err
	}
	a.Tracker.EndOperation(opID, true, "")
	return messageID, records, nil
}

func (a *Archiver) archiveOne(messageID string, att *attachment.Attachment) (*types.AttachmentRecord, error) {
	relPath, written, err := att.Store(a.Store, messageID)
	if err != nil {
		return nil, fmt.Errorf("att.Store: %w", err)
	}
	sniffed, _ := att.MimeType()
	rec := &types.AttachmentRecord{
		MessageID:   messageID,
		ID:          att.ID(),
		PartNumber:  att.PartNumber(),
		Name:        att.Name(),
		Category:    string(att.Type()),
		ContentType: att.ContentType(),
		SniffedType: sniffed,
		Extension:   att.Extension(),
		Disposition: att.Disposition(),
		Size:        int64(att.Size()),
		StoredSize:  written,
		File:        relPath,
	}
	if err := a.Catalog.AttachmentCreate(rec); err != nil {
		if derr := a.Store.DeleteAttachment(relPath); derr != nil {
			a.log.Warnf("Failed to remove %s after catalog error: %v", relPath, derr)
		}
		return nil, fmt.Errorf("a.Catalog.AttachmentCreate: %w", err)
	}
	return rec, nil
}

// Read opens the stored content of an archived attachment.
func (a *Archiver) Read(messageID, id string) (io.ReadCloser, *types.AttachmentRecord, error) {
	rec, err := a.Catalog.AttachmentSelect(messageID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("a.Catalog.AttachmentSelect: %w", err)
	}
	r, err := a.Store.ReadAttachment(rec.File)
	if err != nil {
		return nil, nil, fmt.Errorf("a.Store.ReadAttachment: %w", err)
	}
	return r, rec, nil
}

// Delete removes a message's attachments from the catalog and the store.
func (a *Archiver) Delete(messageID string) error {
	recs, err := a.Catalog.AttachmentList(messageID)
	if err != nil {
		return fmt.Errorf("a.Catalog.AttachmentList: %w", err)
	}
	for _, rec := range recs {
		if err := a.Catalog.AttachmentDelete(rec.MessageID, rec.PartNumber, rec.ID); err != nil {
			return fmt.Errorf("a.Catalog.AttachmentDelete: %w", err)
		}
	}
	if err := a.Store.DeleteMessage(messageID); err != nil {
		return fmt.Errorf("a.Store.DeleteMessage: %w", err)
	}
	return nil
}

// Cleanup removes stored files that the catalog no longer references.
func (a *Archiver) Cleanup() (int, int64, error) {
	paths, err := a.Catalog.AttachmentGetAllFilePaths()
	if err != nil {
		return 0, 0, fmt.Errorf("a.Catalog.AttachmentGetAllFilePaths: %w", err)
	}
	return a.Store.CleanupOrphanedFiles(paths)
}
