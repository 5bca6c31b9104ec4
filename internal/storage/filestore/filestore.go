/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gologme "github.com/gologme/log"

	"github.com/JB-SelfCompany/attachmail/internal/logging"
	"github.com/JB-SelfCompany/attachmail/internal/storage/types"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("attachment file not found")
	ErrExists      = errors.New("attachment file already exists")
	ErrTooLarge    = errors.New("attachment exceeds maximum size")
)

const tempPrefix = ".tmp_"

// FileStore keeps attachment content on disk, one directory per message
type FileStore struct {
	basePath string
	maxSize  int64
	log      *gologme.Logger
	mu       sync.RWMutex
}

// NewFileStore creates the base directory if needed. A nil logger discards
// output.
func NewFileStore(basePath string, log *gologme.Logger) (*FileStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("basePath cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &FileStore{
		basePath: basePath,
		maxSize:  types.MaxAttachmentSize,
		log:      log,
	}, nil
}

// StoreAttachment streams r into <messageID>/<attachmentID>_<name> and returns
// the path relative to the base along with the bytes written. The file only
// appears once it is complete, and an existing file is never replaced.
func (fs *FileStore) StoreAttachment(messageID, attachmentID, name string, r io.Reader) (string, int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	messagePath := filepath.Join(fs.basePath, sanitizeName(messageID))
	finalPath := filepath.Join(messagePath, sanitizeName(attachmentID)+"_"+sanitizeName(name))
	if _, err := os.Lstat(finalPath); err == nil {
		return "", 0, fmt.Errorf("%w: %s", ErrExists, finalPath)
	}
	if err := os.MkdirAll(messagePath, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create message directory: %w", err)
	}

	tempFile, err := os.CreateTemp(messagePath, tempPrefix+"*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	buf := make([]byte, types.ChunkSize)
	written, err := io.CopyBuffer(tempFile, io.LimitReader(r, fs.maxSize+1), buf)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write data: %w", err)
	}
	if written > fs.maxSize {
		return "", 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, fs.maxSize)
	}
	if err := tempFile.Sync(); err != nil {
		return "", 0, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	tempFile = nil

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	relPath, err := filepath.Rel(fs.basePath, finalPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get relative path: %w", err)
	}

	fs.log.Debugf("Stored attachment %s of %s: %d bytes", attachmentID, messageID, written)
	return relPath, written, nil
}

// ReadAttachment opens a stored file. The caller closes it.
func (fs *FileStore) ReadAttachment(relPath string) (io.ReadCloser, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fullPath, err := fs.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// DeleteAttachment removes a stored file. Missing files are not an error.
func (fs *FileStore) DeleteAttachment(relPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fullPath, err := fs.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeleteMessage removes every file stored for a message.
func (fs *FileStore) DeleteMessage(messageID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(fs.basePath, sanitizeName(messageID))); err != nil {
		return fmt.Errorf("failed to delete message directory: %w", err)
	}
	return nil
}

// GetTotalSize returns the size of all stored attachments in bytes
func (fs *FileStore) GetTotalSize() (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	size, err := dirSize(fs.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total size: %w", err)
	}
	return size, nil
}

// GetMessageSize returns the size of the attachments stored for one message.
// Unknown messages have size 0.
func (fs *FileStore) GetMessageSize(messageID string) (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	size, err := dirSize(filepath.Join(fs.basePath, sanitizeName(messageID)))
	if err != nil {
		return 0, fmt.Errorf("failed to calculate message size: %w", err)
	}
	return size, nil
}

// CleanupOrphanedFiles removes files whose relative path is not in
// validPaths, including abandoned temp files. It returns the number of files
// deleted and the bytes freed.
func (fs *FileStore) CleanupOrphanedFiles(validPaths map[string]bool) (int, int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	deletedCount := 0
	var deletedSize int64

	err := filepath.Walk(fs.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(fs.basePath, path)
		if err != nil {
			return err
		}
		if validPaths[relPath] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete orphaned file %s: %w", relPath, err)
		}
		deletedCount++
		deletedSize += info.Size()
		return nil
	})
	if err != nil {
		return deletedCount, deletedSize, fmt.Errorf("cleanup failed: %w", err)
	}

	if deletedCount > 0 {
		fs.log.Infof("Removed %d orphaned attachment files (%d bytes)", deletedCount, deletedSize)
	}
	return deletedCount, deletedSize, nil
}

func (fs *FileStore) BasePath() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.basePath
}

func (fs *FileStore) resolve(relPath string) (string, error) {
	if relPath == "" || strings.Contains(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	return filepath.Join(fs.basePath, relPath), nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() && !strings.HasPrefix(info.Name(), tempPrefix) {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// sanitizeName makes a single path element out of an arbitrary header value
func sanitizeName(name string) string {
	sanitized := strings.ReplaceAll(name, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	sanitized = strings.ReplaceAll(sanitized, ":", "_")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "_")
	sanitized = strings.TrimSpace(sanitized)

	if sanitized == "" {
		sanitized = "default"
	}
	return sanitized
}
