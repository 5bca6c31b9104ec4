/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attachment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JB-SelfCompany/attachmail/internal/storage/filestore"
)

// Save writes the content to dir/filename, using the attachment name when
// filename is empty. Write failures are logged and reported as false.
func (a *Attachment) Save(dir, filename string) bool {
	if filename == "" {
		filename = filepath.Base(a.name)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, a.content, 0644); err != nil {
		a.log.Warnf("Failed to save attachment %s to %s: %v", a.id, path, err)
		return false
	}
	return true
}

// Store writes the content into fs under messageID. The stored file is keyed
// by part number as well as identifier, since a message may repeat a
// Content-ID. It returns the path relative to the store base and the number
// of bytes written.
func (a *Attachment) Store(fs *filestore.FileStore, messageID string) (string, int64, error) {
	key := fmt.Sprintf("%d_%s", a.partNumber, a.id)
	relPath, written, err := fs.StoreAttachment(messageID, key, filepath.Base(a.name), bytes.NewReader(a.content))
	if err != nil {
		return "", 0, fmt.Errorf("fs.StoreAttachment: %w", err)
	}
	return relPath, written, nil
}
