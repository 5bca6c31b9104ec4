/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package types

import "time"

// AttachmentRecord is the catalog entry for an archived attachment.
type AttachmentRecord struct {
	MessageID   string
	ID          string
	PartNumber  int
	Name        string
	Category    string
	ContentType string
	SniffedType string // detected from content, empty when undetectable
	Extension   string
	Disposition string
	Size        int64  // declared size of the encoded part
	StoredSize  int64  // bytes written to the file store
	File        string // path relative to the file store base
	Date        time.Time
}

// Constants for streaming attachment content
const (
	MaxAttachmentSize = 500 * 1024 * 1024 // 500 MB
	ChunkSize         = 128 * 1024        // 128 KB
)
