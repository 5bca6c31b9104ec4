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
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var contentIDReplacer = strings.NewReplacer("<", "", ">", "")

func (a *Attachment) resolveContent() {
	p := a.part

	a.contentType = p.ContentType
	a.content = bytes.Clone(a.msg.DecodeBytes(p.Content, p.Encoding))

	if p.ID != nil {
		a.id = strings.TrimSpace(contentIDReplacer.Replace(*p.ID))
	}
	if a.id == "" {
		a.id = newIdentifier()
	}

	a.size = p.Bytes
	a.disposition = p.Disposition
}

// newIdentifier hashes a random seed. Only uniqueness within the process
// matters, the value is not derived from the content.
func newIdentifier() string {
	seed := uuid.New()
	sum := blake2b.Sum256(seed[:])
	return hex.EncodeToString(sum[:])
}
