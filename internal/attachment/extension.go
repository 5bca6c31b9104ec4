/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attachment

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ExtensionGuesser maps a MIME type to a file extension without the dot.
type ExtensionGuesser interface {
	GuessExtension(mimeType string) (string, bool)
}

// MimeDatabase looks extensions up in mimetype's maintained type tree.
type MimeDatabase struct{}

func (MimeDatabase) GuessExtension(mimeType string) (string, bool) {
	m := mimetype.Lookup(mimeType)
	if m == nil {
		return "", false
	}
	ext := strings.TrimPrefix(m.Extension(), ".")
	return ext, ext != ""
}

// LegacyGuesser uses the platform mime.types tables.
type LegacyGuesser struct{}

func (LegacyGuesser) GuessExtension(mimeType string) (string, bool) {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return "", false
	}
	ext := strings.TrimPrefix(exts[0], ".")
	return ext, ext != ""
}

var DefaultExtensionGuessers = []ExtensionGuesser{MimeDatabase{}, LegacyGuesser{}}

// MimeType sniffs the media type of the decoded content, ignoring the
// declared content type. Empty content has no type.
func (a *Attachment) MimeType() (string, bool) {
	if len(a.content) == 0 {
		return "", false
	}
	mediaType, _, _ := strings.Cut(mimetype.Detect(a.content).String(), ";")
	mediaType = strings.TrimSpace(mediaType)
	return mediaType, mediaType != ""
}

// Extension guesses a file extension from the sniffed type, falling back to
// the part's declared file name. It returns "" when nothing matches.
func (a *Attachment) Extension() string {
	if mimeType, ok := a.MimeType(); ok {
		for _, g := range a.guessers {
			if ext, ok := g.GuessExtension(mimeType); ok {
				return ext
			}
		}
	}

	name := firstDeclared(a.part.Filename, a.part.Name)
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}
