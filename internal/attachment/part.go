/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attachment

import (
	"strings"

	"github.com/emersion/go-imap"
)

// TypeCode is the structural top-level media type of a body part, numbered
// as in IMAP body structures.
type TypeCode int

const (
	TypeText TypeCode = iota
	TypeMultipart
	TypeMessage
	TypeApplication
	TypeAudio
	TypeImage
	TypeVideo
	TypeModel
	TypeOther
)

var typeCodes = map[string]TypeCode{
	"text":        TypeText,
	"multipart":   TypeMultipart,
	"message":     TypeMessage,
	"application": TypeApplication,
	"audio":       TypeAudio,
	"image":       TypeImage,
	"video":       TypeVideo,
	"model":       TypeModel,
}

// TypeCodeFor maps a top-level media type name such as "image" to its code.
func TypeCodeFor(mediaType string) TypeCode {
	if code, ok := typeCodes[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return code
	}
	return TypeOther
}

// Part is a single raw node of a parsed MIME tree. It is read-only input to
// New; optional headers are nil when the part does not declare them.
type Part struct {
	Number      int
	Type        TypeCode
	Subtype     string
	Content     []byte // still transfer-encoded
	Encoding    string
	ContentType string
	ID          *string
	Bytes       int
	Disposition string
	Filename    *string
	Name        *string
	Description *string
}

// PartFromBodyStructure builds a Part from an IMAP body structure and the
// raw, still-encoded bytes of that part.
func PartFromBodyStructure(number int, bs *imap.BodyStructure, raw []byte) *Part {
	mimeType := strings.ToLower(bs.MIMEType)
	subtype := strings.ToLower(bs.MIMESubType)
	return &Part{
		Number:      number,
		Type:        TypeCodeFor(mimeType),
		Subtype:     subtype,
		Content:     raw,
		Encoding:    strings.ToLower(strings.TrimSpace(bs.Encoding)),
		ContentType: mimeType + "/" + subtype,
		ID:          optional(bs.Id),
		Bytes:       int(bs.Size),
		Disposition: strings.ToLower(bs.Disposition),
		Filename:    optional(bs.DispositionParams["filename"]),
		Name:        optional(bs.Params["name"]),
		Description: optional(bs.Description),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Message is the owning message of an attachment. It is the only authority
// on transfer encodings.
type Message interface {
	// DecodeBytes reverses transferEncoding over raw. It never fails from
	// the caller's point of view; problems are the message's to report.
	DecodeBytes(raw []byte, transferEncoding string) []byte
	// Client returns the client the message was fetched with, or nil.
	Client() Client
}

// Client is the subset of a mail client consulted by attachments.
type Client interface {
	DefaultAttachmentView() string
}

// rawMessage stands in for a missing owner and leaves bytes untouched.
type rawMessage struct{}

func (rawMessage) DecodeBytes(raw []byte, _ string) []byte { return raw }
func (rawMessage) Client() Client                          { return nil }
