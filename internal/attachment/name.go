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

	gmcharset "github.com/emersion/go-message/charset"
	htmlcharset "golang.org/x/net/html/charset"

	"github.com/JB-SelfCompany/attachmail/internal/config"
)

const undefinedName = "undefined"

// NameDecoder turns a header value that may carry RFC 2047 encoded words
// into readable text. Plain input is returned unchanged.
type NameDecoder interface {
	DecodeName(raw string) string
}

type wordDecoder struct {
	dec *mime.WordDecoder
}

func (d wordDecoder) DecodeName(raw string) string {
	s, err := d.dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return s
}

var (
	// UTF8Decoder converts encoded words through go-message's charset table.
	UTF8Decoder NameDecoder = wordDecoder{&mime.WordDecoder{CharsetReader: gmcharset.Reader}}
	// MIMEHeaderDecoder resolves charsets by WHATWG label.
	MIMEHeaderDecoder NameDecoder = wordDecoder{&mime.WordDecoder{CharsetReader: htmlcharset.NewReaderLabel}}
)

// NewNameDecoder picks the decoder for a configured strategy. The "utf-8"
// strategy is only honoured when utf8Capable is set.
func NewNameDecoder(strategy string, utf8Capable bool) NameDecoder {
	if strategy == config.DecoderUTF8 && utf8Capable {
		return UTF8Decoder
	}
	return MIMEHeaderDecoder
}

func (a *Attachment) resolveName() {
	p := a.part

	if name := firstDeclared(p.Filename, p.Name); name != "" {
		a.SetName(name)
	} else {
		a.SetName(undefinedName)
	}

	// Embedded messages are named after their description or subtype.
	if p.Type == TypeMessage {
		if name := firstDeclared(p.Description); name != "" {
			a.SetName(name)
		} else {
			a.SetName(p.Subtype)
		}
	}
}

// SetName decodes name and stores it. Empty names are ignored so the
// attachment always keeps a name.
func (a *Attachment) SetName(name string) {
	if name == "" {
		return
	}
	a.name = a.decoder.DecodeName(name)
}

func firstDeclared(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
