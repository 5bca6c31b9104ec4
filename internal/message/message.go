/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package message parses RFC 5322 messages and extracts their attachments.
package message

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/backend/backendutil"
	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	gologme "github.com/gologme/log"
	"go.uber.org/atomic"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
	"github.com/JB-SelfCompany/attachmail/internal/config"
	"github.com/JB-SelfCompany/attachmail/internal/logging"
)

type Message struct {
	header      textproto.Header
	subject     string
	text        string
	html        string
	attachments []*attachment.Attachment
	parts       int

	client attachment.Client
	opts   *config.Options
	log    *gologme.Logger

	decodeErrors atomic.Int64
}

type Option func(*Message)

// WithClient sets the handle attachments consult for their default view.
func WithClient(c attachment.Client) Option {
	return func(m *Message) { m.client = c }
}

func WithOptions(o *config.Options) Option {
	return func(m *Message) { m.opts = o }
}

func WithLogger(l *gologme.Logger) Option {
	return func(m *Message) { m.log = l }
}

// Parse reads a complete message from r. Only an unreadable top-level
// header is fatal; broken body parts are logged and skipped.
func Parse(r io.Reader, opts ...Option) (*Message, error) {
	m := &Message{}
	for _, opt := range opts {
		opt(m)
	}
	if m.opts == nil {
		m.opts = config.Current()
	}
	if m.log == nil {
		m.log = logging.Discard()
	}

	br := bufio.NewReader(r)
	hdr, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("textproto.ReadHeader: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	m.header = hdr
	decoder := attachment.NewNameDecoder(m.opts.Decoder.Message, m.opts.UTF8HeaderDecoder)
	m.subject = decoder.DecodeName(hdr.Get("Subject"))

	m.walk(hdr, body)
	m.log.Debugf("Parsed message %q: %d parts, %d attachments", m.subject, m.parts, len(m.attachments))
	return m, nil
}

func (m *Message) walk(hdr textproto.Header, body []byte) {
	h := gomessage.Header{Header: hdr}
	mediaType, params, _ := h.ContentType()
	if strings.HasPrefix(mediaType, "multipart/") {
		mr := textproto.NewMultipartReader(bytes.NewReader(body), params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				m.decodeErrors.Inc()
				m.log.Warnf("Failed to read %s part: %v", mediaType, err)
				return
			}
			raw, err := io.ReadAll(p)
			if err != nil {
				m.decodeErrors.Inc()
				m.log.Warnf("Failed to read %s part body: %v", mediaType, err)
				continue
			}
			m.walk(p.Header, raw)
		}
	}

	m.parts++
	number := m.parts

	bs, err := backendutil.FetchBodyStructure(hdr, bytes.NewReader(body), true)
	if err != nil {
		m.decodeErrors.Inc()
		m.log.Warnf("Failed to read structure of part %d: %v", number, err)
		return
	}

	part := attachment.PartFromBodyStructure(number, bs, body)
	if part.Bytes == 0 {
		part.Bytes = len(body)
	}

	if isBody(part) {
		m.appendBody(h, body, part.Subtype)
		return
	}

	a := attachment.New(m, part, attachment.WithOptions(m.opts), attachment.WithLogger(m.log))
	m.attachments = append(m.attachments, a)
	m.log.Debugf("Part %d: attachment %q (%s, %d bytes)", number, a.Name(), a.ContentType(), a.Size())
}

// isBody reports whether a leaf is an inline text body rather than a file.
func isBody(p *attachment.Part) bool {
	if p.Type != attachment.TypeText || p.Disposition == "attachment" {
		return false
	}
	if p.Filename != nil || p.Name != nil {
		return false
	}
	return p.Subtype == "plain" || p.Subtype == "html"
}

func (m *Message) appendBody(h gomessage.Header, body []byte, subtype string) {
	e, err := gomessage.New(h, bytes.NewReader(body))
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		m.decodeErrors.Inc()
		m.log.Warnf("Failed to decode %s body: %v", subtype, err)
		return
	}
	text, err := io.ReadAll(e.Body)
	if err != nil {
		m.decodeErrors.Inc()
		m.log.Warnf("Failed to decode %s body: %v", subtype, err)
	}
	switch subtype {
	case "html":
		m.html += string(text)
	default:
		m.text += string(text)
	}
}

// DecodeBytes removes the named transfer encoding. Unknown encodings leave
// the bytes untouched and broken input yields whatever decoded cleanly.
func (m *Message) DecodeBytes(raw []byte, transferEncoding string) []byte {
	var h gomessage.Header
	if transferEncoding != "" {
		h.Set("Content-Transfer-Encoding", transferEncoding)
	}
	e, err := gomessage.New(h, bytes.NewReader(raw))
	if gomessage.IsUnknownEncoding(err) {
		m.log.Warnf("Unknown transfer encoding %q, keeping raw bytes", transferEncoding)
		return raw
	}
	if err != nil {
		m.decodeErrors.Inc()
		m.log.Warnf("Failed to decode %s content: %v", transferEncoding, err)
		return raw
	}
	decoded, err := io.ReadAll(e.Body)
	if err != nil {
		m.decodeErrors.Inc()
		m.log.Warnf("Failed to decode %s content: %v", transferEncoding, err)
	}
	return decoded
}

// Client returns the handle set by WithClient, or nil.
func (m *Message) Client() attachment.Client {
	if m.client == nil {
		return nil
	}
	return m.client
}

func (m *Message) Header() textproto.Header { return m.header }

func (m *Message) Subject() string { return m.subject }

func (m *Message) Text() string { return m.text }

func (m *Message) HTML() string { return m.html }

func (m *Message) Attachments() []*attachment.Attachment { return m.attachments }

// Attachment finds an attachment by identifier.
func (m *Message) Attachment(id string) (*attachment.Attachment, bool) {
	for _, a := range m.attachments {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// DecodeErrors counts the parts and contents that failed to decode.
func (m *Message) DecodeErrors() int64 { return m.decodeErrors.Load() }
