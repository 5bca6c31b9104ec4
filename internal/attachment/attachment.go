/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package attachment turns raw MIME body parts into decoded attachment
// records and exposes the export and presentation operations on them.
package attachment

import (
	gologme "github.com/gologme/log"

	"github.com/JB-SelfCompany/attachmail/internal/config"
	"github.com/JB-SelfCompany/attachmail/internal/logging"
)

// Attribute names in the order returned by Attributes.
const (
	AttrContent     = "content"
	AttrType        = "type"
	AttrPartNumber  = "part_number"
	AttrContentType = "content_type"
	AttrID          = "id"
	AttrName        = "name"
	AttrDisposition = "disposition"
	AttrImgSrc      = "img_src"
	AttrSize        = "size"
)

// Attribute is a single named field of an attachment.
type Attribute struct {
	Key   string
	Value any
}

// Attachment is a decoded attachment of a message. Fields are resolved once
// in New; SetName, SetImgSrc and SetExtra are the only mutators.
type Attachment struct {
	msg      Message
	part     *Part
	log      *gologme.Logger
	decoder  NameDecoder
	guessers []ExtensionGuesser
	views    *ViewRegistry
	view     string

	partNumber  int
	content     []byte
	category    Category
	contentType string
	id          string
	name        string
	disposition string
	size        int
	imgSrc      string

	extra     map[string]any
	extraKeys []string
}

type settings struct {
	options  *config.Options
	log      *gologme.Logger
	guessers []ExtensionGuesser
	views    *ViewRegistry
}

type Option func(*settings)

// WithOptions uses o instead of the process-wide configuration.
func WithOptions(o *config.Options) Option {
	return func(s *settings) { s.options = o }
}

func WithLogger(l *gologme.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithExtensionGuessers replaces the database lookups tried by Extension.
func WithExtensionGuessers(g ...ExtensionGuesser) Option {
	return func(s *settings) { s.guessers = g }
}

func WithViewRegistry(r *ViewRegistry) Option {
	return func(s *settings) { s.views = r }
}

// New resolves an attachment from part, which belongs to msg.
func New(msg Message, part *Part, opts ...Option) *Attachment {
	s := settings{
		guessers: DefaultExtensionGuessers,
		views:    DefaultViews,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.options == nil {
		s.options = config.Current()
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if msg == nil {
		msg = rawMessage{}
	}
	if part == nil {
		part = &Part{Type: TypeOther}
	}

	a := &Attachment{
		msg:        msg,
		part:       part,
		log:        s.log,
		decoder:    NewNameDecoder(s.options.Decoder.Attachment, s.options.UTF8HeaderDecoder),
		guessers:   s.guessers,
		views:      s.views,
		view:       defaultViewSelector(msg, s.options),
		partNumber: part.Number,
	}

	a.category = Classify(part.Type)
	a.resolveContent()
	a.resolveName()
	return a
}

func (a *Attachment) Message() Message { return a.msg }

func (a *Attachment) PartNumber() int { return a.partNumber }

// Content returns the transfer-decoded bytes. The slice must not be modified.
func (a *Attachment) Content() []byte { return a.content }

func (a *Attachment) Type() Category { return a.category }

func (a *Attachment) ContentType() string { return a.contentType }

func (a *Attachment) ID() string { return a.id }

func (a *Attachment) Name() string { return a.name }

func (a *Attachment) Disposition() string { return a.disposition }

// Size is the byte length declared by the part.
func (a *Attachment) Size() int { return a.size }

func (a *Attachment) ImgSrc() string { return a.imgSrc }

// SetImgSrc stores a precomputed inline display reference.
func (a *Attachment) SetImgSrc(src string) string {
	a.imgSrc = src
	return a.imgSrc
}

// Extra returns caller-attached metadata. A missing key is not an error.
func (a *Attachment) Extra(key string) (any, bool) {
	v, ok := a.extra[key]
	return v, ok
}

// SetExtra attaches metadata under key and returns the stored value.
func (a *Attachment) SetExtra(key string, value any) any {
	if a.extra == nil {
		a.extra = make(map[string]any)
	}
	if _, ok := a.extra[key]; !ok {
		a.extraKeys = append(a.extraKeys, key)
	}
	a.extra[key] = value
	return value
}

// Attributes returns every documented field, defaults included, followed by
// extra metadata in insertion order.
func (a *Attachment) Attributes() []Attribute {
	attrs := []Attribute{
		{AttrContent, a.content},
		{AttrType, a.category},
		{AttrPartNumber, a.partNumber},
		{AttrContentType, a.contentType},
		{AttrID, a.id},
		{AttrName, a.name},
		{AttrDisposition, a.disposition},
		{AttrImgSrc, a.imgSrc},
		{AttrSize, a.size},
	}
	for _, key := range a.extraKeys {
		attrs = append(attrs, Attribute{key, a.extra[key]})
	}
	return attrs
}

// AttributeMap is Attributes keyed by name.
func (a *Attachment) AttributeMap() map[string]any {
	attrs := a.Attributes()
	m := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		m[attr.Key] = attr.Value
	}
	return m
}
