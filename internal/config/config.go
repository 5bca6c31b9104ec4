/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"
)

// Decoder names recognised by the "decoder" options.
const (
	DecoderUTF8  = "utf-8"
	DecoderMIME  = "mimeheader"
	DefaultMask  = "attachment"
	envConfigVar = "ATTACHMAIL_CONFIG"
)

type DecoderOptions struct {
	Message    string `yaml:"message"`
	Attachment string `yaml:"attachment"`
}

type StorageOptions struct {
	Database  string `yaml:"database"`
	FileStore string `yaml:"filestore"`
}

// Options is the process-wide configuration. Values returned by Current
// are shared between goroutines and must be treated as read-only.
type Options struct {
	Decoder DecoderOptions    `yaml:"decoder"`
	Masks   map[string]string `yaml:"masks"`
	Storage StorageOptions    `yaml:"storage"`

	// DisableUTF8HeaderDecoder turns off the charset-aware header decoder,
	// forcing the generic MIME header decoder for every name.
	DisableUTF8HeaderDecoder bool `yaml:"disable_utf8_header_decoder"`

	// UTF8HeaderDecoder is resolved once when the options are built and
	// reports whether the "utf-8" decoder strategy may be used.
	UTF8HeaderDecoder bool `yaml:"-"`
}

var current = atomic.NewPointer(Default())

func Default() *Options {
	o := &Options{
		Decoder: DecoderOptions{
			Message:    DecoderUTF8,
			Attachment: DecoderUTF8,
		},
		Masks: map[string]string{},
		Storage: StorageOptions{
			Database:  "attachmail.db",
			FileStore: "attachments",
		},
	}
	o.resolve()
	return o
}

// Load reads YAML options from path on top of the defaults. An empty path
// falls back to $ATTACHMAIL_CONFIG, and to pure defaults when that is unset.
func Load(path string) (*Options, error) {
	if path == "" {
		path = os.Getenv(envConfigVar)
	}
	o := Default()
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal: %w", err)
	}
	if o.Masks == nil {
		o.Masks = map[string]string{}
	}
	o.resolve()
	return o, nil
}

func (o *Options) resolve() {
	o.Decoder.Message = strings.ToLower(strings.TrimSpace(o.Decoder.Message))
	o.Decoder.Attachment = strings.ToLower(strings.TrimSpace(o.Decoder.Attachment))
	o.UTF8HeaderDecoder = !o.DisableUTF8HeaderDecoder
}

// MaskFor returns the configured default view selector for a category,
// or "" when none is set.
func (o *Options) MaskFor(category string) string {
	if o == nil || o.Masks == nil {
		return ""
	}
	return o.Masks[category]
}

// Current returns the options in effect for the process.
func Current() *Options {
	return current.Load()
}

// Set publishes new process-wide options. Nil restores the defaults.
func Set(o *Options) {
	if o == nil {
		o = Default()
	}
	current.Store(o)
}
