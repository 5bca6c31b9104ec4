/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDefault(t *testing.T) {
	o := Default()
	if o.Decoder.Attachment != DecoderUTF8 {
		t.Errorf("Decoder.Attachment = %q, want %q", o.Decoder.Attachment, DecoderUTF8)
	}
	if !o.UTF8HeaderDecoder {
		t.Error("expected UTF8HeaderDecoder to be enabled by default")
	}
	if got := o.MaskFor(DefaultMask); got != "" {
		t.Errorf("MaskFor(%q) = %q, want empty", DefaultMask, got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attachmail.yaml")
	data := []byte(`decoder:
  attachment: " MimeHeader "
masks:
  attachment: summary
disable_utf8_header_decoder: true
storage:
  database: /var/lib/attachmail/catalog.db
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	o, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if o.Decoder.Attachment != DecoderMIME {
		t.Errorf("Decoder.Attachment = %q, want %q", o.Decoder.Attachment, DecoderMIME)
	}
	if o.Decoder.Message != DecoderUTF8 {
		t.Errorf("Decoder.Message = %q, want default %q", o.Decoder.Message, DecoderUTF8)
	}
	if o.UTF8HeaderDecoder {
		t.Error("expected UTF8HeaderDecoder to be disabled")
	}
	if got := o.MaskFor("attachment"); got != "summary" {
		t.Errorf("MaskFor(attachment) = %q, want %q", got, "summary")
	}
	if o.Storage.Database != "/var/lib/attachmail/catalog.db" {
		t.Errorf("Storage.Database = %q", o.Storage.Database)
	}
	if o.Storage.FileStore != "attachments" {
		t.Errorf("Storage.FileStore = %q, want default", o.Storage.FileStore)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("decoder: [unclosed"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestCurrentConcurrentReads(t *testing.T) {
	defer Set(nil)

	o := Default()
	o.Masks["attachment"] = "summary"
	Set(o)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := Current().MaskFor("attachment"); got != "summary" {
				t.Errorf("MaskFor() = %q, want %q", got, "summary")
			}
		}()
	}
	wg.Wait()

	Set(nil)
	if got := Current().MaskFor("attachment"); got != "" {
		t.Errorf("after reset MaskFor() = %q, want empty", got)
	}
}
