/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package filestore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "store"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func TestStoreAndRead(t *testing.T) {
	fs := setupFileStore(t)

	relPath, written, err := fs.StoreAttachment("msg-1", "abc", "report.pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("StoreAttachment: %v", err)
	}
	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
	if want := filepath.Join("msg-1", "abc_report.pdf"); relPath != want {
		t.Errorf("relPath = %q, want %q", relPath, want)
	}

	r, err := fs.ReadAttachment(relPath)
	if err != nil {
		t.Fatalf("ReadAttachment: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}

	entries, _ := os.ReadDir(filepath.Join(fs.BasePath(), "msg-1"))
	if len(entries) != 1 {
		t.Errorf("message directory holds %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestStoreSanitizesNames(t *testing.T) {
	fs := setupFileStore(t)

	relPath, _, err := fs.StoreAttachment("../escape", "a:b", "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("StoreAttachment: %v", err)
	}
	if strings.Contains(relPath, "..") {
		t.Fatalf("relPath %q escapes the store", relPath)
	}
	full := filepath.Join(fs.BasePath(), relPath)
	if !strings.HasPrefix(full, fs.BasePath()) {
		t.Errorf("%q is outside %q", full, fs.BasePath())
	}
}

func TestInvalidPaths(t *testing.T) {
	fs := setupFileStore(t)

	for _, p := range []string{"", "../x", "a/../../b", "/etc/passwd"} {
		if _, err := fs.ReadAttachment(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ReadAttachment(%q) = %v, want ErrInvalidPath", p, err)
		}
		if err := fs.DeleteAttachment(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("DeleteAttachment(%q) = %v, want ErrInvalidPath", p, err)
		}
	}

	if _, err := fs.ReadAttachment("nope/missing.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadAttachment(missing) = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	fs := setupFileStore(t)

	relPath, _, _ := fs.StoreAttachment("msg-1", "a", "a.txt", strings.NewReader("aaa"))
	if err := fs.DeleteAttachment(relPath); err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	if err := fs.DeleteAttachment(relPath); err != nil {
		t.Errorf("second DeleteAttachment: %v", err)
	}

	fs.StoreAttachment("msg-2", "b", "b.txt", strings.NewReader("bbb"))
	if err := fs.DeleteMessage("msg-2"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if size, _ := fs.GetMessageSize("msg-2"); size != 0 {
		t.Errorf("GetMessageSize after delete = %d, want 0", size)
	}
}

func TestSizes(t *testing.T) {
	fs := setupFileStore(t)

	fs.StoreAttachment("msg-1", "a", "a.txt", strings.NewReader("12345"))
	fs.StoreAttachment("msg-1", "b", "b.txt", strings.NewReader("123"))
	fs.StoreAttachment("msg-2", "c", "c.txt", strings.NewReader("12"))

	tests := []struct {
		messageID string
		want      int64
	}{
		{"msg-1", 8},
		{"msg-2", 2},
		{"msg-3", 0},
	}
	for _, tt := range tests {
		got, err := fs.GetMessageSize(tt.messageID)
		if err != nil {
			t.Fatalf("GetMessageSize(%q): %v", tt.messageID, err)
		}
		if got != tt.want {
			t.Errorf("GetMessageSize(%q) = %d, want %d", tt.messageID, got, tt.want)
		}
	}

	total, err := fs.GetTotalSize()
	if err != nil {
		t.Fatalf("GetTotalSize: %v", err)
	}
	if total != 10 {
		t.Errorf("GetTotalSize = %d, want 10", total)
	}
}

func TestCleanupOrphanedFiles(t *testing.T) {
	fs := setupFileStore(t)

	keep, _, _ := fs.StoreAttachment("msg-1", "a", "a.txt", strings.NewReader("keep"))
	fs.StoreAttachment("msg-1", "b", "b.txt", strings.NewReader("orphan"))
	stale := filepath.Join(fs.BasePath(), "msg-1", tempPrefix+"123")
	if err := os.WriteFile(stale, []byte("xx"), 0644); err != nil {
		t.Fatal(err)
	}

	count, freed, err := fs.CleanupOrphanedFiles(map[string]bool{keep: true})
	if err != nil {
		t.Fatalf("CleanupOrphanedFiles: %v", err)
	}
	if count != 2 || freed != 8 {
		t.Errorf("CleanupOrphanedFiles = (%d, %d), want (2, 8)", count, freed)
	}
	if _, err := os.Stat(filepath.Join(fs.BasePath(), keep)); err != nil {
		t.Errorf("kept file missing: %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"a/b\\c", "a_b_c"},
		{"..", "_"},
		{"  ", "default"},
		{"C:file", "C_file"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoreRefusesOverwrite(t *testing.T) {
	fs := setupFileStore(t)

	first, _, err := fs.StoreAttachment("msg-1", "dup@x", "same.bin", strings.NewReader("first"))
	if err != nil {
		t.Fatalf("StoreAttachment: %v", err)
	}
	if _, _, err := fs.StoreAttachment("msg-1", "dup@x", "same.bin", strings.NewReader("second")); !errors.Is(err, ErrExists) {
		t.Fatalf("second StoreAttachment = %v, want ErrExists", err)
	}

	r, err := fs.ReadAttachment(first)
	if err != nil {
		t.Fatalf("ReadAttachment: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "first" {
		t.Errorf("content = %q, want %q", data, "first")
	}

	entries, _ := os.ReadDir(filepath.Join(fs.BasePath(), "msg-1"))
	if len(entries) != 1 {
		t.Errorf("message directory holds %d entries, want 1", len(entries))
	}
}

func TestStoreSizeLimit(t *testing.T) {
	fs := setupFileStore(t)
	fs.maxSize = 4

	if _, written, err := fs.StoreAttachment("msg-1", "a", "ok.bin", strings.NewReader("1234")); err != nil || written != 4 {
		t.Fatalf("StoreAttachment at the limit = %d, %v", written, err)
	}
	if _, _, err := fs.StoreAttachment("msg-1", "b", "big.bin", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("StoreAttachment over the limit = %v, want ErrTooLarge", err)
	}

	entries, _ := os.ReadDir(filepath.Join(fs.BasePath(), "msg-1"))
	if len(entries) != 1 {
		t.Errorf("message directory holds %d entries, want 1 (oversize temp file removed)", len(entries))
	}
}
