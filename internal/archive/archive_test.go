/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JB-SelfCompany/attachmail/internal/logging"
	"github.com/JB-SelfCompany/attachmail/internal/message"
)

var sample = strings.Join([]string{
	"Subject: archive me",
	`Content-Type: multipart/mixed; boundary="b"`,
	"",
	"--b",
	"Content-Type: text/plain",
	"",
	"body",
	"--b",
	`Content-Type: text/plain; name="notes.txt"`,
	"Content-ID: <notes@x>",
	"Content-Disposition: attachment",
	"",
	"some notes",
	"--b",
	"Content-Type: image/png",
	`Content-Disposition: attachment; filename="../pic.png"`,
	"Content-Transfer-Encoding: base64",
	"",
	"iVBORw0KGgoAAAANSUhEUg==",
	"--b--",
	"",
}, "\r\n")

func setupArchiver(t *testing.T) (*Archiver, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var logs bytes.Buffer
	a, err := Open(filepath.Join(dir, "catalog.db"), filepath.Join(dir, "files"),
		logging.New(&logs, "archive", "info", "warn", "error", "debug"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, &logs
}

func parse(t *testing.T) *message.Message {
	t.Helper()
	m, err := message.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	return m
}

func TestArchive(t *testing.T) {
	a, logs := setupArchiver(t)

	id, recs, err := a.Archive("msg-1", parse(t))
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, recs, 2)

	notes := recs[0]
	assert.Equal(t, "notes@x", notes.ID)
	assert.Equal(t, "notes.txt", notes.Name)
	assert.Equal(t, "text", notes.Category)
	assert.Equal(t, int64(len("some notes")), notes.StoredSize)

	pic := recs[1]
	assert.Equal(t, "image/png", pic.SniffedType)
	assert.Equal(t, "png", pic.Extension)
	assert.Equal(t, "image", pic.Category)
	assert.NotContains(t, pic.File, "..")

	r, rec, err := a.Read("msg-1", "notes@x")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "some notes", string(data))
	assert.Equal(t, notes.File, rec.File)

	assert.Zero(t, a.Tracker.ActiveOperations())
	assert.Contains(t, logs.String(), "START")
	assert.Contains(t, logs.String(), "SUCCESS")

	size, err := a.Store.GetMessageSize("msg-1")
	require.NoError(t, err)
	total, err := a.Catalog.AttachmentTotalSize()
	require.NoError(t, err)
	assert.Equal(t, total, size)
}

func TestArchiveGeneratesID(t *testing.T) {
	a, _ := setupArchiver(t)
	id, _, err := a.Archive("", parse(t))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	count, err := a.Catalog.AttachmentCount(id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestArchiveTwice(t *testing.T) {
	a, _ := setupArchiver(t)
	_, _, err := a.Archive("msg-1", parse(t))
	require.NoError(t, err)

	_, _, err = a.Archive("msg-1", parse(t))
	assert.ErrorIs(t, err, ErrAlreadyArchived)

	_, _, err = a.Read("msg-1", "notes@x")
	assert.NoError(t, err, "the first archive is untouched")
}

func TestDeleteAndCleanup(t *testing.T) {
	a, _ := setupArchiver(t)
	_, _, err := a.Archive("msg-1", parse(t))
	require.NoError(t, err)
	_, _, err = a.Archive("msg-2", parse(t))
	require.NoError(t, err)

	require.NoError(t, a.Delete("msg-1"))
	count, _ := a.Catalog.AttachmentCount("msg-1")
	assert.Zero(t, count)
	_, _, err = a.Read("msg-1", "notes@x")
	assert.Error(t, err)

	stray := filepath.Join(a.Store.BasePath(), "msg-2", "stray.bin")
	require.NoError(t, os.WriteFile(stray, []byte("abc"), 0644))

	removed, freed, err := a.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(3), freed)

	_, _, err = a.Read("msg-2", "notes@x")
	assert.NoError(t, err)
}

var repeatedIDs = strings.Join([]string{
	"Subject: repeated ids",
	`Content-Type: multipart/mixed; boundary="b"`,
	"",
	"--b",
	`Content-Type: application/octet-stream; name="same.bin"`,
	"Content-ID: <dup@x>",
	"Content-Disposition: attachment",
	"",
	"one",
	"--b",
	`Content-Type: application/octet-stream; name="same.bin"`,
	"Content-ID: <dup@x>",
	"Content-Disposition: attachment",
	"",
	"two",
	"--b",
	`Content-Type: application/octet-stream; name="other.bin"`,
	"Content-ID: <other@x>",
	"Content-Disposition: attachment",
	"",
	"three",
	"--b--",
	"",
}, "\r\n")

func TestArchiveRepeatedContentID(t *testing.T) {
	a, _ := setupArchiver(t)
	m, err := message.Parse(strings.NewReader(repeatedIDs))
	require.NoError(t, err)

	_, recs, err := a.Archive("m1", m)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "dup@x", recs[0].ID)
	assert.Equal(t, "dup@x", recs[1].ID)
	assert.NotEqual(t, recs[0].File, recs[1].File)

	for i, want := range []string{"one", "two", "three"} {
		r, err := a.Store.ReadAttachment(recs[i].File)
		require.NoError(t, err)
		data, _ := io.ReadAll(r)
		r.Close()
		assert.Equal(t, want, string(data), recs[i].File)
	}

	count, err := a.Catalog.AttachmentCount("m1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, a.Delete("m1"))
	count, _ = a.Catalog.AttachmentCount("m1")
	assert.Zero(t, count)
}

func TestArchiveSkipsFailedAttachment(t *testing.T) {
	a, logs := setupArchiver(t)

	blocker := filepath.Join(a.Store.BasePath(), "msg-1", "2_notes@x_notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(blocker), 0755))
	require.NoError(t, os.WriteFile(blocker, []byte("keep"), 0644))

	_, recs, err := a.Archive("msg-1", parse(t))
	assert.ErrorIs(t, err, ErrIncomplete)
	require.Len(t, recs, 1, "the sibling after the failure is still archived")
	assert.Equal(t, "image", recs[0].Category)

	data, err := os.ReadFile(blocker)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	count, _ := a.Catalog.AttachmentCount("msg-1")
	assert.Equal(t, 1, count)
	assert.Contains(t, logs.String(), "FAILED")
	assert.Zero(t, a.Tracker.ActiveOperations())
}
