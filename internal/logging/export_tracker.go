/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package logging

import (
	"sync"
	"time"

	gologme "github.com/gologme/log"
	"go.uber.org/atomic"
)

// Operation tracks a single export of a message's attachments
type Operation struct {
	OpID        string
	MessageID   string
	Attachments int
	TotalSize   int64
	StartTime   time.Time
	Milestones  []Milestone
	mu          sync.Mutex
}

// Milestone is one attachment written during an operation
type Milestone struct {
	Timestamp    time.Time
	AttachmentID string
	BytesWritten int64
	Message      string
}

// ExportTracker logs progress of attachment exports
type ExportTracker struct {
	log        *gologme.Logger
	operations sync.Map // map[string]*Operation
	active     atomic.Int64
}

func NewExportTracker(log *gologme.Logger) *ExportTracker {
	if log == nil {
		log = Discard()
	}
	return &ExportTracker{log: log}
}

// StartOperation begins tracking an export of count attachments totalling size bytes
func (t *ExportTracker) StartOperation(opID, messageID string, count int, size int64) {
	op := &Operation{
		OpID:        opID,
		MessageID:   messageID,
		Attachments: count,
		TotalSize:   size,
		StartTime:   time.Now(),
		Milestones:  make([]Milestone, 0, count),
	}
	if _, loaded := t.operations.LoadOrStore(opID, op); loaded {
		t.log.Warnf("[Export:%s] operation already started", opID)
		return
	}
	t.active.Inc()

	t.log.Infof("[Export:%s] START - MessageID=%s Attachments=%d Size=%d bytes",
		opID, messageID, count, size)
}

// LogMilestone records one written attachment
func (t *ExportTracker) LogMilestone(opID, attachmentID string, written int64, message string) {
	value, ok := t.operations.Load(opID)
	if !ok {
		t.log.Warnf("[Export:%s] operation not found for milestone", opID)
		return
	}

	op := value.(*Operation)
	op.mu.Lock()
	defer op.mu.Unlock()

	op.Milestones = append(op.Milestones, Milestone{
		Timestamp:    time.Now(),
		AttachmentID: attachmentID,
		BytesWritten: written,
		Message:      message,
	})

	var done int64
	for _, m := range op.Milestones {
		done += m.BytesWritten
	}
	var percentage float64
	if op.TotalSize > 0 {
		percentage = float64(done) / float64(op.TotalSize) * 100
	}

	t.log.Debugf("[Export:%s] %s - %d/%d attachments %.1f%% - %s",
		opID, attachmentID, len(op.Milestones), op.Attachments, percentage, message)
}

// EndOperation finalizes an operation
func (t *ExportTracker) EndOperation(opID string, success bool, errorMsg string) {
	value, ok := t.operations.LoadAndDelete(opID)
	if !ok {
		t.log.Warnf("[Export:%s] operation not found for end", opID)
		return
	}
	t.active.Dec()

	op := value.(*Operation)
	op.mu.Lock()
	elapsed := time.Since(op.StartTime)
	written := len(op.Milestones)
	op.mu.Unlock()

	if success {
		t.log.Infof("[Export:%s] SUCCESS - MessageID=%s Written=%d Duration=%v",
			opID, op.MessageID, written, elapsed.Round(time.Millisecond))
	} else {
		t.log.Errorf("[Export:%s] FAILED - MessageID=%s Written=%d/%d Error: %s",
			opID, op.MessageID, written, op.Attachments, errorMsg)
	}
}

// LogError logs an error during an operation
func (t *ExportTracker) LogError(opID, attachmentID string, err error) {
	t.log.Errorf("[Export:%s] ERROR writing %s: %v", opID, attachmentID, err)
}

// ActiveOperations returns the count of operations still running
func (t *ExportTracker) ActiveOperations() int {
	return int(t.active.Load())
}

// OperationStatus returns the number of attachments written so far and the progress percentage
func (t *ExportTracker) OperationStatus(opID string) (written int, progress float64, found bool) {
	value, ok := t.operations.Load(opID)
	if !ok {
		return 0, 0, false
	}

	op := value.(*Operation)
	op.mu.Lock()
	defer op.mu.Unlock()

	written = len(op.Milestones)
	if op.Attachments > 0 {
		progress = float64(written) / float64(op.Attachments) * 100
	}
	return written, progress, true
}
