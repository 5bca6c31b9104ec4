/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sqlite3

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// Writer funnels every write through a single goroutine, since SQLite only
// allows one writer at a time.
type Writer struct {
	running atomic.Bool
	todo    chan writerTask
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

var ErrWriterClosed = errors.New("writer closed")

type writerTask struct {
	db   *sql.DB
	txn  *sql.Tx
	f    func(txn *sql.Tx) error
	wait chan error
}

func NewWriter() *Writer {
	return &Writer{
		todo: make(chan writerTask),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Do runs f on the writer goroutine. With a nil txn and a non-nil db, f runs
// in a fresh transaction that is committed when f succeeds.
func (w *Writer) Do(db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	if w.running.CompareAndSwap(false, true) {
		go w.run()
	}
	task := writerTask{
		db:   db,
		txn:  txn,
		f:    f,
		wait: make(chan error, 1),
	}
	select {
	case w.todo <- task:
		return <-task.wait
	case <-w.quit:
		return ErrWriterClosed
	}
}

// Close stops the writer goroutine once it has finished any running task.
// Later calls to Do return ErrWriterClosed.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.quit)
		if !w.running.CompareAndSwap(false, true) {
			<-w.done
		}
	})
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case task := <-w.todo:
			switch {
			case task.txn != nil:
				task.wait <- task.f(task.txn)
			case task.db != nil:
				task.wait <- withTransaction(task.db, task.f)
			default:
				task.wait <- task.f(nil)
			}
			close(task.wait)
		case <-w.quit:
			return
		}
	}
}

func withTransaction(db *sql.DB, f func(txn *sql.Tx) error) (err error) {
	txn, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db.Begin: %w", err)
	}
	defer func() {
		if err != nil {
			txn.Rollback() // nolint:errcheck
			return
		}
		if err = txn.Commit(); err != nil {
			err = fmt.Errorf("txn.Commit: %w", err)
		}
	}()
	return f(txn)
}
