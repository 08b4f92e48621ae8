//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides SQLite-based checkpoint storage for pipeline
// threads, using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS post_checkpoints (" +
		"thread_id TEXT NOT NULL, " +
		"step INTEGER NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"stage TEXT NOT NULL, " +
		"next_stage TEXT NOT NULL, " +
		"suspended INTEGER NOT NULL, " +
		"created_at INTEGER NOT NULL, " +
		"checkpoint_json BLOB NOT NULL, " +
		"PRIMARY KEY (thread_id, step)" +
		")"

	// The insert only happens when step directly follows the stored maximum.
	sqliteInsertCheckpoint = "INSERT INTO post_checkpoints (" +
		"thread_id, step, checkpoint_id, stage, next_stage, suspended, created_at, checkpoint_json) " +
		"SELECT ?, ?, ?, ?, ?, ?, ?, ? " +
		"WHERE (SELECT COALESCE(MAX(step), 0) FROM post_checkpoints WHERE thread_id = ?) = ?"

	sqliteSelectLatest = "SELECT checkpoint_json FROM post_checkpoints " +
		"WHERE thread_id = ? ORDER BY step DESC LIMIT 1"

	sqliteSelectAsc = "SELECT checkpoint_json FROM post_checkpoints " +
		"WHERE thread_id = ? ORDER BY step ASC"

	sqliteDeleteThread = "DELETE FROM post_checkpoints WHERE thread_id = ?"
)

// Saver is a SQLite-backed implementation of CheckpointSaver.
// It stores each checkpoint as a JSON blob keyed by (thread_id, step).
type Saver struct {
	db     *sql.DB
	ownsDB bool
	// SQLite allows one writer; serialising here avoids SQLITE_BUSY.
	writeMu sync.Mutex
}

// NewSaver creates a new saver using the provided DB.
// The DB must use a SQLite driver. The constructor creates tables if needed.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Saver{db: db}, nil
}

// Open opens dsn with the modernc driver and returns a saver owning the DB.
// A file path such as "checkpoints.db" or "file::memory:?cache=shared" works.
func Open(dsn string) (*Saver, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	s, err := NewSaver(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Put implements graph.CheckpointSaver.
func (s *Saver) Put(ctx context.Context, cp *graph.Checkpoint) error {
	if err := graph.ValidateForPut(cp); err != nil {
		return err
	}
	b, err := graph.Marshal(cp)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, sqliteInsertCheckpoint,
		cp.ThreadID, cp.Step, cp.ID, cp.Stage, cp.Next, cp.Suspended(), cp.CreatedAt.UnixNano(), b,
		cp.ThreadID, cp.Step-1,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: thread %s step %d exists", graph.ErrCheckpointConflict, cp.ThreadID, cp.Step)
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: thread %s step %d does not follow the latest step",
			graph.ErrCheckpointConflict, cp.ThreadID, cp.Step)
	}
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var b []byte
	err := s.db.QueryRowContext(ctx, sqliteSelectLatest, threadID).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", graph.ErrCheckpointNotFound, threadID)
		}
		return nil, fmt.Errorf("select latest checkpoint: %w", err)
	}
	return graph.Unmarshal(b)
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(ctx context.Context, threadID string) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectAsc, threadID)
	if err != nil {
		return nil, fmt.Errorf("select checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*graph.Checkpoint
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp, err := graph.Unmarshal(b)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// DeleteThread removes all checkpoints of a thread.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, sqliteDeleteThread, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close closes the DB when the saver opened it.
func (s *Saver) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func isConstraintError(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
