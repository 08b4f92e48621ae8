//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package postgres provides PostgreSQL checkpoint storage for pipeline
// threads through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Register the pgx driver.

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

const (
	defaultTable = "post_checkpoints"

	uniqueViolation = "23505"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type statements struct {
	create string
	insert string
	latest string
	list   string
	delete string
}

func newStatements(table string) statements {
	return statements{
		create: "CREATE TABLE IF NOT EXISTS " + table + " (" +
			"thread_id TEXT NOT NULL, " +
			"step BIGINT NOT NULL, " +
			"checkpoint_id UUID NOT NULL, " +
			"stage TEXT NOT NULL, " +
			"next_stage TEXT NOT NULL, " +
			"suspended BOOLEAN NOT NULL, " +
			"created_at TIMESTAMPTZ NOT NULL, " +
			"checkpoint_json JSONB NOT NULL, " +
			"PRIMARY KEY (thread_id, step))",
		insert: "INSERT INTO " + table + " (" +
			"thread_id, step, checkpoint_id, stage, next_stage, suspended, created_at, checkpoint_json) " +
			"SELECT $1, $2, $3, $4, $5, $6, $7, $8 " +
			"WHERE (SELECT COALESCE(MAX(step), 0) FROM " + table + " WHERE thread_id = $1) = $9",
		latest: "SELECT checkpoint_json FROM " + table + " WHERE thread_id = $1 ORDER BY step DESC LIMIT 1",
		list:   "SELECT checkpoint_json FROM " + table + " WHERE thread_id = $1 ORDER BY step ASC",
		delete: "DELETE FROM " + table + " WHERE thread_id = $1",
	}
}

// Option configures a Saver.
type Option func(*Saver)

// WithTable overrides the checkpoint table name.
func WithTable(name string) Option {
	return func(s *Saver) {
		s.table = name
	}
}

// Saver is a PostgreSQL-backed implementation of CheckpointSaver. Concurrent
// writers for the same step are arbitrated by the (thread_id, step) key.
type Saver struct {
	db     *sql.DB
	ownsDB bool
	table  string
	stmts  statements
}

// NewSaver creates a saver on an initialised DB and creates its table.
func NewSaver(ctx context.Context, db *sql.DB, opts ...Option) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	s := &Saver{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if !tableNamePattern.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	s.stmts = newStatements(s.table)
	if _, err := db.ExecContext(ctx, s.stmts.create); err != nil {
		return nil, fmt.Errorf("create %s table: %w", s.table, err)
	}
	return s, nil
}

// Open connects to dsn and returns a saver owning the connection pool.
func Open(ctx context.Context, dsn string, opts ...Option) (*Saver, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewSaver(ctx, db, opts...)
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
	res, err := s.db.ExecContext(ctx, s.stmts.insert,
		cp.ThreadID, cp.Step, cp.ID, cp.Stage, cp.Next, cp.Suspended(), cp.CreatedAt, b, cp.Step-1)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
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
	if err := s.db.QueryRowContext(ctx, s.stmts.latest, threadID).Scan(&b); err != nil {
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
	rows, err := s.db.QueryContext(ctx, s.stmts.list, threadID)
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
	if _, err := s.db.ExecContext(ctx, s.stmts.delete, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close closes the pool when the saver opened it.
func (s *Saver) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
