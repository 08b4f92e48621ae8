//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/checkpointtest"
	"trpc.group/trpc-go/trpc-post-agent-go/internal/testutil"
)

func TestSaver(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	db, err := sql.Open(DriverName, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	checkpointtest.Run(t, func(t *testing.T) graph.CheckpointSaver {
		s, err := NewSaver(context.Background(), db)
		require.NoError(t, err)
		return s
	})
}

func TestOpen_CustomTable(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()
	s, err := Open(ctx, dsn, WithTable("custom_checkpoints"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, checkpointtest.Checkpoint("t-1", 1, "research", "draft")))
	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM custom_checkpoints").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewSaver_Validation(t *testing.T) {
	_, err := NewSaver(context.Background(), nil)
	assert.Error(t, err)

	db, err := sql.Open(DriverName, "postgres://unused@localhost:1/none")
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSaver(context.Background(), db, WithTable("bad; DROP TABLE x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}
