//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/checkpointtest"
)

func TestSaver(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) graph.CheckpointSaver {
		return NewSaver()
	})
}

func TestSaver_MaxCheckpointsPerThread(t *testing.T) {
	s := NewSaver().WithMaxCheckpointsPerThread(2)
	ctx := context.Background()
	for step := int64(1); step <= 4; step++ {
		require.NoError(t, s.Put(ctx, checkpointtest.Checkpoint("t", step, "draft", "optimize")))
	}
	cps, err := s.List(ctx, "t")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, int64(3), cps[0].Step)
	assert.Equal(t, int64(4), cps[1].Step)

	// Pruning keeps the step sequence.
	assert.ErrorIs(t, s.Put(ctx, checkpointtest.Checkpoint("t", 4, "draft", "optimize")), graph.ErrCheckpointConflict)
	assert.NoError(t, s.Put(ctx, checkpointtest.Checkpoint("t", 5, "draft", "optimize")))
}
