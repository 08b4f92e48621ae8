//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpointtest holds the behaviour every graph.CheckpointSaver
// implementation must show, as a reusable test suite.
package checkpointtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// Deleter is implemented by savers that can drop a thread.
type Deleter interface {
	DeleteThread(ctx context.Context, threadID string) error
}

// NewSaverFunc returns a fresh, empty saver for one subtest.
type NewSaverFunc func(t *testing.T) graph.CheckpointSaver

// Run executes the conformance suite against savers made by newSaver.
func Run(t *testing.T, newSaver NewSaverFunc) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newSaver(t)) })
	t.Run("IdempotentReads", func(t *testing.T) { testIdempotentReads(t, newSaver(t)) })
	t.Run("LatestNotFound", func(t *testing.T) { testLatestNotFound(t, newSaver(t)) })
	t.Run("ListOrdered", func(t *testing.T) { testListOrdered(t, newSaver(t)) })
	t.Run("RejectsDuplicateStep", func(t *testing.T) { testDuplicateStep(t, newSaver(t)) })
	t.Run("RejectsGap", func(t *testing.T) { testGap(t, newSaver(t)) })
	t.Run("ThreadsAreIsolated", func(t *testing.T) { testIsolation(t, newSaver(t)) })
	t.Run("ConcurrentWritersOneWins", func(t *testing.T) { testConcurrentWriters(t, newSaver(t)) })
	t.Run("Interrupt", func(t *testing.T) { testInterrupt(t, newSaver(t)) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, newSaver(t)) })
	t.Run("DeleteThread", func(t *testing.T) { testDelete(t, newSaver(t)) })
}

func threadID() string {
	return "thread-" + uuid.NewString()
}

// Checkpoint builds a checkpoint with a representative post state.
func Checkpoint(thread string, step int64, stage, next string) *graph.Checkpoint {
	cp := graph.NewCheckpoint(thread, step, stage, next, graph.State{
		graph.KeyUserInput:      "agent reliability",
		graph.KeyPostFormat:     "framework",
		graph.KeyRevisionCount:  1,
		graph.KeyTrendingAngles: []string{"evals", "guardrails"},
		graph.KeyCurrentStage:   stage,
	})
	cp.CreatedAt = time.Date(2025, 3, 1, 12, 0, int(step), 0, time.UTC)
	return cp
}

func put(t *testing.T, s graph.CheckpointSaver, cps ...*graph.Checkpoint) {
	t.Helper()
	for _, cp := range cps {
		require.NoError(t, s.Put(context.Background(), cp))
	}
}

func testRoundTrip(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	cp := Checkpoint(id, 1, "research", "draft")
	put(t, s, cp)

	got, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, got.ID)
	assert.Equal(t, cp.ThreadID, got.ThreadID)
	assert.Equal(t, cp.Step, got.Step)
	assert.Equal(t, "research", got.Stage)
	assert.Equal(t, "draft", got.Next)
	assert.True(t, cp.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "agent reliability", got.State.GetString(graph.KeyUserInput))
	assert.Equal(t, 1, got.State.GetInt(graph.KeyRevisionCount))
	assert.Equal(t, []string{"evals", "guardrails"}, got.State.GetStrings(graph.KeyTrendingAngles))
	assert.Nil(t, got.Interrupt)
}

func testIdempotentReads(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	put(t, s, Checkpoint(id, 1, "research", "draft"))

	first, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	second, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	first.State[graph.KeyUserInput] = "mutated"
	third, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "agent reliability", third.State.GetString(graph.KeyUserInput))
}

func testLatestNotFound(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	_, err := s.Latest(context.Background(), threadID())
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)
	assert.True(t, graph.IsNotFound(err))

	cps, err := s.List(context.Background(), threadID())
	require.NoError(t, err)
	assert.Empty(t, cps)
}

func testListOrdered(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	stages := []string{"research", "draft", "generate_image", "optimize", "proofread"}
	for i, st := range stages {
		next := graph.End
		if i+1 < len(stages) {
			next = stages[i+1]
		}
		put(t, s, Checkpoint(id, int64(i+1), st, next))
	}
	cps, err := s.List(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, cps, len(stages))
	for i, cp := range cps {
		assert.Equal(t, int64(i+1), cp.Step)
		assert.Equal(t, stages[i], cp.Stage)
	}
	latest, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(len(stages)), latest.Step)
	assert.True(t, latest.Terminal())
}

func testDuplicateStep(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	put(t, s, Checkpoint(id, 1, "research", "draft"))
	err := s.Put(context.Background(), Checkpoint(id, 1, "research", "draft"))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrCheckpointConflict)
}

func testGap(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	err := s.Put(context.Background(), Checkpoint(id, 2, "draft", "generate_image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrCheckpointConflict)

	put(t, s, Checkpoint(id, 1, "research", "draft"))
	err = s.Put(context.Background(), Checkpoint(id, 3, "generate_image", "optimize"))
	assert.ErrorIs(t, err, graph.ErrCheckpointConflict)
}

func testIsolation(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	a, b := threadID(), threadID()
	put(t, s, Checkpoint(a, 1, "research", "draft"), Checkpoint(a, 2, "draft", "generate_image"))
	put(t, s, Checkpoint(b, 1, "research", "draft"))

	la, err := s.Latest(context.Background(), a)
	require.NoError(t, err)
	lb, err := s.Latest(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), la.Step)
	assert.Equal(t, int64(1), lb.Step)
}

func testConcurrentWriters(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	put(t, s, Checkpoint(id, 1, "research", "draft"))

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cp := Checkpoint(id, 2, "draft", "generate_image")
			cp.State[graph.KeyDraftContent] = fmt.Sprintf("draft %d", i)
			if err := s.Put(context.Background(), cp); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, graph.ErrCheckpointConflict)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, success)

	cps, err := s.List(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, cps, 2)
}

func testInterrupt(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	id := threadID()
	cp := Checkpoint(id, 1, "approve", "approve")
	cp.Interrupt = &graph.Interrupt{
		Stage:     "approve",
		Payload:   map[string]any{graph.KeyProofreadContent: "final text", graph.KeyRevisionCount: 0},
		Timestamp: cp.CreatedAt,
	}
	put(t, s, cp)

	got, err := s.Latest(context.Background(), id)
	require.NoError(t, err)
	require.True(t, got.Suspended())
	assert.Equal(t, "approve", got.Interrupt.Stage)
	assert.Equal(t, "final text", got.Interrupt.Payload[graph.KeyProofreadContent])
	assert.True(t, cp.Interrupt.Timestamp.Equal(got.Interrupt.Timestamp))
}

func testValidation(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	assert.Error(t, s.Put(context.Background(), nil))
	assert.ErrorIs(t, s.Put(context.Background(), Checkpoint("", 1, "research", "draft")), graph.ErrThreadIDRequired)
	assert.ErrorIs(t, s.Put(context.Background(), Checkpoint(threadID(), 0, "research", "draft")),
		graph.ErrCheckpointConflict)
	_, err := s.Latest(context.Background(), "")
	assert.ErrorIs(t, err, graph.ErrThreadIDRequired)
}

func testDelete(t *testing.T, s graph.CheckpointSaver) {
	defer s.Close()
	d, ok := s.(Deleter)
	if !ok {
		t.Skip("saver cannot delete threads")
	}
	id := threadID()
	put(t, s, Checkpoint(id, 1, "research", "draft"))
	require.NoError(t, d.DeleteThread(context.Background(), id))
	_, err := s.Latest(context.Background(), id)
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)
	put(t, s, Checkpoint(id, 1, "research", "draft"))
}
