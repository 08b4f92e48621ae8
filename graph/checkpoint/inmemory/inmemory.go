//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides in-memory checkpoint storage for pipeline threads.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// Saver provides an in-memory implementation of CheckpointSaver.
// This is suitable for testing and single-process use only.
// Checkpoints are kept in their encoded form so readers never share state
// with the executor.
type Saver struct {
	mu      sync.RWMutex
	threads map[string]*thread
	// maxCheckpointsPerThread limits the retained history of a thread.
	maxCheckpointsPerThread int
}

type thread struct {
	latest int64
	// encoded checkpoints ordered by step; the oldest may have been pruned.
	entries [][]byte
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{threads: make(map[string]*thread)}
}

// WithMaxCheckpointsPerThread caps the history kept per thread. The latest
// checkpoint is always retained. Zero means unlimited.
func (s *Saver) WithMaxCheckpointsPerThread(max int) *Saver {
	s.maxCheckpointsPerThread = max
	return s
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

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[cp.ThreadID]
	if !ok {
		t = &thread{}
		s.threads[cp.ThreadID] = t
	}
	if cp.Step != t.latest+1 {
		return fmt.Errorf("%w: thread %s step %d after %d",
			graph.ErrCheckpointConflict, cp.ThreadID, cp.Step, t.latest)
	}
	t.entries = append(t.entries, b)
	t.latest = cp.Step
	if s.maxCheckpointsPerThread > 0 && len(t.entries) > s.maxCheckpointsPerThread {
		t.entries = append([][]byte(nil), t.entries[len(t.entries)-s.maxCheckpointsPerThread:]...)
	}
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	t, ok := s.threads[threadID]
	var b []byte
	if ok && len(t.entries) > 0 {
		b = t.entries[len(t.entries)-1]
	}
	s.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("%w: %s", graph.ErrCheckpointNotFound, threadID)
	}
	return graph.Unmarshal(b)
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(ctx context.Context, threadID string) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	var entries [][]byte
	if t, ok := s.threads[threadID]; ok {
		entries = append(entries, t.entries...)
	}
	s.mu.RUnlock()

	out := make([]*graph.Checkpoint, 0, len(entries))
	for _, b := range entries {
		cp, err := graph.Unmarshal(b)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// DeleteThread removes all checkpoints of a thread.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.threads, threadID)
	s.mu.Unlock()
	return nil
}

// Close implements graph.CheckpointSaver.
func (s *Saver) Close() error {
	s.mu.Lock()
	s.threads = make(map[string]*thread)
	s.mu.Unlock()
	return nil
}
