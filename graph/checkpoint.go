//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is an immutable snapshot of a thread after one step.
type Checkpoint struct {
	// ID is the unique identifier of the checkpoint.
	ID string `json:"id"`
	// ThreadID scopes the checkpoint to one run.
	ThreadID string `json:"thread_id"`
	// Step is the 1-based sequence number within the thread.
	Step int64 `json:"step"`
	// Stage is the stage whose completion (or suspension) produced the checkpoint.
	Stage string `json:"stage"`
	// Next is the stage to run when the thread continues, End when terminal.
	Next string `json:"next"`
	// State is the record after the step.
	State State `json:"state"`
	// Interrupt is set when the thread is suspended at this checkpoint.
	Interrupt *Interrupt `json:"interrupt,omitempty"`
	// CreatedAt is when the checkpoint was taken.
	CreatedAt time.Time `json:"created_at"`
}

// NewCheckpoint creates a checkpoint with a fresh ID and timestamp.
func NewCheckpoint(threadID string, step int64, stage, next string, state State) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Step:      step,
		Stage:     stage,
		Next:      next,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
}

// Suspended reports whether the thread is waiting for a resume command.
func (c *Checkpoint) Suspended() bool {
	return c.Interrupt != nil
}

// Terminal reports whether the thread reached the end of the pipeline.
func (c *Checkpoint) Terminal() bool {
	return c.Interrupt == nil && c.Next == End
}

// Copy returns a deep copy of the checkpoint made through its JSON form,
// so callers never share mutable state with a store.
func (c *Checkpoint) Copy() (*Checkpoint, error) {
	b, err := Marshal(c)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// CheckpointSaver is the durable, thread-keyed checkpoint store.
//
// Implementations must accept concurrent calls for different threads. Put
// must reject a checkpoint whose step already exists for the thread, or does
// not directly follow the latest stored step, with ErrCheckpointConflict.
type CheckpointSaver interface {
	// Put durably stores a checkpoint.
	Put(ctx context.Context, cp *Checkpoint) error
	// Latest returns the checkpoint with the highest step for the thread,
	// or ErrCheckpointNotFound.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)
	// List returns all checkpoints of a thread ordered by step.
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)
	// Close releases resources held by the saver.
	Close() error
}

// Marshal encodes a checkpoint for storage.
func Marshal(cp *Checkpoint) ([]byte, error) {
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a stored checkpoint.
func Unmarshal(b []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if cp.State == nil {
		cp.State = State{}
	}
	return &cp, nil
}

// ValidateForPut checks the fields every store relies on.
func ValidateForPut(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if cp.ThreadID == "" {
		return ErrThreadIDRequired
	}
	if cp.Step < 1 {
		return fmt.Errorf("%w: step %d is not positive", ErrCheckpointConflict, cp.Step)
	}
	return nil
}
