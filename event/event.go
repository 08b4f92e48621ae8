//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package event provides the externally observable notifications of a
// pipeline thread.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the event type.
type Kind string

// Event kinds.
const (
	// KindStageComplete is emitted after a stage's checkpoint is persisted.
	KindStageComplete Kind = "stage_complete"
	// KindSuspended is emitted when the thread waits for a resume command.
	KindSuspended Kind = "suspended"
	// KindCompleted is emitted when the thread reaches the end of the pipeline.
	KindCompleted Kind = "completed"
	// KindFailed is emitted when the run aborts.
	KindFailed Kind = "failed"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Terminal reports whether no further event follows this kind in a run.
func (k Kind) Terminal() bool {
	return k == KindSuspended || k == KindCompleted || k == KindFailed
}

// Error is the failure carried by a failed event.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event represents one notification of a thread.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// ThreadID is the thread the event belongs to.
	ThreadID string `json:"thread_id"`
	// Kind is the event type.
	Kind Kind `json:"kind"`
	// Stage is the stage the event reports on.
	Stage string `json:"stage,omitempty"`
	// Step is the checkpoint step the event corresponds to.
	Step int64 `json:"step"`
	// Description is a human-readable summary.
	Description string `json:"description,omitempty"`
	// Details are short supporting lines, e.g. trending angles.
	Details []string `json:"details,omitempty"`
	// Data holds stage-specific preview fields.
	Data map[string]any `json:"data,omitempty"`
	// Payload is the suspension payload for review.
	Payload map[string]any `json:"payload,omitempty"`
	// Error is set on failed events.
	Error *Error `json:"error,omitempty"`
	// Timestamp is the timestamp of the event.
	Timestamp time.Time `json:"timestamp"`
}

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithDescription sets the description.
func WithDescription(desc string) Option {
	return func(e *Event) {
		e.Description = desc
	}
}

// WithDetails sets the detail lines.
func WithDetails(details []string) Option {
	return func(e *Event) {
		e.Details = details
	}
}

// WithData sets the stage data.
func WithData(data map[string]any) Option {
	return func(e *Event) {
		e.Data = data
	}
}

// New creates a new Event with generated ID and timestamp.
func New(threadID string, kind Kind, stage string, step int64, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Kind:      kind,
		Stage:     stage,
		Step:      step,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewSuspended creates a suspended event carrying the review payload.
func NewSuspended(threadID, stage string, step int64, payload map[string]any) *Event {
	e := New(threadID, KindSuspended, stage, step, WithDescription("Awaiting approval"))
	e.Payload = payload
	return e
}

// NewFailed creates a failed event.
func NewFailed(threadID, stage string, step int64, errType, message string) *Event {
	e := New(threadID, KindFailed, stage, step)
	e.Error = &Error{Type: errType, Message: message}
	return e
}

// Clone creates a copy of the event with its own top-level maps and slices.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = append([]string(nil), e.Details...)
	clone.Data = cloneMap(e.Data)
	clone.Payload = cloneMap(e.Payload)
	if e.Error != nil {
		errCopy := *e.Error
		clone.Error = &errCopy
	}
	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
