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
	"errors"
	"fmt"
)

// Errors that cross the executor boundary.
var (
	// ErrNotFound reports that a thread has no checkpoint.
	ErrNotFound = errors.New("thread not found")
	// ErrInvalidState reports a protocol violation: resuming a thread that
	// is not suspended, or driving a thread that is already running.
	ErrInvalidState = errors.New("invalid thread state")
	// ErrStageFailure reports that a stage could not produce its update.
	ErrStageFailure = errors.New("stage failure")
	// ErrInvalidCommand reports a malformed resume command.
	ErrInvalidCommand = errors.New("invalid resume command")
	// ErrInvalidInput reports an unusable initial state.
	ErrInvalidInput = errors.New("invalid input")
)

// Checkpoint store errors.
var (
	ErrThreadIDRequired   = errors.New("thread_id is required")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCheckpointConflict is returned by a store when a checkpoint for the
	// same thread and step already exists, or the step does not directly
	// follow the latest stored step.
	ErrCheckpointConflict = errors.New("checkpoint conflict")
)

// Error types carried by failed events.
const (
	ErrorTypeNotFound        = "not_found"
	ErrorTypeInvalidState    = "invalid_state"
	ErrorTypeStageFailure    = "stage_failure"
	ErrorTypeCheckpoint      = "checkpoint_error"
	ErrorTypeStepLimit       = "step_limit_exceeded"
	ErrorTypeGraphDefinition = "graph_definition_error"
)

// StageError describes a failed stage invocation.
type StageError struct {
	Stage string
	Step  int64
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed at step %d: %v", e.Stage, e.Step, e.Err)
}

// Unwrap exposes both the failure class and the cause.
func (e *StageError) Unwrap() []error {
	return []error{ErrStageFailure, e.Err}
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCheckpointNotFound)
}

// IsInvalidState reports whether err is an InvalidState error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsStageFailure reports whether err is a StageFailure.
func IsStageFailure(err error) bool {
	return errors.Is(err, ErrStageFailure)
}
