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
	"time"
)

// Interrupt is the pending suspension stored with a checkpoint.
type Interrupt struct {
	// Stage is the stage that suspended and will consume the resume command.
	Stage string `json:"stage"`
	// Payload is the read-only review material handed to the caller.
	Payload map[string]any `json:"payload,omitempty"`
	// Timestamp is when the stage suspended.
	Timestamp time.Time `json:"timestamp"`
}

// InterruptError is returned by a stage that asks the executor to suspend.
type InterruptError struct {
	// Payload is the value passed to Suspend.
	Payload map[string]any
}

// Error returns the error message for the interrupt.
func (e *InterruptError) Error() string {
	return fmt.Sprintf("stage interrupted with %d payload fields", len(e.Payload))
}

// Suspend is called by an interruptible stage. On the first invocation it
// returns an *InterruptError carrying payload. When the thread is resumed the
// executor places the Command into the state and Suspend returns it instead.
func Suspend(state State, payload map[string]any) (*Command, error) {
	if cmd, ok := state[KeyResume].(*Command); ok && cmd != nil {
		return cmd, nil
	}
	return nil, &InterruptError{Payload: payload}
}

// IsInterruptError checks if an error is an InterruptError.
func IsInterruptError(err error) bool {
	var ie *InterruptError
	return errors.As(err, &ie)
}

// GetInterruptError extracts InterruptError from an error.
func GetInterruptError(err error) (*InterruptError, bool) {
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
