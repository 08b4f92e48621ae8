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
	"fmt"
	"time"
)

// Thread status values reported by Status.
const (
	StatusNotFound         = "not_found"
	StatusAwaitingApproval = "awaiting_approval"
	StatusInProgress       = "in_progress"
	StatusCompleted        = "completed"
)

// Status is the externally visible position of a thread.
type Status struct {
	ThreadID     string `json:"thread_id"`
	CurrentStage string `json:"current_stage,omitempty"`
	Status       string `json:"status"`
	// Step is the latest persisted step, 0 when the thread does not exist.
	Step      int64          `json:"step"`
	Next      string         `json:"next,omitempty"`
	Running   bool           `json:"running"`
	Interrupt *Interrupt     `json:"interrupt,omitempty"`
	Values    map[string]any `json:"-"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Status reports the latest checkpoint of a thread. An unknown thread is not
// an error: its status is StatusNotFound.
func (e *Executor) Status(ctx context.Context, threadID string) (*Status, error) {
	cp, err := e.saver.Latest(ctx, threadID)
	if err != nil {
		if IsNotFound(err) {
			return &Status{ThreadID: threadID, Status: StatusNotFound}, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	st := &Status{
		ThreadID:     threadID,
		CurrentStage: cp.State.GetString(KeyCurrentStage),
		Step:         cp.Step,
		Next:         cp.Next,
		Running:      e.running(threadID),
		Interrupt:    cp.Interrupt,
		Values:       cp.State,
		UpdatedAt:    cp.CreatedAt,
	}
	approval := cp.State.GetString(KeyApprovalStatus)
	switch {
	case cp.Suspended():
		st.Status = StatusAwaitingApproval
	case cp.Terminal() && approval == "":
		st.Status = StatusCompleted
	case approval != "":
		st.Status = approval
	default:
		st.Status = StatusInProgress
	}
	return st, nil
}
