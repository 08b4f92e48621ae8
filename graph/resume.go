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
	"fmt"
	"strings"
)

// Resume decisions.
const (
	DecisionApproved      = "approved"
	DecisionEditRequested = "edit_requested"
)

// Command is the external decision that unblocks a suspended thread.
// Its wire shape is {"status": "approved"|"edit_requested", "feedback": "..."}.
type Command struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// Approve returns an approval command.
func Approve() *Command {
	return &Command{Status: DecisionApproved}
}

// RequestEdit returns a command that sends the thread back for revision.
func RequestEdit(feedback string) *Command {
	return &Command{Status: DecisionEditRequested, Feedback: feedback}
}

// Approved reports whether the command approves the suspended content.
func (c *Command) Approved() bool {
	return c.Status == DecisionApproved
}

// Validate checks the decision value.
func (c *Command) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: command is nil", ErrInvalidCommand)
	}
	switch c.Status {
	case DecisionApproved:
		return nil
	case DecisionEditRequested:
		if strings.TrimSpace(c.Feedback) == "" {
			return fmt.Errorf("%w: feedback is required when requesting edits", ErrInvalidCommand)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidCommand, c.Status)
	}
}
