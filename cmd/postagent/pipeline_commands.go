//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/runner"
)

// withApp builds the app for a command and closes it afterwards.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var req runner.RunRequest
	var fileFlag string
	var imageFlags []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new post and stream it until review",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.UserInput) == "" {
				return errors.New("--input is required")
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				if fileFlag != "" {
					text, err := readDocument(a, fileFlag)
					if err != nil {
						return err
					}
					req.UploadedFileText = text
				}
				req.UploadedImages = imageFlags
				threadID, events, err := a.runner.Run(runCtx, &req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "thread %s\n", threadID)
				return printEvents(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().StringVarP(&req.UserInput, "input", "i", "", "Topic or idea for the post")
	cmd.Flags().StringVarP(&req.ContentPillar, "pillar", "p", "", "Content pillar")
	cmd.Flags().StringVarP(&req.PostFormat, "format", "f", "", "Post format (framework, strong_pov, simplification, story, leader_lens)")
	cmd.Flags().StringVar(&req.PostID, "post-id", "", "Identifier of the post the drafts belong to")
	cmd.Flags().StringVar(&req.ThreadID, "thread", "", "Thread id to use instead of a generated one")
	cmd.Flags().StringVar(&fileFlag, "file", "", "Source document (pdf, docx, txt or md) used as research input")
	cmd.Flags().StringSliceVar(&imageFlags, "image", nil, "Uploaded image reference or URL (repeatable)")
	return cmd
}

func readDocument(a *app, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return a.documents.Extract("", path, data), nil
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var command graph.Command
	cmd := &cobra.Command{
		Use:   "resume <thread-id>",
		Short: "Approve a suspended post or send it back with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := command.Validate(); err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				events, err := a.runner.Resume(runCtx, args[0], &command)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), events)
			})
		},
	}
	cmd.Flags().StringVar(&command.Status, "status", graph.DecisionApproved, "Decision: approved or edit_requested")
	cmd.Flags().StringVar(&command.Feedback, "feedback", "", "Reviewer feedback, required with edit_requested")
	return cmd
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <thread-id>",
		Short: "Continue a thread that stopped after a failed stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				events, err := a.runner.Replay(runCtx, args[0])
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), events)
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status <thread-id>",
		Short: "Show where a thread is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				st, err := a.runner.Status(runCtx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

// failedError turns a failed event into the command's error.
func failedError(ev *event.Event) error {
	if ev.Error == nil {
		return fmt.Errorf("stage %s failed", ev.Stage)
	}
	return fmt.Errorf("stage %s failed (%s): %s", ev.Stage, ev.Error.Type, ev.Error.Message)
}
