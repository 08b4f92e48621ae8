//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
package stage

import (
	"context"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

// Draft writes the post in the requested format. When the reviewer asked
// for edits, the feedback and the previous draft are part of the prompt and
// the revision count goes up by one.
func (s *Stages) Draft(ctx context.Context, state graph.State) (graph.Patch, error) {
	feedback := state.GetString(graph.KeyApprovalFeedback)
	revision := ""
	if feedback != "" {
		revision = fill(revisionContext,
			"feedback", feedback,
			"draft", state.GetString(graph.KeyDraftContent),
		)
	}
	prompt := fill(draftTemplate(state.GetString(graph.KeyPostFormat)),
		"research_results", state.GetString(graph.KeyResearchResults),
		"user_input", state.GetString(graph.KeyUserInput),
		"revision_context", revision,
	)
	if text := state.GetString(graph.KeyUploadedFileText); text != "" {
		prompt += "\n\nSource material from uploaded file:\n" + truncate(text, draftSourceLimit)
	}
	result, err := model.Prompt(ctx, s.model, prompt, defaultGeneration)
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}
	hook, cta := hookAndCTA(result)
	revisions := state.GetInt(graph.KeyRevisionCount)
	if feedback != "" {
		revisions++
	}
	return graph.Patch{
		graph.KeyDraftContent:  result,
		graph.KeyDraftHook:     hook,
		graph.KeyDraftCTA:      cta,
		graph.KeyRevisionCount: revisions,
		graph.KeyCurrentStage:  Draft,
	}, nil
}

// hookAndCTA returns the first two non-empty lines and the last line that
// asks a question.
func hookAndCTA(post string) (hook, cta string) {
	lines := nonEmptyLines(post)
	hook = strings.Join(limit(lines, 2), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], "?") {
			cta = strings.TrimSpace(lines[i])
			break
		}
	}
	return hook, cta
}
