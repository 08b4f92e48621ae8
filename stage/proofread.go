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
	"trpc.group/trpc-go/trpc-post-agent-go/linkedin"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

// Proofread corrects grammar and tone and re-validates the final text.
// A missing tone verdict counts as a pass.
func (s *Stages) Proofread(ctx context.Context, state graph.State) (graph.Patch, error) {
	optimized := state.GetString(graph.KeyOptimizedContent)
	result, err := model.Prompt(ctx, s.model, fill(proofreadPrompt, "optimized_content", optimized), defaultGeneration)
	if err != nil {
		return nil, fmt.Errorf("proofread: %w", err)
	}
	proofread, _ := section(result, "Proofread Post", "## Corrections Made")
	if proofread == "" {
		proofread = optimized
	}
	var corrections []string
	if body, ok := section(result, "Corrections Made", "## Tone Check"); ok {
		corrections = listItems(body)
	}
	tonePassed := true
	if body, ok := section(result, "Tone Check"); ok {
		tonePassed = strings.Contains(strings.ToUpper(body), "PASS")
	}
	v := linkedin.Validate(proofread)
	return graph.Patch{
		graph.KeyProofreadContent:     proofread,
		graph.KeyProofreadCorrections: nonNil(corrections),
		graph.KeyToneCheckPassed:      tonePassed,
		graph.KeyLinkedInCharCount:    v.CharCount,
		graph.KeyLinkedInWarnings:     v.Warnings,
		graph.KeyCurrentStage:         Proofread,
	}, nil
}
