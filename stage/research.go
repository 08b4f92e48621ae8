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

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

const (
	maxAngles = 5
	maxHooks  = 5
)

var defaultGeneration = model.Config(2000, 0.7)

// Research asks the model for trending angles and hook ideas on the topic.
func (s *Stages) Research(ctx context.Context, state graph.State) (graph.Patch, error) {
	fileContext := ""
	if text := state.GetString(graph.KeyUploadedFileText); text != "" {
		fileContext = "Uploaded file content:\n" + truncate(text, researchSourceLimit)
	}
	prompt := fill(researchPrompt,
		"content_pillar", state.GetString(graph.KeyContentPillar),
		"post_format", state.GetString(graph.KeyPostFormat),
		"user_input", state.GetString(graph.KeyUserInput),
		"file_context", fileContext,
	)
	result, err := model.Prompt(ctx, s.model, prompt, defaultGeneration)
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}
	var angles, hooks []string
	if body, ok := section(result, "Trending Angles", "##"); ok {
		angles = listItems(body)
	}
	if body, ok := section(result, "Hook Ideas", "##"); ok {
		hooks = listItems(body)
	}
	return graph.Patch{
		graph.KeyResearchResults:      result,
		graph.KeyTrendingAngles:       nonNil(limit(angles, maxAngles)),
		graph.KeyRecommendedHookIdeas: nonNil(limit(hooks, maxHooks)),
		graph.KeyCurrentStage:         Research,
	}, nil
}
