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
	"errors"
	"strings"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// NewGraph assembles the post pipeline:
//
//	research -> draft -> generate_image -> optimize -> proofread -> approve
//
// approve suspends for review and routes to the end when approved, back to
// draft otherwise.
func NewGraph(s *Stages) (*graph.Graph, error) {
	if s == nil {
		return nil, errors.New("stage: stages are nil")
	}
	return graph.NewStateGraph().
		AddStage(Research, s.Research,
			graph.WithDescription("Research trending angles and hooks"),
			graph.WithSummary(summarizeResearch)).
		AddStage(Draft, s.Draft,
			graph.WithDescription("Write the post in the requested format"),
			graph.WithSummary(summarizeDraft)).
		AddStage(GenerateImage, s.GenerateImage,
			graph.WithDescription("Pick or generate the post image"),
			graph.WithSummary(summarizeImage)).
		AddStage(Optimize, s.Optimize,
			graph.WithDescription("Optimize for LinkedIn, fact-check and select images"),
			graph.WithSummary(summarizeOptimize)).
		AddStage(Proofread, s.Proofread,
			graph.WithDescription("Proofread and check tone"),
			graph.WithSummary(summarizeProofread)).
		AddStage(Approve, s.Approve,
			graph.WithDescription("Wait for human approval"),
			graph.WithSummary(summarizeApprove),
			graph.WithInterrupt()).
		AddEdge(Research, Draft).
		AddEdge(Draft, GenerateImage).
		AddEdge(GenerateImage, Optimize).
		AddEdge(Optimize, Proofread).
		AddEdge(Proofread, Approve).
		AddConditionalEdges(Approve, RouteAfterApproval, map[string]string{
			Draft:     Draft,
			graph.End: graph.End,
		}).
		SetEntryPoint(Research).
		SetInitializer(Initialize).
		SetCompletion(Completion).
		Compile()
}

// Initialize validates the input of a new thread and fills defaults.
func Initialize(state graph.State) (graph.State, error) {
	input := strings.TrimSpace(state.GetString(graph.KeyUserInput))
	if input == "" {
		return nil, errors.New("user_input is required")
	}
	state[graph.KeyUserInput] = input
	if state.GetString(graph.KeyPostFormat) == "" {
		state[graph.KeyPostFormat] = FormatFramework
	}
	if _, ok := state[graph.KeyUploadedImages]; !ok {
		state[graph.KeyUploadedImages] = []string{}
	}
	state[graph.KeyRevisionCount] = 0
	return state, nil
}

// Completion is the data of the completed event.
func Completion(state graph.State) map[string]any {
	return map[string]any{
		"status":              graph.DecisionApproved,
		graph.KeyPostID:        state.GetString(graph.KeyPostID),
		"final_content":       state.GetString(graph.KeyProofreadContent),
		graph.KeyRevisionCount: state.GetInt(graph.KeyRevisionCount),
	}
}
