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

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

// current_stage values written by the approve stage.
const (
	stageApproved = "approved"
	stageRevision = "revision"
)

// Approve suspends the thread with the review material. On resume it records
// the reviewer's decision.
func (s *Stages) Approve(_ context.Context, state graph.State) (graph.Patch, error) {
	cmd, err := graph.Suspend(state, ReviewPayload(state))
	if err != nil {
		return nil, err
	}
	patch := graph.Patch{
		graph.KeyApprovalStatus:   cmd.Status,
		graph.KeyApprovalFeedback: cmd.Feedback,
	}
	if cmd.Approved() {
		patch[graph.KeyCurrentStage] = stageApproved
	} else {
		patch[graph.KeyCurrentStage] = stageRevision
	}
	return patch, nil
}

// ReviewPayload is what the reviewer sees while the thread is suspended.
func ReviewPayload(state graph.State) map[string]any {
	return map[string]any{
		graph.KeyProofreadContent:       state.GetString(graph.KeyProofreadContent),
		graph.KeySuggestedHashtags:      nonNil(state.GetStrings(graph.KeySuggestedHashtags)),
		graph.KeyImageURL:               state.GetString(graph.KeyImageURL),
		graph.KeyImageGenerationStatus:  state.GetString(graph.KeyImageGenerationStatus),
		graph.KeyOptimizationChanges:    nonNil(state.GetStrings(graph.KeyOptimizationChanges)),
		graph.KeyProofreadCorrections:   nonNil(state.GetStrings(graph.KeyProofreadCorrections)),
		graph.KeyToneCheckPassed:        state.GetBool(graph.KeyToneCheckPassed, true),
		graph.KeyRevisionCount:          state.GetInt(graph.KeyRevisionCount),
		graph.KeyLinkedInCharCount:      state.GetInt(graph.KeyLinkedInCharCount),
		graph.KeyLinkedInWarnings:       nonNil(state.GetStrings(graph.KeyLinkedInWarnings)),
		graph.KeyFactCheckResults:       factChecks(state),
		graph.KeyFactCheckPerformed:     state.GetBool(graph.KeyFactCheckPerformed, false),
		graph.KeyImageSourceDecision:    state.GetString(graph.KeyImageSourceDecision),
		graph.KeyImageDecisionReasoning: state.GetString(graph.KeyImageDecisionReasoning),
		graph.KeyOriginalImageURL:       state.GetString(graph.KeyOriginalImageURL),
	}
}

// RouteAfterApproval sends an approved post to the end and anything else
// back to the draft stage.
func RouteAfterApproval(_ context.Context, state graph.State) (string, error) {
	if state.GetString(graph.KeyApprovalStatus) == graph.DecisionApproved {
		return graph.End, nil
	}
	return Draft, nil
}

// factChecks reads fact-check results in either their typed form or the
// shape they have after a store round trip.
func factChecks(state graph.State) []FactCheck {
	var out []FactCheck
	if err := state.Decode(graph.KeyFactCheckResults, &out); err != nil {
		log.Warnf("stage: %v", err)
	}
	return nonNil(out)
}
