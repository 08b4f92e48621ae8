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
	"fmt"
	"strings"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

func summarizeResearch(p graph.Patch) graph.Summary {
	angles := p.GetStrings(graph.KeyTrendingAngles)
	return graph.Summary{
		Description: fmt.Sprintf("Found %d trending angles", len(angles)),
		Details:     limit(angles, 3),
		Data: map[string]any{
			graph.KeyTrendingAngles:       angles,
			graph.KeyRecommendedHookIdeas: p.GetStrings(graph.KeyRecommendedHookIdeas),
		},
	}
}

func summarizeDraft(p graph.Patch) graph.Summary {
	content := p.GetString(graph.KeyDraftContent)
	return graph.Summary{
		Description: fmt.Sprintf("Draft created (%d chars)", utf8.RuneCountInString(content)),
		Data: map[string]any{
			graph.KeyDraftContent:  content,
			graph.KeyDraftHook:     p.GetString(graph.KeyDraftHook),
			graph.KeyDraftCTA:      p.GetString(graph.KeyDraftCTA),
			graph.KeyRevisionCount: p.GetInt(graph.KeyRevisionCount),
		},
	}
}

func summarizeImage(p graph.Patch) graph.Summary {
	status := p.GetString(graph.KeyImageGenerationStatus)
	url := p.GetString(graph.KeyImageURL)
	var desc string
	switch {
	case status == ImageStatusSkippedNoKey:
		desc = "Image generation skipped (no API key)"
	case url != "":
		desc = "Image generated successfully"
	default:
		desc = "Image generation attempted"
	}
	data := map[string]any{graph.KeyImageGenerationStatus: status}
	if url != "" {
		data[graph.KeyImageURL] = url
	}
	return graph.Summary{Description: desc, Data: data}
}

func summarizeOptimize(p graph.Patch) graph.Summary {
	changes := p.GetStrings(graph.KeyOptimizationChanges)
	var facts []FactCheck
	_ = p.Decode(graph.KeyFactCheckResults, &facts)
	decision := p.GetString(graph.KeyImageSourceDecision)

	var parts []string
	if len(changes) > 0 {
		parts = append(parts, fmt.Sprintf("%d optimizations applied", len(changes)))
	}
	if p.GetBool(graph.KeyFactCheckPerformed, false) {
		parts = append(parts, fmt.Sprintf("%d claims fact-checked", len(facts)))
	}
	if decision == ImageSourceRetrieved {
		parts = append(parts, "web image selected")
	}
	desc := "Post optimized"
	if len(parts) > 0 {
		desc = strings.Join(parts, ", ")
	}
	data := map[string]any{
		graph.KeyLinkedInCharCount:   p.GetInt(graph.KeyLinkedInCharCount),
		graph.KeySuggestedHashtags:   p.GetStrings(graph.KeySuggestedHashtags),
		graph.KeyImageSourceDecision: decision,
		"fact_check_count":           len(facts),
	}
	if url := p.GetString(graph.KeyImageURL); url != "" {
		data[graph.KeyImageURL] = url
	}
	return graph.Summary{Description: desc, Details: limit(changes, 5), Data: data}
}

func summarizeProofread(p graph.Patch) graph.Summary {
	corrections := p.GetStrings(graph.KeyProofreadCorrections)
	passed := p.GetBool(graph.KeyToneCheckPassed, true)
	count := p.GetInt(graph.KeyLinkedInCharCount)

	var parts []string
	if len(corrections) > 0 {
		parts = append(parts, fmt.Sprintf("%d corrections", len(corrections)))
	}
	if passed {
		parts = append(parts, "tone check passed")
	} else {
		parts = append(parts, "tone check failed")
	}
	if count > 0 {
		parts = append(parts, fmt.Sprintf("%d chars", count))
	}
	return graph.Summary{
		Description: strings.Join(parts, ", "),
		Data: map[string]any{
			graph.KeyToneCheckPassed:   passed,
			graph.KeyLinkedInCharCount: count,
		},
	}
}

func summarizeApprove(p graph.Patch) graph.Summary {
	status := p.GetString(graph.KeyApprovalStatus)
	desc := "Revision requested"
	if status == graph.DecisionApproved {
		desc = "Post approved"
	}
	return graph.Summary{
		Description: desc,
		Data: map[string]any{
			graph.KeyApprovalStatus:   status,
			graph.KeyApprovalFeedback: p.GetString(graph.KeyApprovalFeedback),
		},
	}
}
