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
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/linkedin"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

// Optimize rewrites the draft for LinkedIn. With a searcher configured it
// first fact-checks the draft and looks for web images the model may pick
// instead of the current one.
func (s *Stages) Optimize(ctx context.Context, state graph.State) (graph.Patch, error) {
	draft := state.GetString(graph.KeyDraftContent)
	format := state.GetString(graph.KeyPostFormat)
	pillar := state.GetString(graph.KeyContentPillar)

	var web webResearch
	if s.searcher != nil {
		web = s.webResearch(ctx, draft, pillar)
	}

	currentURL := state.GetString(graph.KeyImageURL)
	currentStatus := state.GetString(graph.KeyImageGenerationStatus)
	currentInfo := ""
	if currentURL != "" {
		status := currentStatus
		if status == "" {
			status = ImageSourceGenerated
		}
		currentInfo = fmt.Sprintf("AI-generated image (%s)", status)
	}
	var facts []FactCheck
	if web.performed {
		facts = web.facts
	}
	prompt := buildOptimizePrompt(draft, format, pillar, facts, currentInfo, web.downloaded)
	if text := state.GetString(graph.KeyUploadedFileText); text != "" {
		prompt += "\n\nOriginal source material (verify facts against this):\n" + truncate(text, optimizeSourceLimit)
	}
	result, err := model.Prompt(ctx, s.model, prompt, defaultGeneration)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	optimized, _ := section(result, "Optimized Post",
		"## Changes Made", "## Suggested Hashtags", "## Sources", "## Image Decision")
	var changes, tags []string
	if body, ok := section(result, "Changes Made", "## Suggested Hashtags", "## Sources", "## Image Decision"); ok {
		changes = listItems(body)
	}
	if body, ok := section(result, "Suggested Hashtags", "## Sources", "## Image Decision"); ok {
		tags = hashtags(body)
	}
	if _, ok := section(result, "Sources", "## Image Decision"); ok {
		for i := range web.facts {
			web.facts[i].SourcesInPost = true
		}
	}
	choice, reasoning := imageDecision(result)

	final := draft
	if optimized != "" {
		final = linkedin.StripMarkdown(optimized)
	}
	v := linkedin.Validate(final)

	decision := ImageSourceGenerated
	if currentURL == "" && currentStatus == ImageStatusSkippedNoKey &&
		len(state.GetStrings(graph.KeyUploadedImages)) > 0 {
		decision = ImageSourceUploaded
	}
	patch := graph.Patch{
		graph.KeyOptimizedContent:       final,
		graph.KeyOptimizationChanges:    nonNil(changes),
		graph.KeySuggestedHashtags:      nonNil(tags),
		graph.KeyLinkedInCharCount:      v.CharCount,
		graph.KeyLinkedInWarnings:       v.Warnings,
		graph.KeyCurrentStage:           Optimize,
		graph.KeyFactCheckResults:       nonNil(web.facts),
		graph.KeyFactCheckPerformed:     web.performed,
		graph.KeyRetrievedImages:        nonNil(web.candidates),
		graph.KeyImageDecisionReasoning: reasoning,
		graph.KeyOriginalImageURL:       currentURL,
	}
	if img, ok := pickRetrieved(choice, web.downloaded); ok {
		decision = ImageSourceRetrieved
		patch[graph.KeyImageURL] = img.Ref
		patch[graph.KeyImageGenerationStatus] = ImageStatusRetrieved
	}
	patch[graph.KeyImageSourceDecision] = decision
	return patch, nil
}

// pickRetrieved resolves a "retrieved_N" choice against the downloaded
// candidates, numbered from 1 in the order they were offered.
func pickRetrieved(choice string, downloaded []downloadedImage) (downloadedImage, bool) {
	n, ok := strings.CutPrefix(choice, "retrieved_")
	if !ok {
		return downloadedImage{}, false
	}
	idx, err := strconv.Atoi(n)
	if err != nil || idx < 1 || idx > len(downloaded) {
		log.Warnf("stage: ignoring invalid image choice %q", choice)
		return downloadedImage{}, false
	}
	return downloaded[idx-1], true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
