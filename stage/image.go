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

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

var imagePromptGeneration = model.Config(200, 0.5)

// GenerateImage picks the image for the post. An uploaded image wins;
// otherwise the model writes an image prompt and the generator renders it.
// A failed generation is recorded in the status, not returned as an error.
func (s *Stages) GenerateImage(ctx context.Context, state graph.State) (graph.Patch, error) {
	if uploaded := state.GetStrings(graph.KeyUploadedImages); len(uploaded) > 0 {
		return imagePatch("", uploaded[0], ImageStatusUploaded), nil
	}
	if s.generator == nil {
		return imagePatch("", "", ImageStatusSkippedNoKey), nil
	}
	prompt := fill(imagePrompt,
		"post_content", state.GetString(graph.KeyDraftContent),
		"post_format", state.GetString(graph.KeyPostFormat),
		"content_pillar", state.GetString(graph.KeyContentPillar),
	)
	result, err := model.Prompt(ctx, s.model, prompt, imagePromptGeneration)
	if err != nil {
		return nil, fmt.Errorf("image prompt: %w", err)
	}
	imgPrompt := strings.TrimSpace(result)
	ref, err := s.renderImage(ctx, imgPrompt)
	if err != nil {
		log.Warnf("stage: image generation failed: %v", err)
		return imagePatch(imgPrompt, "", imageStatusFailedPrefix+err.Error()), nil
	}
	return imagePatch(imgPrompt, ref, ImageStatusSuccess), nil
}

func (s *Stages) renderImage(ctx context.Context, prompt string) (string, error) {
	img, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	ref, err := s.artifacts.Save(ctx, &artifact.Artifact{Data: img.Data, MimeType: img.MimeType})
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}

func imagePatch(prompt, url, status string) graph.Patch {
	return graph.Patch{
		graph.KeyImagePrompt:           prompt,
		graph.KeyImageURL:              url,
		graph.KeyImageGenerationStatus: status,
		graph.KeyCurrentStage:          GenerateImage,
	}
}
