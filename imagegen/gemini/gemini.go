//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides an image generator backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-post-agent-go/imagegen"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

var _ imagegen.Generator = (*Generator)(nil)

const (
	// DefaultModel is the default image model.
	DefaultModel = "gemini-2.5-flash-image"
	// APIKeyEnv is the environment variable read when no key is given.
	APIKeyEnv = "GEMINI_API_KEY"

	defaultMimeType = "image/png"
)

// Generator implements imagegen.Generator.
type Generator struct {
	client        *genai.Client
	model         string
	apiKey        string
	clientOptions *genai.ClientConfig
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the image model.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithAPIKey sets the Gemini API key.
// APIKey priority: WithClientOptions > WithAPIKey > GEMINI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(g *Generator) {
		g.apiKey = apiKey
	}
}

// WithClientOptions sets the Gemini client config.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(g *Generator) {
		c := *clientOptions
		g.clientOptions = &c
	}
}

// New creates a Gemini image generator.
func New(ctx context.Context, opts ...Option) (*Generator, error) {
	g := &Generator{
		model:         DefaultModel,
		apiKey:        os.Getenv(APIKeyEnv),
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.clientOptions.APIKey == "" {
		g.clientOptions.APIKey = g.apiKey
	}
	if g.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("%s is not provided", APIKeyEnv)
	}
	if g.clientOptions.Backend == genai.BackendUnspecified {
		g.clientOptions.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, g.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Generate implements imagegen.Generator. The first inline image part of the
// first candidate is returned.
func (g *Generator) Generate(ctx context.Context, prompt string) (*imagegen.Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, imagegen.ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = defaultMimeType
		}
		log.Debugf("gemini: generated %d bytes of %s with %s", len(part.InlineData.Data), mimeType, g.model)
		return &imagegen.Image{Data: part.InlineData.Data, MimeType: mimeType}, nil
	}
	return nil, imagegen.ErrNoImage
}
