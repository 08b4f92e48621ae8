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
	"errors"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-post-agent-go/imagegen"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
	"trpc.group/trpc-go/trpc-post-agent-go/search"
)

// scriptedModel answers by the kind of prompt it receives.
type scriptedModel struct {
	mu      sync.Mutex
	prompts map[string][]string
	replies map[string]string
	errs    map[string]error
}

const (
	kindResearch  = "research"
	kindDraft     = "draft"
	kindImage     = "image"
	kindClaims    = "claims"
	kindOptimize  = "optimize"
	kindProofread = "proofread"
)

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		prompts: map[string][]string{},
		replies: map[string]string{
			kindResearch:  "## Trending Angles\n1. Evals are the new unit tests\n2. Cost of agents\n\n## Hook Ideas\n- Most agents fail quietly\n## Key Talking Points\n- x",
			kindDraft:     "Most agent failures are silent.\nHere is why.\n\nBody text.\nWhat do you measure?",
			kindImage:     "  abstract blue network  ",
			kindClaims:    "70% of agents fail in production\n\nGPT-4 launched in 2023\n",
			kindOptimize:  "## Optimized Post\n**Most** agent failures are silent.\n\nWhat do you measure?\n## Changes Made\n1. Sharper hook\n2. Shorter paragraphs\n## Suggested Hashtags\n- #AI\n- #AgentOps\n",
			kindProofread: "## Proofread Post\nMost agent failures are silent.\n\nWhat do you measure?\n## Corrections Made\n1. Fixed comma\n## Tone Check\nPASS - executive tone",
		},
		errs: map[string]error{},
	}
}

func promptKind(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "You are a content strategist"):
		return kindResearch
	case strings.HasPrefix(prompt, "Write a short prompt for an image model"):
		return kindImage
	case strings.HasPrefix(prompt, "List the 2-4 most important factual claims"):
		return kindClaims
	case strings.HasPrefix(prompt, "You optimize LinkedIn posts"):
		return kindOptimize
	case strings.HasPrefix(prompt, "You proofread"):
		return kindProofread
	default:
		return kindDraft
	}
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	prompt := req.Messages[0].Content
	kind := promptKind(prompt)
	m.mu.Lock()
	m.prompts[kind] = append(m.prompts[kind], prompt)
	reply, err := m.replies[kind], m.errs[kind]
	m.mu.Unlock()
	ch := make(chan *model.Response, 1)
	if err != nil {
		ch <- &model.Response{Error: &model.ResponseError{Type: model.ErrorTypeAPIError, Message: err.Error()}, Done: true}
	} else {
		ch <- &model.Response{Done: true, Choices: []model.Choice{{Message: model.NewAssistantMessage(reply)}}}
	}
	close(ch)
	return ch, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

func (m *scriptedModel) set(kind, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[kind] = reply
}

func (m *scriptedModel) fail(kind string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind] = err
}

func (m *scriptedModel) last(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prompts[kind]
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (m *scriptedModel) calls(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts[kind])
}

type fakeSearcher struct {
	mu       sync.Mutex
	requests []*search.Request
	images   []search.Image
	failOn   func(req *search.Request) bool
}

func (s *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.failOn != nil && s.failOn(req) {
		return nil, errors.New("search unavailable")
	}
	if req.IncludeImages {
		return &search.Response{Images: s.images}, nil
	}
	return &search.Response{
		Answer: "answer for " + req.Query,
		Results: []search.Result{
			{Title: "Report", URL: "https://example.com/report", Content: strings.Repeat("s", 400)},
		},
	}, nil
}

type fakeGenerator struct {
	img *imagegen.Image
	err error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (*imagegen.Image, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.img, nil
}
