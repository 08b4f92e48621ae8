//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package search defines the web search collaborator used to fact-check
// claims and to find candidate images for a post.
package search

import "context"

// Search depths.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Request is one web search.
type Request struct {
	Query         string
	Depth         string
	MaxResults    int
	IncludeAnswer bool
	IncludeImages bool
}

// Result is one page hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Image is an image hit.
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Response is the outcome of a search.
type Response struct {
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
	Images  []Image  `json:"images,omitempty"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}
