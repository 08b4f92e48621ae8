//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package stage implements the post pipeline stages and assembles them into
// the production graph.
package stage

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-post-agent-go/imagegen"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
	"trpc.group/trpc-go/trpc-post-agent-go/search"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/metric"
)

// Stage names. They double as current_stage values except for approve,
// which reports "approved" or "revision".
const (
	Research      = "research"
	Draft         = "draft"
	GenerateImage = "generate_image"
	Optimize      = "optimize"
	Proofread     = "proofread"
	Approve       = "approve"
)

// Post formats understood by the draft stage.
const (
	FormatFramework      = "framework"
	FormatStrongPOV      = "strong_pov"
	FormatSimplification = "simplification"
	FormatStory          = "story"
	FormatLeaderLens     = "leader_lens"
)

// Image generation status values.
const (
	ImageStatusUploaded     = "uploaded"
	ImageStatusSkippedNoKey = "skipped_no_key"
	ImageStatusSuccess      = "success"
	ImageStatusRetrieved    = "retrieved"
	imageStatusFailedPrefix = "failed: "
)

// Image source decisions made by the optimize stage.
const (
	ImageSourceGenerated = "generated"
	ImageSourceUploaded  = "uploaded"
	ImageSourceRetrieved = "retrieved"
)

// Subtask names used for metrics and logs.
const (
	subtaskFactCheck     = "fact_check"
	subtaskImageSearch   = "image_search"
	subtaskImageDownload = "image_download"
)

const (
	defaultParallelism     = 8
	defaultDownloadTimeout = 15 * time.Second
	defaultMaxImageBytes   = 10 << 20
)

// Stages holds the collaborators shared by every stage function.
type Stages struct {
	model           model.Model
	generator       imagegen.Generator
	searcher        search.Searcher
	artifacts       artifact.Service
	metrics         *metric.Pipeline
	httpClient      *http.Client
	pool            *ants.Pool
	downloadTimeout time.Duration
	maxImageBytes   int64
}

type options struct {
	generator       imagegen.Generator
	searcher        search.Searcher
	artifacts       artifact.Service
	metrics         *metric.Pipeline
	httpClient      *http.Client
	parallelism     int
	downloadTimeout time.Duration
	maxImageBytes   int64
}

// Option configures Stages.
type Option func(*options)

// WithImageGenerator enables image generation. Without it the image stage
// reports skipped_no_key.
func WithImageGenerator(g imagegen.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithSearcher enables fact-checking and web image retrieval in the
// optimize stage.
func WithSearcher(s search.Searcher) Option {
	return func(o *options) {
		o.searcher = s
	}
}

// WithArtifactStore sets where generated and downloaded images are stored.
// An in-memory store is used by default.
func WithArtifactStore(svc artifact.Service) Option {
	return func(o *options) {
		o.artifacts = svc
	}
}

// WithMetrics records absorbed subtask failures on m.
func WithMetrics(m *metric.Pipeline) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHTTPClient sets the client used to download web images.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithParallelism bounds the number of concurrent subtasks of the optimize
// stage across all threads.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithDownloadTimeout bounds a single image download.
func WithDownloadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.downloadTimeout = d
		}
	}
}

// New creates the stage set around the text model m.
func New(m model.Model, opts ...Option) (*Stages, error) {
	if m == nil {
		return nil, errors.New("stage: model is nil")
	}
	o := &options{
		parallelism:     defaultParallelism,
		downloadTimeout: defaultDownloadTimeout,
		maxImageBytes:   defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.artifacts == nil {
		o.artifacts = inmemory.NewService()
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	pool, err := ants.NewPool(o.parallelism)
	if err != nil {
		return nil, fmt.Errorf("stage: create worker pool: %w", err)
	}
	return &Stages{
		model:           m,
		generator:       o.generator,
		searcher:        o.searcher,
		artifacts:       o.artifacts,
		metrics:         o.metrics,
		httpClient:      o.httpClient,
		pool:            pool,
		downloadTimeout: o.downloadTimeout,
		maxImageBytes:   o.maxImageBytes,
	}, nil
}

// Close releases the worker pool.
func (s *Stages) Close() {
	s.pool.Release()
}

// Artifacts returns the store images are written to.
func (s *Stages) Artifacts() artifact.Service {
	return s.artifacts
}
