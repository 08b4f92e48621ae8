//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/artifact/cos"
	artifactinmemory "trpc.group/trpc-go/trpc-post-agent-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-post-agent-go/artifact/local"
	"trpc.group/trpc-go/trpc-post-agent-go/config"
	"trpc.group/trpc-go/trpc-post-agent-go/document"
	"trpc.group/trpc-go/trpc-post-agent-go/document/docx"
	"trpc.group/trpc-go/trpc-post-agent-go/document/pdf"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	checkpointinmemory "trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/postgres"
	"trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/redis"
	"trpc.group/trpc-go/trpc-post-agent-go/graph/checkpoint/sqlite"
	"trpc.group/trpc-go/trpc-post-agent-go/imagegen/gemini"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/model/openai"
	"trpc.group/trpc-go/trpc-post-agent-go/runner"
	"trpc.group/trpc-go/trpc-post-agent-go/search/tavily"
	"trpc.group/trpc-go/trpc-post-agent-go/stage"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/trace"
)

// app holds everything a command needs to drive the pipeline.
type app struct {
	runner    runner.Runner
	recorder  *runner.MemoryRecorder
	artifacts artifact.Service
	documents *document.Registry

	closers []func() error
}

// newApp wires the configured stores and clients into a runner.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Telemetry.Enabled {
		if err := a.startTelemetry(ctx, cfg.Telemetry); err != nil {
			return nil, err
		}
	}
	pipelineMetrics, err := metric.NewPipeline(nil)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	saver, err := newSaver(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, saver.Close)

	if a.artifacts, err = newArtifactService(cfg.Storage); err != nil {
		return nil, err
	}
	a.documents = newDocumentRegistry()

	stageOpts := []stage.Option{
		stage.WithArtifactStore(a.artifacts),
		stage.WithMetrics(pipelineMetrics),
		stage.WithParallelism(cfg.Pipeline.Parallelism),
		stage.WithDownloadTimeout(cfg.Pipeline.DownloadTimeout.Duration()),
	}
	if cfg.Image.APIKey != "" {
		gen, err := gemini.New(ctx, gemini.WithAPIKey(cfg.Image.APIKey), gemini.WithModel(cfg.Image.Model))
		if err != nil {
			return nil, fmt.Errorf("create image generator: %w", err)
		}
		stageOpts = append(stageOpts, stage.WithImageGenerator(gen))
	} else {
		log.Infof("no image API key configured, image generation is skipped")
	}
	if cfg.Search.APIKey != "" {
		var searchOpts []tavily.Option
		if cfg.Search.BaseURL != "" {
			searchOpts = append(searchOpts, tavily.WithBaseURL(cfg.Search.BaseURL))
		}
		searcher, err := tavily.New(cfg.Search.APIKey, searchOpts...)
		if err != nil {
			return nil, fmt.Errorf("create search client: %w", err)
		}
		stageOpts = append(stageOpts, stage.WithSearcher(searcher))
	} else {
		log.Infof("no search API key configured, fact-checking is skipped")
	}

	llm := openai.New(cfg.LLM.Model,
		openai.WithAPIKey(cfg.LLM.APIKey),
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithHTTPClientOptions(openai.WithHTTPClientTimeout(cfg.LLM.Timeout.Duration())),
	)
	stages, err := stage.New(llm, stageOpts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		stages.Close()
		return nil
	})
	g, err := stage.NewGraph(stages)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	executor, err := graph.NewExecutor(g, saver,
		graph.WithMaxSteps(cfg.Pipeline.MaxSteps),
		graph.WithStageTimeout(cfg.Pipeline.StageTimeout.Duration()),
		graph.WithMetrics(pipelineMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	a.recorder = runner.NewMemoryRecorder()
	a.runner = runner.NewRunner(executor,
		runner.WithRecorder(a.recorder),
		runner.WithArtifactService(a.artifacts),
	)
	return a, nil
}

func (a *app) startTelemetry(ctx context.Context, cfg config.TelemetryConfig) error {
	traceOpts := []trace.Option{
		trace.WithProtocol(cfg.Protocol),
		trace.WithServiceName(cfg.ServiceName),
	}
	if cfg.TracesEndpoint != "" {
		traceOpts = append(traceOpts, trace.WithEndpoint(cfg.TracesEndpoint))
	}
	cleanTrace, err := trace.Start(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	a.closers = append(a.closers, cleanTrace)

	metricOpts := []metric.Option{
		metric.WithProtocol(cfg.Protocol),
		metric.WithServiceName(cfg.ServiceName),
	}
	if cfg.MetricsEndpoint != "" {
		metricOpts = append(metricOpts, metric.WithEndpoint(cfg.MetricsEndpoint))
	}
	cleanMetric, err := metric.Start(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	a.closers = append(a.closers, cleanMetric)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newSaver(ctx context.Context, cfg config.CheckpointConfig) (graph.CheckpointSaver, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warnf("checkpoints are kept in memory and lost on exit")
		return checkpointinmemory.NewSaver(), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	case config.DriverRedis:
		return redis.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

func newArtifactService(cfg config.StorageConfig) (artifact.Service, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return artifactinmemory.NewService(), nil
	case config.StorageLocal:
		return local.NewService(cfg.UploadDir)
	case config.StorageCOS:
		opts := []cos.Option{
			cos.WithSecretID(cfg.COS.SecretID),
			cos.WithSecretKey(cfg.COS.SecretKey),
			cos.WithPrefix(cfg.COS.Prefix),
		}
		if cfg.COS.PublicURL != "" {
			opts = append(opts, cos.WithPublicURL(cfg.COS.PublicURL))
		}
		return cos.NewService(cfg.COS.BucketURL, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newDocumentRegistry() *document.Registry {
	reg := document.NewRegistry()
	pdf.Register(reg)
	docx.Register(reg)
	return reg
}
