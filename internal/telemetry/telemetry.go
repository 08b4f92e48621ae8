//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the names and span helpers shared by the tracing
// and metric packages of the post pipeline.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "trpc-post-agent"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-agent"
	InstrumentName   = "trpc.post.agent.go"

	SpanNameCallLLM     = "call_llm"
	SpanNamePrefixStage = "stage"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyThreadID  = "trpc.go.agent.thread_id"
	KeyStage     = "trpc.go.agent.stage"
	KeyStep      = "trpc.go.agent.step"
	KeyOutcome   = "trpc.go.agent.outcome"
	KeySubtask   = "trpc.go.agent.subtask"
	KeyLLMModel  = "gen_ai.request.model"
	KeyLLMStream = "trpc.go.agent.llm_stream"
)

// Metric instrument names.
const (
	MetricStageDuration   = "postagent.stage.duration"
	MetricStageCount      = "postagent.stage.count"
	MetricSubtaskFailures = "postagent.subtask.failures"
)

// Stage outcomes recorded on spans and metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeSuspended = "suspended"
	OutcomeFailed    = "failed"
)

// NewStageSpanName returns the span name of a stage run.
func NewStageSpanName(stage string) string {
	if stage == "" {
		return SpanNamePrefixStage
	}
	return SpanNamePrefixStage + " " + stage
}

// TraceStage annotates a stage span with its position in the thread.
func TraceStage(span trace.Span, threadID, stage string, step int64) {
	span.SetAttributes(
		attribute.String("gen_ai.system", "trpc.go.agent"),
		attribute.String("gen_ai.operation.name", "pipeline.stage"),
		attribute.String(KeyThreadID, threadID),
		attribute.String(KeyStage, stage),
		attribute.Int64(KeyStep, step),
	)
}

// TraceStageOutcome records how a stage run ended.
func TraceStageOutcome(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String(KeyOutcome, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceCallLLM annotates a model call span.
func TraceCallLLM(span trace.Span, modelName string, messages int, stream bool) {
	span.SetAttributes(
		attribute.String("gen_ai.system", "trpc.go.agent"),
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String(KeyLLMModel, modelName),
		attribute.Int("gen_ai.request.messages", messages),
		attribute.Bool(KeyLLMStream, stream),
	)
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
