//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// stubSpan records attributes and status on top of a noop span.
type stubSpan struct {
	trace.Span
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	errs   int
}

func (s *stubSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *stubSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *stubSpan) RecordError(error, ...trace.EventOption) { s.errs++ }

func newStubSpan() *stubSpan {
	_, base := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "test")
	return &stubSpan{Span: base, attrs: map[attribute.Key]attribute.Value{}}
}

func TestNewStageSpanName(t *testing.T) {
	assert.Equal(t, "stage draft", NewStageSpanName("draft"))
	assert.Equal(t, "stage", NewStageSpanName(""))
}

func TestTraceStage(t *testing.T) {
	span := newStubSpan()
	TraceStage(span, "t-1", "optimize", 4)
	assert.Equal(t, "t-1", span.attrs[attribute.Key(KeyThreadID)].AsString())
	assert.Equal(t, "optimize", span.attrs[attribute.Key(KeyStage)].AsString())
	assert.Equal(t, int64(4), span.attrs[attribute.Key(KeyStep)].AsInt64())
}

func TestTraceStageOutcome(t *testing.T) {
	span := newStubSpan()
	TraceStageOutcome(span, OutcomeCompleted, nil)
	assert.Equal(t, OutcomeCompleted, span.attrs[attribute.Key(KeyOutcome)].AsString())
	assert.Equal(t, codes.Unset, span.status)

	TraceStageOutcome(span, OutcomeFailed, errors.New("boom"))
	assert.Equal(t, codes.Error, span.status)
	assert.Equal(t, 1, span.errs)
}

func TestTraceCallLLM(t *testing.T) {
	span := newStubSpan()
	TraceCallLLM(span, "gpt-4o", 2, true)
	assert.Equal(t, "gpt-4o", span.attrs[attribute.Key(KeyLLMModel)].AsString())
	assert.True(t, span.attrs[attribute.Key(KeyLLMStream)].AsBool())
}

// gRPC dials lazily, so even unreachable targets produce a connection.
func TestNewGRPCConn(t *testing.T) {
	conn, err := NewGRPCConn("localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, conn)
	_ = conn.Close()
}
