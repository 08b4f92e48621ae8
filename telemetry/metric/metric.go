//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric installs the OpenTelemetry meter and defines the pipeline
// instruments.
package metric

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	itelemetry "trpc.group/trpc-go/trpc-post-agent-go/internal/telemetry"
)

var (
	// Meter is the global OpenTelemetry meter for the post pipeline.
	Meter metric.Meter = noopm.Meter{}
)

// Start installs an OTLP meter provider and replaces Meter. The exporter
// speaks gRPC unless WithProtocol selects "http".
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT are
// honoured when no endpoint option is given.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
		interval:         time.Minute,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.metricsEndpoint == "" {
		options.metricsEndpoint = metricsEndpoint(options.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	closeConn := func() error { return nil }
	switch options.protocol {
	case itelemetry.ProtocolHTTP:
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(options.metricsEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
		}
	default:
		metricsConn, err := itelemetry.NewGRPCConn(options.metricsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics connection: %w", err)
		}
		exporter, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(metricsConn))
		if err != nil {
			_ = metricsConn.Close()
			return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		closeConn = metricsConn.Close
	}

	shutdownMeterProvider := initMeterProvider(res, exporter, options.interval)
	Meter = otel.Meter(itelemetry.InstrumentName)
	return func() error {
		defer closeConn()
		if err := shutdownMeterProvider(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MeterProvider: %w", err)
		}
		return nil
	}, nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

func initMeterProvider(
	res *resource.Resource,
	exporter sdkmetric.Exporter,
	interval time.Duration,
) func(context.Context) error {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown
}

// Option is a function that configures meter options.
type Option func(*options)

// options holds the configuration options for meter.
type options struct {
	metricsEndpoint  string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	protocol         string
	interval         time.Duration
}

// WithEndpoint sets the collector host:port. It takes precedence over the
// OTEL_EXPORTER_OTLP_* environment variables.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol selects the export protocol, "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithServiceName overrides the service name reported on the resource.
func WithServiceName(name string) Option {
	return func(opts *options) {
		opts.serviceName = name
	}
}

// WithInterval sets the export interval of the periodic reader.
func WithInterval(d time.Duration) Option {
	return func(opts *options) {
		if d > 0 {
			opts.interval = d
		}
	}
}

// Pipeline holds the instruments recorded by the executor and the stages.
type Pipeline struct {
	stageDuration   metric.Float64Histogram
	stageCount      metric.Int64Counter
	subtaskFailures metric.Int64Counter
}

// NewPipeline creates the pipeline instruments on m. A nil m uses the
// current global Meter.
func NewPipeline(m metric.Meter) (*Pipeline, error) {
	if m == nil {
		m = Meter
	}
	duration, err := m.Float64Histogram(itelemetry.MetricStageDuration,
		metric.WithDescription("Duration of one stage run."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", itelemetry.MetricStageDuration, err)
	}
	count, err := m.Int64Counter(itelemetry.MetricStageCount,
		metric.WithDescription("Stage runs by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", itelemetry.MetricStageCount, err)
	}
	failures, err := m.Int64Counter(itelemetry.MetricSubtaskFailures,
		metric.WithDescription("Absorbed failures of optional stage subtasks."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", itelemetry.MetricSubtaskFailures, err)
	}
	return &Pipeline{stageDuration: duration, stageCount: count, subtaskFailures: failures}, nil
}

// RecordStage records one stage run.
func (p *Pipeline) RecordStage(ctx context.Context, stage, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(itelemetry.KeyStage, stage),
		attribute.String(itelemetry.KeyOutcome, outcome),
	)
	p.stageDuration.Record(ctx, d.Seconds(), attrs)
	p.stageCount.Add(ctx, 1, attrs)
}

// RecordSubtaskFailure counts one absorbed subtask failure.
func (p *Pipeline) RecordSubtaskFailure(ctx context.Context, subtask string) {
	if p == nil {
		return
	}
	p.subtaskFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(itelemetry.KeySubtask, subtask)))
}
