//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	itelemetry "trpc.group/trpc-go/trpc-post-agent-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/trace"
)

const (
	defaultChannelBufferSize = 256
	defaultMaxSteps          = 100
)

// Executor drives threads through a compiled graph, persisting a checkpoint
// after every step.
type Executor struct {
	graph             *Graph
	saver             CheckpointSaver
	channelBufferSize int
	maxSteps          int
	stageTimeout      time.Duration
	now               func() time.Time
	metrics           *metric.Pipeline

	mu     sync.Mutex
	active map[string]struct{}
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// ChannelBufferSize is the buffer size for event channels (default: 256).
	ChannelBufferSize int
	// MaxSteps bounds the stage runs of one Execute/Resume/Replay call
	// (default: 100).
	MaxSteps int
	// StageTimeout bounds a single stage run. Zero means no limit.
	StageTimeout time.Duration
	// Clock returns the time stamped on checkpoints and interrupts.
	Clock func() time.Time
	// Metrics receives stage durations and outcomes.
	Metrics *metric.Pipeline
}

// WithChannelBufferSize sets the buffer size for event channels.
func WithChannelBufferSize(size int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.ChannelBufferSize = size
	}
}

// WithMaxSteps sets the maximum number of stage runs per call.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = maxSteps
	}
}

// WithStageTimeout sets the deadline of each stage run.
func WithStageTimeout(d time.Duration) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.StageTimeout = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Clock = now
	}
}

// WithMetrics sets the pipeline instruments.
func WithMetrics(m *metric.Pipeline) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Metrics = m
	}
}

// NewExecutor creates an executor for g backed by saver.
func NewExecutor(g *Graph, saver CheckpointSaver, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph is nil")
	}
	if saver == nil {
		return nil, errors.New("checkpoint saver is nil")
	}
	options := ExecutorOptions{
		ChannelBufferSize: defaultChannelBufferSize,
		MaxSteps:          defaultMaxSteps,
		Clock:             time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.ChannelBufferSize < 0 {
		options.ChannelBufferSize = defaultChannelBufferSize
	}
	if options.MaxSteps <= 0 {
		options.MaxSteps = defaultMaxSteps
	}
	if options.Metrics == nil {
		m, err := metric.NewPipeline(nil)
		if err != nil {
			log.Warnf("graph: pipeline metrics disabled: %v", err)
		}
		options.Metrics = m
	}
	return &Executor{
		graph:             g,
		saver:             saver,
		channelBufferSize: options.ChannelBufferSize,
		maxSteps:          options.MaxSteps,
		stageTimeout:      options.StageTimeout,
		now:               options.Clock,
		metrics:           options.Metrics,
		active:            make(map[string]struct{}),
	}, nil
}

// ExecutionContext is the position of one run within a thread.
type ExecutionContext struct {
	ThreadID string
	State    State
	Stage    string
	Step     int64
	events   chan<- *event.Event
	// deliver governs event delivery only; the run itself is detached.
	deliver context.Context
}

// Execute starts a new thread at the entry stage.
//
// It fails with ErrInvalidInput when the initial state is rejected and with
// ErrInvalidState when the thread already has checkpoints or is running.
// The run continues when ctx is cancelled; only event delivery stops.
func (e *Executor) Execute(ctx context.Context, threadID string, initial State) (<-chan *event.Event, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrThreadIDRequired)
	}
	state, err := e.graph.initialize(initial)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := e.acquire(threadID); err != nil {
		return nil, err
	}
	_, err = e.saver.Latest(ctx, threadID)
	switch {
	case err == nil:
		e.release(threadID)
		log.Infof("graph: rejected execute on existing thread %s", threadID)
		return nil, invalidState("thread %s already exists", threadID)
	case !IsNotFound(err):
		e.release(threadID)
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return e.start(ctx, &ExecutionContext{
		ThreadID: threadID,
		State:    state,
		Stage:    e.graph.EntryPoint(),
		Step:     1,
	}), nil
}

// Resume continues a suspended thread with cmd. The interrupted stage runs
// again and receives cmd from Suspend.
func (e *Executor) Resume(ctx context.Context, threadID string, cmd *Command) (<-chan *event.Event, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := e.acquire(threadID); err != nil {
		return nil, err
	}
	latest, err := e.latest(ctx, threadID)
	if err != nil {
		e.release(threadID)
		return nil, err
	}
	if !latest.Suspended() {
		e.release(threadID)
		log.Infof("graph: rejected resume on thread %s at step %d", threadID, latest.Step)
		if latest.Terminal() {
			return nil, invalidState("thread %s already completed", threadID)
		}
		return nil, invalidState("thread %s is not suspended", threadID)
	}
	state := latest.State.Clone()
	state[KeyResume] = &Command{Status: cmd.Status, Feedback: cmd.Feedback}
	return e.start(ctx, &ExecutionContext{
		ThreadID: threadID,
		State:    state,
		Stage:    latest.Interrupt.Stage,
		Step:     latest.Step + 1,
	}), nil
}

// Replay continues a thread from its latest checkpoint after a failed
// stage or a crash. Suspended threads must be resumed instead.
func (e *Executor) Replay(ctx context.Context, threadID string) (<-chan *event.Event, error) {
	if err := e.acquire(threadID); err != nil {
		return nil, err
	}
	latest, err := e.latest(ctx, threadID)
	if err != nil {
		e.release(threadID)
		return nil, err
	}
	switch {
	case latest.Suspended():
		e.release(threadID)
		return nil, invalidState("thread %s is suspended at %s", threadID, latest.Interrupt.Stage)
	case latest.Terminal():
		e.release(threadID)
		return nil, invalidState("thread %s already completed", threadID)
	}
	return e.start(ctx, &ExecutionContext{
		ThreadID: threadID,
		State:    latest.State.Clone(),
		Stage:    latest.Next,
		Step:     latest.Step + 1,
	}), nil
}

// History returns every checkpoint of a thread ordered by step.
func (e *Executor) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	cps, err := e.saver.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	return cps, nil
}

func (e *Executor) latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrThreadIDRequired)
	}
	cp, err := e.saver.Latest(ctx, threadID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

func (e *Executor) acquire(threadID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[threadID]; busy {
		return invalidState("thread %s is already running", threadID)
	}
	e.active[threadID] = struct{}{}
	return nil
}

func (e *Executor) release(threadID string) {
	e.mu.Lock()
	delete(e.active, threadID)
	e.mu.Unlock()
}

func (e *Executor) running(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[threadID]
	return ok
}

func (e *Executor) start(ctx context.Context, execCtx *ExecutionContext) <-chan *event.Event {
	eventChan := make(chan *event.Event, e.channelBufferSize)
	execCtx.events = eventChan
	execCtx.deliver = ctx
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(eventChan)
		defer e.release(execCtx.ThreadID)
		e.run(runCtx, execCtx)
	}()
	return eventChan
}

// run executes stages until the thread suspends, completes or fails.
func (e *Executor) run(ctx context.Context, execCtx *ExecutionContext) {
	for steps := 0; ; steps++ {
		if steps >= e.maxSteps {
			e.fail(execCtx, ErrorTypeStepLimit,
				fmt.Sprintf("maximum execution steps (%d) exceeded", e.maxSteps))
			return
		}
		st, ok := e.graph.Stage(execCtx.Stage)
		if !ok {
			e.fail(execCtx, ErrorTypeGraphDefinition, fmt.Sprintf("unknown stage %s", execCtx.Stage))
			return
		}

		patch, err := e.runStage(ctx, execCtx, st)
		if ie, ok := GetInterruptError(err); ok {
			if st.Interruptible() {
				e.suspend(ctx, execCtx, st, ie)
				return
			}
			err = fmt.Errorf("stage %s is not allowed to suspend", st.Name)
		}
		if err != nil {
			stageErr := &StageError{Stage: st.Name, Step: execCtx.Step, Err: err}
			log.Errorf("graph: thread %s: %v", execCtx.ThreadID, stageErr)
			e.fail(execCtx, ErrorTypeStageFailure, stageErr.Error())
			return
		}

		state := execCtx.State.Apply(patch).without(KeyResume)
		next, err := e.graph.next(ctx, st.Name, state)
		if err != nil {
			e.fail(execCtx, ErrorTypeGraphDefinition, err.Error())
			return
		}
		cp := NewCheckpoint(execCtx.ThreadID, execCtx.Step, st.Name, next, state)
		cp.CreatedAt = e.now().UTC()
		if !e.persist(ctx, execCtx, cp) {
			return
		}
		execCtx.State = state

		var summary Summary
		if st.Summarize != nil {
			summary = st.Summarize(patch)
		}
		e.emit(execCtx, event.New(execCtx.ThreadID, event.KindStageComplete, st.Name, execCtx.Step,
			event.WithDescription(summary.Description),
			event.WithDetails(summary.Details),
			event.WithData(summary.Data),
		))

		if next == End {
			log.Infof("graph: thread %s completed at step %d", execCtx.ThreadID, execCtx.Step)
			e.emit(execCtx, event.New(execCtx.ThreadID, event.KindCompleted, st.Name, execCtx.Step,
				event.WithDescription("Pipeline completed"),
				event.WithData(e.graph.completionData(state)),
			))
			return
		}
		execCtx.Stage = next
		execCtx.Step++
	}
}

func (e *Executor) suspend(ctx context.Context, execCtx *ExecutionContext, st *Stage, ie *InterruptError) {
	now := e.now().UTC()
	cp := NewCheckpoint(execCtx.ThreadID, execCtx.Step, st.Name, st.Name, execCtx.State.without(KeyResume))
	cp.CreatedAt = now
	cp.Interrupt = &Interrupt{Stage: st.Name, Payload: ie.Payload, Timestamp: now}
	if !e.persist(ctx, execCtx, cp) {
		return
	}
	log.Infof("graph: thread %s suspended at %s (step %d)", execCtx.ThreadID, st.Name, execCtx.Step)
	e.emit(execCtx, event.NewSuspended(execCtx.ThreadID, st.Name, execCtx.Step, ie.Payload))
}

// runStage runs one stage inside a span, converting a panic into an error.
func (e *Executor) runStage(ctx context.Context, execCtx *ExecutionContext, st *Stage) (patch Patch, err error) {
	ctx, span := trace.StartSpan(ctx, itelemetry.NewStageSpanName(st.Name))
	defer span.End()
	itelemetry.TraceStage(span, execCtx.ThreadID, st.Name, execCtx.Step)

	if e.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stageTimeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("graph: stage %s panicked: %v\n%s", st.Name, r, debug.Stack())
			patch, err = nil, fmt.Errorf("stage panicked: %v", r)
		}
		outcome := itelemetry.OutcomeCompleted
		spanErr := err
		switch {
		case IsInterruptError(err):
			outcome, spanErr = itelemetry.OutcomeSuspended, nil
		case err != nil:
			outcome = itelemetry.OutcomeFailed
		}
		itelemetry.TraceStageOutcome(span, outcome, spanErr)
		e.metrics.RecordStage(ctx, st.Name, outcome, time.Since(start))
	}()
	return st.Function(ctx, execCtx.State.Clone())
}

func (e *Executor) persist(ctx context.Context, execCtx *ExecutionContext, cp *Checkpoint) bool {
	err := e.saver.Put(ctx, cp)
	if err == nil {
		return true
	}
	log.Errorf("graph: thread %s: persist step %d: %v", execCtx.ThreadID, cp.Step, err)
	if errors.Is(err, ErrCheckpointConflict) {
		e.fail(execCtx, ErrorTypeInvalidState,
			fmt.Sprintf("thread %s was advanced concurrently: %v", execCtx.ThreadID, err))
		return false
	}
	e.fail(execCtx, ErrorTypeCheckpoint, err.Error())
	return false
}

func (e *Executor) fail(execCtx *ExecutionContext, errType, message string) {
	e.emit(execCtx, event.NewFailed(execCtx.ThreadID, execCtx.Stage, execCtx.Step, errType, message))
}

// emit delivers ev unless the consumer is gone, in which case it is dropped.
func (e *Executor) emit(execCtx *ExecutionContext, ev *event.Event) {
	select {
	case <-execCtx.deliver.Done():
		return
	default:
	}
	select {
	case execCtx.events <- ev:
	case <-execCtx.deliver.Done():
	}
}
