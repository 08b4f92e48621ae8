//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
// Package runner connects the pipeline executor to the surrounding
// application: it builds the initial record of a thread, hands drafts and
// approved posts to a Recorder and turns stored image references into URLs.
package runner

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/stage"
	"trpc.group/trpc-go/trpc-post-agent-go/telemetry/trace"
)

// Fields holding image references that leave the process as URLs.
var urlKeys = []string{graph.KeyImageURL, graph.KeyOriginalImageURL}

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	recorder        Recorder
	artifactService artifact.Service
}

// WithRecorder sets where drafts and completions are recorded.
func WithRecorder(r Recorder) Option {
	return func(opts *Options) {
		opts.recorder = r
	}
}

// WithArtifactService sets the store used to resolve image references.
func WithArtifactService(service artifact.Service) Option {
	return func(opts *Options) {
		opts.artifactService = service
	}
}

// RunRequest starts a new thread.
type RunRequest struct {
	// ThreadID is generated when empty.
	ThreadID         string   `json:"thread_id,omitempty"`
	PostID           string   `json:"post_id"`
	UserInput        string   `json:"user_input"`
	ContentPillar    string   `json:"content_pillar"`
	PostFormat       string   `json:"post_format"`
	UploadedFileText string   `json:"uploaded_file_text"`
	UploadedImages   []string `json:"uploaded_images"`
}

func (r *RunRequest) state() graph.State {
	images := r.UploadedImages
	if images == nil {
		images = []string{}
	}
	return graph.State{
		graph.KeyPostID:           r.PostID,
		graph.KeyUserInput:        r.UserInput,
		graph.KeyContentPillar:    r.ContentPillar,
		graph.KeyPostFormat:       r.PostFormat,
		graph.KeyUploadedFileText: r.UploadedFileText,
		graph.KeyUploadedImages:   images,
	}
}

// Runner is the interface for running the post pipeline.
type Runner interface {
	// Run starts a new thread and returns its id with the event stream.
	Run(ctx context.Context, req *RunRequest) (string, <-chan *event.Event, error)
	// Resume continues a suspended thread with the reviewer's decision.
	Resume(ctx context.Context, threadID string, cmd *graph.Command) (<-chan *event.Event, error)
	// Replay continues a thread that stopped between stages.
	Replay(ctx context.Context, threadID string) (<-chan *event.Event, error)
	// Status reports where a thread is.
	Status(ctx context.Context, threadID string) (*graph.Status, error)
}

type runner struct {
	executor        *graph.Executor
	recorder        Recorder
	artifactService artifact.Service
}

// NewRunner creates a new Runner.
func NewRunner(executor *graph.Executor, opts ...Option) Runner {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return &runner{
		executor:        executor,
		recorder:        options.recorder,
		artifactService: options.artifactService,
	}
}

// Run implements Runner.
func (r *runner) Run(ctx context.Context, req *RunRequest) (string, <-chan *event.Event, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}
	ctx, span := trace.Tracer.Start(ctx, "run")
	defer span.End()
	span.SetAttributes(attribute.String("thread_id", threadID), attribute.String("post_id", req.PostID))

	ch, err := r.executor.Execute(context.WithoutCancel(ctx), threadID, req.state())
	if err != nil {
		return "", nil, err
	}
	return threadID, r.forward(ctx, threadID, req.PostID, ch), nil
}

// Resume implements Runner.
func (r *runner) Resume(ctx context.Context, threadID string, cmd *graph.Command) (<-chan *event.Event, error) {
	postID := r.postID(ctx, threadID)
	ch, err := r.executor.Resume(context.WithoutCancel(ctx), threadID, cmd)
	if err != nil {
		return nil, err
	}
	return r.forward(ctx, threadID, postID, ch), nil
}

// Replay implements Runner.
func (r *runner) Replay(ctx context.Context, threadID string) (<-chan *event.Event, error) {
	postID := r.postID(ctx, threadID)
	ch, err := r.executor.Replay(context.WithoutCancel(ctx), threadID)
	if err != nil {
		return nil, err
	}
	return r.forward(ctx, threadID, postID, ch), nil
}

// Status implements Runner.
func (r *runner) Status(ctx context.Context, threadID string) (*graph.Status, error) {
	return r.executor.Status(ctx, threadID)
}

func (r *runner) postID(ctx context.Context, threadID string) string {
	st, err := r.executor.Status(ctx, threadID)
	if err != nil || st.Values == nil {
		return ""
	}
	return graph.State(st.Values).GetString(graph.KeyPostID)
}

// forward drains the executor stream so every draft and completion is
// recorded, and passes rewritten events on while ctx is alive.
func (r *runner) forward(ctx context.Context, threadID, postID string, in <-chan *event.Event) <-chan *event.Event {
	out := make(chan *event.Event)
	go func() {
		defer close(out)
		recordCtx := context.WithoutCancel(ctx)
		delivering := true
		for ev := range in {
			r.record(recordCtx, threadID, postID, ev)
			if !delivering {
				continue
			}
			select {
			case out <- r.resolve(ev):
			case <-ctx.Done():
				log.Infof("runner: consumer of thread %s went away, run continues", threadID)
				delivering = false
			}
		}
	}()
	return out
}

func (r *runner) record(ctx context.Context, threadID, postID string, ev *event.Event) {
	if r.recorder == nil {
		return
	}
	data := graph.State(ev.Data)
	switch {
	case ev.Kind == event.KindStageComplete && ev.Stage == stage.Draft:
		err := r.recorder.RecordDraft(ctx, &DraftVersion{
			PostID:        postID,
			ThreadID:      threadID,
			Content:       data.GetString(graph.KeyDraftContent),
			Hook:          data.GetString(graph.KeyDraftHook),
			CTA:           data.GetString(graph.KeyDraftCTA),
			RevisionCount: data.GetInt(graph.KeyRevisionCount),
			CreatedAt:     ev.Timestamp,
		})
		if err != nil {
			log.Warnf("runner: record draft of thread %s: %v", threadID, err)
		}
	case ev.Kind == event.KindCompleted:
		if id := data.GetString(graph.KeyPostID); id != "" {
			postID = id
		}
		err := r.recorder.RecordCompletion(ctx, &Completion{
			PostID:        postID,
			ThreadID:      threadID,
			FinalContent:  data.GetString("final_content"),
			RevisionCount: data.GetInt(graph.KeyRevisionCount),
			CompletedAt:   ev.Timestamp,
		})
		if err != nil {
			log.Warnf("runner: record completion of thread %s: %v", threadID, err)
		}
	}
}

// resolve returns ev with image references replaced by URLs.
func (r *runner) resolve(ev *event.Event) *event.Event {
	if r.artifactService == nil {
		return ev
	}
	out := ev.Clone()
	for _, m := range []map[string]any{out.Data, out.Payload} {
		for _, key := range urlKeys {
			if s, ok := m[key].(string); ok {
				m[key] = artifact.ResolveURL(r.artifactService, s)
			}
		}
	}
	return out
}
