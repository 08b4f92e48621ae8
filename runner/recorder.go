//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
package runner

import (
	"context"
	"sync"
	"time"
)

// DraftVersion is one draft produced for a post.
type DraftVersion struct {
	PostID        string    `json:"post_id"`
	ThreadID      string    `json:"thread_id"`
	Version       int       `json:"version"`
	Content       string    `json:"content"`
	Hook          string    `json:"hook"`
	CTA           string    `json:"cta"`
	RevisionCount int       `json:"revision_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Completion is the approved result of a thread.
type Completion struct {
	PostID        string    `json:"post_id"`
	ThreadID      string    `json:"thread_id"`
	FinalContent  string    `json:"final_content"`
	RevisionCount int       `json:"revision_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Recorder receives the durable results of a run. Implementations assign
// draft version numbers.
type Recorder interface {
	RecordDraft(ctx context.Context, d *DraftVersion) error
	RecordCompletion(ctx context.Context, c *Completion) error
}

// MemoryRecorder keeps drafts and completions in memory. Versions are
// numbered per post starting at 1.
type MemoryRecorder struct {
	mu          sync.RWMutex
	drafts      map[string][]*DraftVersion
	completions map[string]*Completion
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		drafts:      make(map[string][]*DraftVersion),
		completions: make(map[string]*Completion),
	}
}

// RecordDraft implements Recorder.
func (r *MemoryRecorder) RecordDraft(_ context.Context, d *DraftVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	cp.Version = len(r.drafts[d.PostID]) + 1
	d.Version = cp.Version
	r.drafts[d.PostID] = append(r.drafts[d.PostID], &cp)
	return nil
}

// RecordCompletion implements Recorder.
func (r *MemoryRecorder) RecordCompletion(_ context.Context, c *Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.completions[c.PostID] = &cp
	return nil
}

// Drafts returns the drafts of a post, oldest first.
func (r *MemoryRecorder) Drafts(postID string) []DraftVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DraftVersion, 0, len(r.drafts[postID]))
	for _, d := range r.drafts[postID] {
		out = append(out, *d)
	}
	return out
}

// Completion returns the completion of a post.
func (r *MemoryRecorder) Completion(postID string) (Completion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.completions[postID]
	if !ok {
		return Completion{}, false
	}
	return *c, true
}
