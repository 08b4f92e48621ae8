//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/runner"
)

type stubRunner struct {
	events    []*event.Event
	err       error
	lastRun   *runner.RunRequest
	lastCmd   *graph.Command
	status    *graph.Status
	runCalls  int
	resumeArg string
}

func (s *stubRunner) emit() <-chan *event.Event {
	ch := make(chan *event.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func (s *stubRunner) Run(ctx context.Context, req *runner.RunRequest) (string, <-chan *event.Event, error) {
	s.runCalls++
	s.lastRun = req
	if s.err != nil {
		return "", nil, s.err
	}
	return "thread-1", s.emit(), nil
}

func (s *stubRunner) Resume(ctx context.Context, threadID string, cmd *graph.Command) (<-chan *event.Event, error) {
	s.resumeArg = threadID
	s.lastCmd = cmd
	if s.err != nil {
		return nil, s.err
	}
	return s.emit(), nil
}

func (s *stubRunner) Replay(ctx context.Context, threadID string) (<-chan *event.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.emit(), nil
}

func (s *stubRunner) Status(ctx context.Context, threadID string) (*graph.Status, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.status != nil {
		return s.status, nil
	}
	return &graph.Status{ThreadID: threadID, Status: graph.StatusNotFound}, nil
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRun_StreamsEvents(t *testing.T) {
	r := &stubRunner{events: []*event.Event{
		event.New("thread-1", event.KindStageComplete, "research", 1,
			event.WithDescription("Research complete")),
		event.NewSuspended("thread-1", "approve", 6, map[string]any{"draft_content": "post"}),
	}}
	s := New(r)

	rr := do(t, s.Handler(), http.MethodPost, "/api/agent/run",
		`{"post_id":"p1","user_input":"agents in production","post_format":"story"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "thread-1", rr.Header().Get(HeaderThreadID))
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "event: stage_complete\ndata: {")
	assert.Contains(t, body, `"description":"Research complete"`)
	assert.Contains(t, body, "event: suspended\ndata: {")
	assert.Less(t, strings.Index(body, "stage_complete"), strings.Index(body, "suspended"))

	require.NotNil(t, r.lastRun)
	assert.Equal(t, "p1", r.lastRun.PostID)
	assert.Equal(t, "story", r.lastRun.PostFormat)
}

func TestRun_RejectsBadRequests(t *testing.T) {
	r := &stubRunner{}
	s := New(r)

	rr := do(t, s.Handler(), http.MethodPost, "/api/agent/run", `{"user_input":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s.Handler(), http.MethodPost, "/api/agent/run", `{invalid`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, r.runCalls)
}

func TestResume_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"unknown status", `{"status":"maybe"}`, nil, http.StatusBadRequest},
		{"edit without feedback", `{"status":"edit_requested"}`, nil, http.StatusBadRequest},
		{"unknown thread", `{"status":"approved"}`, fmt.Errorf("resume: %w", graph.ErrNotFound), http.StatusNotFound},
		{"not suspended", `{"status":"approved"}`, fmt.Errorf("resume: %w", graph.ErrInvalidState), http.StatusConflict},
		{"other", `{"status":"approved"}`, io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&stubRunner{err: tt.err})
			rr := do(t, s.Handler(), http.MethodPost, "/api/agent/resume/t1", tt.body)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestResume_PassesCommand(t *testing.T) {
	r := &stubRunner{events: []*event.Event{
		event.New("t1", event.KindCompleted, "approve", 7),
	}}
	s := New(r)

	rr := do(t, s.Handler(), http.MethodPost, "/api/agent/resume/t1",
		`{"status":"edit_requested","feedback":"shorter"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t1", r.resumeArg)
	assert.Equal(t, graph.RequestEdit("shorter"), r.lastCmd)
	assert.Contains(t, rr.Body.String(), "event: completed")
}

func TestReplay(t *testing.T) {
	s := New(&stubRunner{err: graph.ErrInvalidState})
	rr := do(t, s.Handler(), http.MethodPost, "/api/agent/replay/t1", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	s = New(&stubRunner{events: []*event.Event{event.New("t1", event.KindStageComplete, "proofread", 5)}})
	rr = do(t, s.Handler(), http.MethodPost, "/api/agent/replay/t1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t1", rr.Header().Get(HeaderThreadID))
}

func TestStatus(t *testing.T) {
	s := New(&stubRunner{})
	rr := do(t, s.Handler(), http.MethodGet, "/api/agent/status/missing", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"thread_id":"missing","current_stage":"","status":"not_found"}`, rr.Body.String())

	s = New(&stubRunner{status: &graph.Status{
		ThreadID:     "t1",
		CurrentStage: "proofread",
		Status:       graph.StatusAwaitingApproval,
	}})
	rr = do(t, s.Handler(), http.MethodGet, "/api/agent/status/t1", "")
	assert.JSONEq(t, `{"thread_id":"t1","current_stage":"proofread","status":"awaiting_approval"}`, rr.Body.String())
}

func TestHealth(t *testing.T) {
	rr := do(t, New(&stubRunner{}).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS(t *testing.T) {
	s := New(&stubRunner{}, WithCORSOrigins("http://localhost:3000"))
	req := httptest.NewRequest(http.MethodOptions, "/api/agent/run", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/agent/run", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func upload(t *testing.T, h http.Handler, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUpload_Text(t *testing.T) {
	s := New(&stubRunner{})
	rr := upload(t, s.Handler(), "notes.md", []byte("  Inference-time scaling notes\n"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"text":"Inference-time scaling notes"`)
	assert.Contains(t, rr.Body.String(), `"filename":"notes.md"`)
}

func TestUpload_RejectsDisallowedNames(t *testing.T) {
	s := New(&stubRunner{})
	rr := upload(t, s.Handler(), "run.sh", []byte("echo hi"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	s = New(&stubRunner{}, WithUploadPatterns("*.txt"))
	rr = upload(t, s.Handler(), "notes.md", []byte("hi"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	rr = upload(t, s.Handler(), "../../notes.txt", []byte("hi"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"filename":"notes.txt"`)
}

func TestUpload_ImageRoundTrip(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	rr := upload(t, New(&stubRunner{}).Handler(), "chart.png", png)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	store := inmemory.NewService()
	s := New(&stubRunner{}, WithArtifactService(store))
	rr = upload(t, s.Handler(), "chart.png", png)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"content_type":"image/png"`)
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	name, ok := artifact.ParseRef(resp.Ref)
	require.True(t, ok)
	assert.True(t, artifact.IsRef(resp.Ref))
	assert.Equal(t, FilePathPrefix+name, resp.URL)

	stored, err := store.Load(context.Background(), resp.Ref)
	require.NoError(t, err)
	assert.Equal(t, png, stored.Data)

	rr = do(t, s.Handler(), http.MethodGet, FilePathPrefix+name, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, png, rr.Body.Bytes())

	rr = do(t, s.Handler(), http.MethodGet, FilePathPrefix+"missing.png", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
