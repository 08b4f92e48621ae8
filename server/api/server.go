//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package api exposes the post pipeline over HTTP. Runs stream their events
// as server-sent events; uploads are turned into research text or stored
// images.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/document"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/runner"
)

// HeaderThreadID carries the thread id of a streamed run.
const HeaderThreadID = "X-Thread-ID"

// FilePathPrefix is where stored uploads are served.
const FilePathPrefix = "/api/uploads/file/"

const defaultMaxUploadBytes = 20 << 20

var defaultUploadPatterns = []string{
	"*.{pdf,PDF}",
	"*.{docx,DOCX}",
	"*.{txt,md,TXT,MD}",
	"*.{png,jpg,jpeg,webp,gif,PNG,JPG,JPEG,WEBP,GIF}",
}

// Server exposes the pipeline HTTP API.
type Server struct {
	runner         runner.Runner
	artifacts      artifact.Service
	documents      *document.Registry
	corsOrigins    []string
	uploadPatterns []string
	maxUploadBytes int64
	router         *mux.Router
	handler        http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithArtifactService sets the store for uploaded images. Image uploads are
// rejected without one.
func WithArtifactService(svc artifact.Service) Option {
	return func(s *Server) {
		s.artifacts = svc
	}
}

// WithDocumentRegistry sets the readers used to extract uploaded text.
func WithDocumentRegistry(r *document.Registry) Option {
	return func(s *Server) {
		s.documents = r
	}
}

// WithCORSOrigins sets the origins allowed to call the API.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithUploadPatterns sets the glob patterns upload file names must match.
func WithUploadPatterns(patterns ...string) Option {
	return func(s *Server) {
		if len(patterns) > 0 {
			s.uploadPatterns = patterns
		}
	}
}

// WithMaxUploadBytes bounds the size of an upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// New creates a Server around r.
func New(r runner.Runner, opts ...Option) *Server {
	s := &Server{
		runner:         r,
		uploadPatterns: defaultUploadPatterns,
		maxUploadBytes: defaultMaxUploadBytes,
		router:         mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.documents == nil {
		s.documents = document.NewRegistry()
	}
	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{HeaderThreadID},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	agent := s.router.PathPrefix("/api/agent").Subrouter()
	agent.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	agent.HandleFunc("/resume/{thread_id}", s.handleResume).Methods(http.MethodPost)
	agent.HandleFunc("/replay/{thread_id}", s.handleReplay).Methods(http.MethodPost)
	agent.HandleFunc("/status/{thread_id}", s.handleStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/api/uploads", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc(FilePathPrefix+"{name}", s.handleFile).Methods(http.MethodGet)
}

// ---- Handlers -----------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleRun called: path=%s", r.URL.Path)
	var req runner.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		http.Error(w, "user_input is required", http.StatusBadRequest)
		return
	}
	threadID, events, err := s.runner.Run(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(HeaderThreadID, threadID)
	stream(w, r, events)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleResume called: path=%s", r.URL.Path)
	threadID := mux.Vars(r)["thread_id"]
	var cmd graph.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, err)
		return
	}
	events, err := s.runner.Resume(r.Context(), threadID, &cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(HeaderThreadID, threadID)
	stream(w, r, events)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleReplay called: path=%s", r.URL.Path)
	threadID := mux.Vars(r)["thread_id"]
	events, err := s.runner.Replay(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(HeaderThreadID, threadID)
	stream(w, r, events)
}

type statusResponse struct {
	ThreadID     string `json:"thread_id"`
	CurrentStage string `json:"current_stage"`
	Status       string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]
	st, err := s.runner.Status(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ThreadID:     st.ThreadID,
		CurrentStage: st.CurrentStage,
		Status:       st.Status,
	})
}

// ---- Helpers ------------------------------------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, graph.ErrInvalidCommand), errors.Is(err, graph.ErrInvalidInput):
		code = http.StatusBadRequest
	case graph.IsNotFound(err), errors.Is(err, artifact.ErrNotFound):
		code = http.StatusNotFound
	case graph.IsInvalidState(err):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		log.Errorf("api: %v", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
