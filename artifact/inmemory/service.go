//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the artifact service.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
)

var _ artifact.Service = (*Service)(nil)

const defaultURLPrefix = "/api/uploads/file/"

// Service is an in-memory implementation of the artifact service.
// It is suitable for testing and development environments.
type Service struct {
	mutex     sync.RWMutex
	artifacts map[string]*artifact.Artifact
	urlPrefix string
}

// Option configures a Service.
type Option func(*Service)

// WithURLPrefix sets the prefix URL returns names under.
func WithURLPrefix(prefix string) Option {
	return func(s *Service) {
		s.urlPrefix = prefix
	}
}

// NewService creates a new in-memory artifact service.
func NewService(opts ...Option) *Service {
	s := &Service{
		artifacts: make(map[string]*artifact.Artifact),
		urlPrefix: defaultURLPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements artifact.Service.
func (s *Service) Save(ctx context.Context, art *artifact.Artifact) (string, error) {
	name, err := artifact.PrepareName(art)
	if err != nil {
		return "", err
	}
	stored := &artifact.Artifact{
		Data:     append([]byte(nil), art.Data...),
		MimeType: art.MimeType,
		Name:     name,
	}
	s.mutex.Lock()
	s.artifacts[name] = stored
	s.mutex.Unlock()
	return artifact.Ref(name), nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, ref string) (*artifact.Artifact, error) {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return nil, artifact.ErrInvalidName
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	art, ok := s.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
	}
	return &artifact.Artifact{
		Data:     append([]byte(nil), art.Data...),
		MimeType: art.MimeType,
		Name:     art.Name,
	}, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, ref string) error {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return artifact.ErrInvalidName
	}
	s.mutex.Lock()
	delete(s.artifacts, name)
	s.mutex.Unlock()
	return nil
}

// URL implements artifact.Service.
func (s *Service) URL(name string) string {
	return s.urlPrefix + name
}
