//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package local stores artifacts as files in one directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

var _ artifact.Service = (*Service)(nil)

const defaultURLPrefix = "/api/uploads/file/"

// Service is a directory-backed artifact store. The MIME type of a stored
// file is derived from its extension.
type Service struct {
	dir       string
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

// NewService creates the directory if needed.
func NewService(dir string, opts ...Option) (*Service, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	s := &Service{dir: dir, urlPrefix: defaultURLPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the storage directory.
func (s *Service) Dir() string {
	return s.dir
}

// Save implements artifact.Service. Files are written to a temporary name
// and renamed into place.
func (s *Service) Save(ctx context.Context, art *artifact.Artifact) (string, error) {
	name, err := artifact.PrepareName(art)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(art.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	log.Debugf("artifact: stored %s (%d bytes)", name, len(art.Data))
	return artifact.Ref(name), nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, ref string) (*artifact.Artifact, error) {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return nil, artifact.ErrInvalidName
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return &artifact.Artifact{Data: data, MimeType: artifact.ContentType(name), Name: name}, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, ref string) error {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return artifact.ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// URL implements artifact.Service.
func (s *Service) URL(name string) string {
	return s.urlPrefix + name
}
