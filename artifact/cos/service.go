//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package cos stores artifacts in Tencent Cloud Object Storage.
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
)

var _ artifact.Service = (*Service)(nil)

const defaultTimeout = 60 * time.Second

// Service is a COS-backed artifact store.
type Service struct {
	cosClient client
	prefix    string
	publicURL string
}

// NewService creates a service for the bucket at bucketURL, e.g.
// https://examplebucket-1250000000.cos.ap-guangzhou.myqcloud.com.
func NewService(bucketURL string, opts ...Option) (*Service, error) {
	o := newOptions(opts)
	cli, err := buildClient(bucketURL, o)
	if err != nil {
		return nil, err
	}
	publicURL := o.publicURL
	if publicURL == "" {
		publicURL = cli.BaseURL()
	}
	return &Service{
		cosClient: cli,
		prefix:    o.prefix,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *Service) objectName(name string) string {
	return s.prefix + name
}

// Save implements artifact.Service.
func (s *Service) Save(ctx context.Context, art *artifact.Artifact) (string, error) {
	name, err := artifact.PrepareName(art)
	if err != nil {
		return "", err
	}
	if err := s.cosClient.PutObject(ctx, s.objectName(name), bytes.NewReader(art.Data), art.MimeType); err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	return artifact.Ref(name), nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, ref string) (*artifact.Artifact, error) {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return nil, artifact.ErrInvalidName
	}
	body, header, err := s.cosClient.GetObject(ctx, s.objectName(name))
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = artifact.ContentType(name)
	}
	return &artifact.Artifact{Data: data, MimeType: contentType, Name: name}, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, ref string) error {
	name, ok := artifact.ParseRef(ref)
	if !ok {
		return artifact.ErrInvalidName
	}
	if err := s.cosClient.DeleteObject(ctx, s.objectName(name)); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// URL implements artifact.Service.
func (s *Service) URL(name string) string {
	return s.publicURL + "/" + s.objectName(name)
}
