//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package imagegen defines the image generation collaborator.
package imagegen

import (
	"context"
	"errors"
)

// ErrNoImage is returned when the provider answered without image data.
var ErrNoImage = errors.New("no image generated in response")

// Image is generated image data.
type Image struct {
	Data     []byte
	MimeType string
}

// Generator turns a text prompt into an image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
}
