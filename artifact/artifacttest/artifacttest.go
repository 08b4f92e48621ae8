//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package artifacttest holds the behaviour every artifact.Service must show.
package artifacttest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
)

// Run exercises svc.
func Run(t *testing.T, svc artifact.Service) {
	ctx := context.Background()

	t.Run("SaveLoad", func(t *testing.T) {
		data := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
		ref, err := svc.Save(ctx, &artifact.Artifact{Data: data, MimeType: "image/png"})
		require.NoError(t, err)
		require.True(t, artifact.IsRef(ref), ref)
		name, _ := artifact.ParseRef(ref)
		assert.True(t, strings.HasSuffix(name, ".png"))

		got, err := svc.Load(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, data, got.Data)
		assert.Equal(t, "image/png", got.MimeType)
		assert.Equal(t, name, got.Name)

		byName, err := svc.Load(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, data, byName.Data)
		assert.NotEmpty(t, svc.URL(name))
	})

	t.Run("NamedOverwrite", func(t *testing.T) {
		_, err := svc.Save(ctx, &artifact.Artifact{Name: "fixed.txt", Data: []byte("v1"), MimeType: "text/plain"})
		require.NoError(t, err)
		ref, err := svc.Save(ctx, &artifact.Artifact{Name: "fixed.txt", Data: []byte("v2"), MimeType: "text/plain"})
		require.NoError(t, err)
		assert.Equal(t, artifact.Ref("fixed.txt"), ref)
		got, err := svc.Load(ctx, "fixed.txt")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got.Data))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.Load(ctx, "missing.png")
		assert.ErrorIs(t, err, artifact.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		ref, err := svc.Save(ctx, &artifact.Artifact{Data: []byte("x"), MimeType: "image/gif"})
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, ref))
		_, err = svc.Load(ctx, ref)
		assert.ErrorIs(t, err, artifact.ErrNotFound)
		assert.NoError(t, svc.Delete(ctx, ref))
	})

	t.Run("InvalidNames", func(t *testing.T) {
		_, err := svc.Save(ctx, &artifact.Artifact{Name: "../escape.png", Data: []byte("x")})
		assert.ErrorIs(t, err, artifact.ErrInvalidName)
		_, err = svc.Load(ctx, "../escape.png")
		assert.ErrorIs(t, err, artifact.ErrInvalidName)
		_, err = svc.Save(ctx, nil)
		assert.Error(t, err)
	})
}
