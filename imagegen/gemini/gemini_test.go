//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-post-agent-go/imagegen"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := New(context.Background(), WithClientOptions(&genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}))
	require.NoError(t, err)
	return g
}

func TestGenerator_Generate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var path string
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [
			{"text": "Here is your image"},
			{"inlineData": {"mimeType": "image/png", "data": "` + base64.StdEncoding.EncodeToString(png) + `"}}
		]}}]}`))
	})

	img, err := g.Generate(context.Background(), "a minimal chart of agent failures")
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
	assert.True(t, strings.HasSuffix(path, "models/"+DefaultModel+":generateContent"), path)
}

func TestGenerator_NoImage(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "cannot draw"}]}}]}`))
	})
	_, err := g.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, imagegen.ErrNoImage)
}

func TestGenerator_APIError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "key disabled", "status": "PERMISSION_DENIED"}}`))
	})
	_, err := g.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini generate content")
}

func TestNew_RequiresKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), APIKeyEnv)

	_, err = newTestGenerator(t, func(http.ResponseWriter, *http.Request) {}).Generate(context.Background(), " ")
	assert.Error(t, err)
}
