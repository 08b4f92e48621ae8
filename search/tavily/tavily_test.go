//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/search"
)

func TestClient_Search(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"answer": "About 40% of projects are cancelled.",
			"results": [
				{"title": "Survey", "url": "https://example.com/s", "content": "A survey found...", "score": 0.9}
			],
			"images": [
				"https://img.example.com/a.png",
				{"url": "https://img.example.com/b.png", "description": "chart"},
				""
			]
		}`))
	}))
	defer srv.Close()

	c, err := New("tvly-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	resp, err := c.Search(context.Background(), &search.Request{
		Query:         "agent projects cancelled",
		Depth:         search.DepthAdvanced,
		MaxResults:    3,
		IncludeAnswer: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "agent projects cancelled", got["query"])
	assert.Equal(t, "advanced", got["search_depth"])
	assert.EqualValues(t, 3, got["max_results"])
	assert.Equal(t, true, got["include_answer"])
	assert.NotContains(t, got, "include_images")

	assert.Equal(t, "About 40% of projects are cancelled.", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com/s", resp.Results[0].URL)
	assert.Equal(t, []search.Image{
		{URL: "https://img.example.com/a.png"},
		{URL: "https://img.example.com/b.png", Description: "chart"},
	}, resp.Images)
}

func TestClient_SearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "invalid key"}`))
	}))
	defer srv.Close()

	c, err := New("bad", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), &search.Request{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid key")

	_, err = c.Search(context.Background(), &search.Request{Query: "  "})
	assert.EqualError(t, err, "query cannot be empty")

	_, err = New("")
	assert.Error(t, err)
}

func TestClient_SearchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Search(ctx, &search.Request{Query: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
