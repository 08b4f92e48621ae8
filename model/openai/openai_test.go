//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openaigo "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		opts      []Option
		apiKey    string
		baseURL   string
	}{
		{name: "api key only", modelName: "gpt-4o", opts: []Option{WithAPIKey("k")}, apiKey: "k"},
		{
			name:      "custom base url",
			modelName: "custom",
			opts:      []Option{WithAPIKey("k"), WithBaseURL("https://api.custom.com")},
			apiKey:    "k",
			baseURL:   "https://api.custom.com",
		},
		{name: "no options", modelName: "gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.modelName, tt.opts...)
			require.NotNil(t, m)
			assert.Equal(t, tt.modelName, m.Info().Name)
			assert.Equal(t, tt.apiKey, m.apiKey)
			assert.Equal(t, tt.baseURL, m.baseURL)
			assert.Equal(t, defaultChannelBufferSize, m.channelBufferSize)
		})
	}
}

func TestModel_GenerateContent_NilRequest(t *testing.T) {
	m := New("test-model", WithAPIKey("test-key"))
	_, err := m.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "request cannot be nil", err.Error())
}

func TestModel_GenerateContent_NonStreaming(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "## Trending Angles\n1. Evals"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	var callbackCalled bool
	m := New("gpt-4o",
		WithAPIKey("k"),
		WithBaseURL(srv.URL+"/"),
		WithChatRequestCallback(func(context.Context, *openaigo.ChatCompletionNewParams) { callbackCalled = true }),
	)
	text, err := model.Prompt(context.Background(), m, "research this", model.Config(200, 0.5))
	require.NoError(t, err)
	assert.Equal(t, "## Trending Angles\n1. Evals", text)
	assert.True(t, callbackCalled)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 200, got["max_completion_tokens"])
	assert.EqualValues(t, 0.5, got["temperature"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestModel_GenerateContent_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	m := New("gpt-4o",
		WithAPIKey("k"),
		WithBaseURL(srv.URL+"/"),
		WithOpenAIOptions(openaiopt.WithMaxRetries(0)),
	)
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	var responses []*model.Response
	for rsp := range ch {
		responses = append(responses, rsp)
	}
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, model.ErrorTypeAPIError, responses[0].Error.Type)
	assert.True(t, responses[0].Done)
}

func TestModel_GenerateContent_Streaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":"stop"}]}`,
		}
		for _, c := range chunks {
			_, _ = w.Write([]byte("data: " + c + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	m := New("gpt-4o", WithAPIKey("k"), WithBaseURL(srv.URL+"/"))
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages:         []model.Message{model.NewUserMessage("hi")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	})
	require.NoError(t, err)

	var partial string
	var final *model.Response
	for rsp := range ch {
		require.Nil(t, rsp.Error)
		if rsp.IsPartial {
			partial += rsp.Content()
			continue
		}
		final = rsp
	}
	assert.Equal(t, "Hello world", partial)
	require.NotNil(t, final)
	assert.True(t, final.Done)
	assert.Equal(t, "Hello world", final.Content())
}
