//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides the language model collaborator used by the
// pipeline stages.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Model is the interface for all language models.
//
// Function-level errors (returned as error) mean the request could not be
// sent at all. API-level errors are delivered through the response channel in
// Response.Error.
//
//	responseChan, err := m.GenerateContent(ctx, request)
//	if err != nil {
//	    return fmt.Errorf("failed to generate content: %w", err)
//	}
//	for response := range responseChan {
//	    if response.Error != nil {
//	        return fmt.Errorf("API error: %s", response.Error.Message)
//	    }
//	}
type Model interface {
	// GenerateContent generates content from the given request.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a Model.
type Info struct {
	Name string
}

// ErrEmptyResponse is returned by Complete when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Complete sends a single-turn request and returns the concatenated assistant
// text. Partial responses are joined in order.
func Complete(ctx context.Context, m Model, request *Request) (string, error) {
	if m == nil {
		return "", errors.New("model is nil")
	}
	ch, err := m.GenerateContent(ctx, request)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	var (
		sb    strings.Builder
		final string
	)
	for rsp := range ch {
		if rsp.Error != nil {
			return "", fmt.Errorf("%s: %s", rsp.Error.Type, rsp.Error.Message)
		}
		if len(rsp.Choices) == 0 {
			continue
		}
		if rsp.IsPartial {
			sb.WriteString(rsp.Choices[0].Delta.Content)
			continue
		}
		final = rsp.Choices[0].Message.Content
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if final == "" {
		final = sb.String()
	}
	if strings.TrimSpace(final) == "" {
		return "", ErrEmptyResponse
	}
	return final, nil
}

// Prompt is a shorthand for Complete with a single user message.
func Prompt(ctx context.Context, m Model, prompt string, cfg GenerationConfig) (string, error) {
	return Complete(ctx, m, &Request{
		Messages:         []Message{NewUserMessage(prompt)},
		GenerationConfig: cfg,
	})
}
