//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSection(t *testing.T) {
	text := "intro\n## Optimized Post\n  body line\n\n## Changes Made\n1. a\n## Sources\nx"
	body, ok := section(text, "Optimized Post", "## Changes Made")
	assert.True(t, ok)
	assert.Equal(t, "body line", body)

	body, ok = section(text, "Changes Made", "## Suggested Hashtags", "## Sources")
	assert.True(t, ok)
	assert.Equal(t, "1. a", body)

	body, ok = section(text, "Sources")
	assert.True(t, ok)
	assert.Equal(t, "x", body)

	_, ok = section(text, "Tone Check")
	assert.False(t, ok)

	// The heading must end its line.
	_, ok = section("## Sources: none", "Sources")
	assert.False(t, ok)
}

func TestListItems(t *testing.T) {
	assert.Equal(t,
		[]string{"First", "Second", "Third (with parens)", "bullet"},
		listItems("1. First\n 2) Second\n\n3.- Third (with parens)\n- bullet\n"),
	)
	assert.Nil(t, listItems("  \n"))
}

func TestHashtags(t *testing.T) {
	assert.Equal(t, []string{"#AI", "#2025Trends", "AgentOps"}, hashtags("- #AI\n#2025Trends\n -  AgentOps"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "", truncate("héllo", 0))
}

func TestImageDecision(t *testing.T) {
	choice, reasoning := imageDecision("## Image Decision\nChoice:   retrieved_2  \nReasoning: It shows the data.\nextra")
	assert.Equal(t, "retrieved_2", choice)
	assert.Equal(t, "It shows the data.", reasoning)

	choice, reasoning = imageDecision("## Optimized Post\nx")
	assert.Empty(t, choice)
	assert.Empty(t, reasoning)
}

func TestPickRetrieved(t *testing.T) {
	downloaded := []downloadedImage{{Ref: "artifact://a.png"}, {Ref: "artifact://b.png"}}
	tests := []struct {
		choice string
		want   string
		ok     bool
	}{
		{choice: "retrieved_2", want: "artifact://b.png", ok: true},
		{choice: "retrieved_0"},
		{choice: "retrieved_3"},
		{choice: "retrieved_x"},
		{choice: "generated"},
		{choice: ""},
	}
	for _, tt := range tests {
		img, ok := pickRetrieved(tt.choice, downloaded)
		assert.Equal(t, tt.ok, ok, tt.choice)
		assert.Equal(t, tt.want, img.Ref, tt.choice)
	}
}

func TestFill(t *testing.T) {
	got := fill("a={a} b={b} a={a}", "a", "{b}", "b", "2")
	assert.Equal(t, "a={b} b=2 a={b}", got)
}
