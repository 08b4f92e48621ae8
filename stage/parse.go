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
	"regexp"
	"strings"
)

const listMarkers = "0123456789.-) "

var (
	choicePattern    = regexp.MustCompile(`Choice:\s*(\S+)`)
	reasoningPattern = regexp.MustCompile(`Reasoning:\s*([^\n]+)`)
)

// section returns the body under "## <heading>" up to the first of stops,
// or to the end of text. The body is trimmed.
func section(text, heading string, stops ...string) (string, bool) {
	marker := "## " + heading + "\n"
	i := strings.Index(text, marker)
	if i < 0 {
		return "", false
	}
	body := text[i+len(marker):]
	end := len(body)
	for _, stop := range stops {
		if j := strings.Index(body, stop); j >= 0 && j < end {
			end = j
		}
	}
	return strings.TrimSpace(body[:end]), true
}

// listItems splits a section body into non-empty lines with list numbering
// and bullet markers removed.
func listItems(body string) []string {
	return splitLines(body, listMarkers)
}

// hashtags splits a hashtag section. Only dashes and spaces are stripped so
// that tags starting with digits survive.
func hashtags(body string) []string {
	return splitLines(body, "- ")
}

func splitLines(body, cutset string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.TrimLeft(line, cutset))
	}
	return out
}

// nonEmptyLines returns the lines of s that contain more than whitespace,
// untrimmed.
func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// imageDecision extracts the choice and reasoning of the Image Decision
// section.
func imageDecision(text string) (choice, reasoning string) {
	body, ok := section(text, "Image Decision")
	if !ok {
		return "", ""
	}
	if m := choicePattern.FindStringSubmatch(body); m != nil {
		choice = strings.TrimSpace(m[1])
	}
	if m := reasoningPattern.FindStringSubmatch(body); m != nil {
		reasoning = strings.TrimSpace(m[1])
	}
	return choice, reasoning
}
