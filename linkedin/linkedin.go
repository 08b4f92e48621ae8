//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package linkedin implements the LinkedIn post formatting rules: character
// counting as the platform does it, markdown removal and post validation.
package linkedin

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// LinkedIn post limits.
const (
	CharLimit      = 3000
	HookCutoff     = 140
	RecommendedMin = 1300
	RecommendedMax = 2000
)

// Validation is the result of Validate.
type Validation struct {
	Valid       bool     `json:"valid"`
	CharCount   int      `json:"char_count"`
	WordCount   int      `json:"word_count"`
	HookPreview string   `json:"hook_preview"`
	Warnings    []string `json:"warnings"`
}

// CountChars counts user-perceived characters: grapheme clusters of the NFC
// form, so an emoji with modifiers counts once.
func CountChars(s string) int {
	return uniseg.GraphemeClusterCount(norm.NFC.String(s))
}

// HookPreview returns the text visible before the "see more" fold: the first
// line, cut at HookCutoff characters.
func HookPreview(s string) string {
	return truncate(firstLine(s), HookCutoff)
}

// Validate checks a post against the LinkedIn limits.
func Validate(s string) Validation {
	count := CountChars(s)
	markdown := HasMarkdown(s)
	v := Validation{
		Valid:       count <= CharLimit && !markdown,
		CharCount:   count,
		WordCount:   len(strings.Fields(s)),
		HookPreview: HookPreview(s),
		Warnings:    []string{},
	}
	if count > CharLimit {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Post exceeds LinkedIn's %d character limit (%d characters)", CharLimit, count))
	}
	if hook := CountChars(firstLine(s)); hook > HookCutoff {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Hook is %d characters and may be cut off before 'see more' (recommended: under %d)",
				hook, HookCutoff))
	}
	if markdown {
		v.Warnings = append(v.Warnings, "Markdown formatting detected, LinkedIn renders plain text only")
	}
	switch {
	case count < RecommendedMin:
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Post is short (%d chars), recommended range is %d-%d characters",
				count, RecommendedMin, RecommendedMax))
	case count > RecommendedMax && count <= CharLimit:
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("Post is %d characters, optimal engagement range is %d-%d",
				count, RecommendedMin, RecommendedMax))
	}
	return v
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate keeps at most n grapheme clusters of s.
func truncate(s string, n int) string {
	g := uniseg.NewGraphemes(s)
	var b strings.Builder
	for i := 0; i < n && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String()
}
