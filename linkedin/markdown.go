//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package linkedin

import (
	"bytes"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// cut is a half-open byte range of markup to drop from the source.
type cut struct {
	start, stop int
}

// StripMarkdown removes the markdown syntax LinkedIn would show literally:
// emphasis, ATX heading markers, bullet markers, link targets and code span
// backticks. Line layout and ordered list numbering are kept.
func StripMarkdown(s string) string {
	src := []byte(s)
	doc := md.Parser().Parse(text.NewReader(src))
	var cuts []cut
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			cuts = append(cuts, headingCuts(node, src)...)
		case *ast.ListItem:
			if list, ok := node.Parent().(*ast.List); ok && !list.IsOrdered() {
				cuts = append(cuts, bulletCuts(node, src)...)
			}
		case *ast.Emphasis:
			if start, stop, ok := inlineSpan(node); ok {
				cuts = append(cuts,
					cut{start - node.Level, start},
					cut{stop, stop + node.Level})
			}
		case *ast.Link:
			cuts = append(cuts, linkCuts(node, src)...)
		case *ast.CodeSpan:
			cuts = append(cuts, codeSpanCuts(node, src)...)
		}
		return ast.WalkContinue, nil
	})
	return string(apply(src, cuts))
}

// HasMarkdown reports whether s contains markup that StripMarkdown removes.
func HasMarkdown(s string) bool {
	src := []byte(s)
	doc := md.Parser().Parse(text.NewReader(src))
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			found = len(headingCuts(node, src)) > 0
		case *ast.List:
			found = !node.IsOrdered()
		case *ast.Emphasis, *ast.Link, *ast.CodeSpan:
			found = true
		}
		if found {
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func headingCuts(h *ast.Heading, src []byte) []cut {
	if h.Lines().Len() == 0 {
		return nil
	}
	start := h.Lines().At(0).Start
	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	// Setext headings carry no marker before their text.
	if bytes.IndexByte(src[lineStart:start], '#') < 0 {
		return nil
	}
	return []cut{{lineStart, start}}
}

func bulletCuts(item *ast.ListItem, src []byte) []cut {
	first := item.FirstChild()
	if first == nil || first.Lines().Len() == 0 {
		return nil
	}
	start := first.Lines().At(0).Start
	p := start
	for p > 0 && (src[p-1] == ' ' || src[p-1] == '\t') {
		p--
	}
	if p == 0 || bytes.IndexByte([]byte("-*+"), src[p-1]) < 0 {
		return nil
	}
	return []cut{{p - 1, start}}
}

func linkCuts(l *ast.Link, src []byte) []cut {
	start, stop, ok := inlineSpan(l)
	if !ok || start == 0 || src[start-1] != '[' {
		return nil
	}
	if !bytes.HasPrefix(src[stop:], []byte("](")) {
		return nil
	}
	closing := bytes.IndexByte(src[stop:], ')')
	if closing < 0 {
		return nil
	}
	return []cut{{start - 1, start}, {stop, stop + closing + 1}}
}

func codeSpanCuts(c *ast.CodeSpan, src []byte) []cut {
	start, stop, ok := inlineSpan(c)
	if !ok {
		return nil
	}
	open := start
	for open > 0 && src[open-1] == '`' {
		open--
	}
	closing := stop
	for closing < len(src) && src[closing] == '`' {
		closing++
	}
	if open == start || closing == stop {
		return nil
	}
	return []cut{{open, start}, {stop, closing}}
}

// inlineSpan returns the source range covered by the text of n, including
// the delimiters of nested inline nodes.
func inlineSpan(n ast.Node) (int, int, bool) {
	start, stop := -1, -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var s, e int
		switch child := c.(type) {
		case *ast.Text:
			s, e = child.Segment.Start, child.Segment.Stop
		case *ast.Emphasis:
			cs, ce, ok := inlineSpan(child)
			if !ok {
				continue
			}
			s, e = cs-child.Level, ce+child.Level
		default:
			cs, ce, ok := inlineSpan(child)
			if !ok {
				continue
			}
			s, e = cs, ce
		}
		if start < 0 || s < start {
			start = s
		}
		if e > stop {
			stop = e
		}
	}
	return start, stop, start >= 0
}

func apply(src []byte, cuts []cut) []byte {
	if len(cuts) == 0 {
		return src
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].start < cuts[j].start })
	var out bytes.Buffer
	pos := 0
	for _, c := range cuts {
		if c.start < pos {
			c.start = pos
		}
		if c.stop > len(src) {
			c.stop = len(src)
		}
		if c.start >= c.stop {
			continue
		}
		out.Write(src[pos:c.start])
		pos = c.stop
	}
	out.Write(src[pos:])
	return out.Bytes()
}
