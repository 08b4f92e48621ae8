//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package docx extracts text from Word uploads.
package docx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gonfva/docxlib"

	"trpc.group/trpc-go/trpc-post-agent-go/document"
)

var _ document.Reader = Reader{}

// Extensions handled by the reader.
var Extensions = []string{".docx"}

// Reader reads DOCX documents, one line per paragraph.
type Reader struct{}

// New creates a DOCX reader.
func New() Reader {
	return Reader{}
}

// Read implements document.Reader.
func (Reader) Read(data []byte) (string, error) {
	doc, err := docxlib.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}
	var lines []string
	for _, paragraph := range doc.Paragraphs() {
		var words []string
		for _, child := range paragraph.Children() {
			if child.Run != nil && child.Run.Text != nil {
				if text := strings.TrimSpace(child.Run.Text.Text); text != "" {
					words = append(words, text)
				}
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				if text := strings.TrimSpace(child.Link.Run.Text.Text); text != "" {
					words = append(words, text)
				}
			}
		}
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Name implements document.Reader.
func (Reader) Name() string {
	return "DOCXReader"
}

// Register adds the reader to reg.
func Register(reg *document.Registry) {
	reg.Register(New(), []string{document.ContentTypeDOCX}, Extensions)
}
