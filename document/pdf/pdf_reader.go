//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package pdf extracts text from PDF uploads.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"trpc.group/trpc-go/trpc-post-agent-go/document"
)

var _ document.Reader = Reader{}

// Extensions handled by the reader.
var Extensions = []string{".pdf"}

// Reader reads PDF documents page by page. Pages are separated by a blank
// line; pages without extractable text are skipped.
type Reader struct{}

// New creates a PDF reader.
func New() Reader {
	return Reader{}
}

// Read implements document.Reader.
func (Reader) Read(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// Name implements document.Reader.
func (Reader) Name() string {
	return "PDFReader"
}

// Register adds the reader to reg.
func Register(reg *document.Registry) {
	reg.Register(New(), []string{document.ContentTypePDF}, Extensions)
}
