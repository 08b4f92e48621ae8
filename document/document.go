//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package document extracts plain text from uploaded source material so it
// can be used as post research input.
package document

import (
	"bytes"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

// Content types with built-in meaning.
const (
	ContentTypeText = "text/plain"
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Reader extracts the text of one document format.
type Reader interface {
	// Read returns the text of the document in data.
	Read(data []byte) (string, error)
	// Name returns the name of the reader.
	Name() string
}

// Registry selects a Reader by content type, falling back to the file
// extension when the content type is generic.
type Registry struct {
	mu           sync.RWMutex
	contentTypes map[string]Reader
	extensions   map[string]Reader
}

// NewRegistry creates a registry that already reads plain text.
func NewRegistry() *Registry {
	r := &Registry{
		contentTypes: make(map[string]Reader),
		extensions:   make(map[string]Reader),
	}
	r.Register(TextReader{}, []string{ContentTypeText, "text/markdown"}, []string{".txt", ".md"})
	return r
}

// Register maps content types and extensions to reader.
func (r *Registry) Register(reader Reader, contentTypes, extensions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range contentTypes {
		r.contentTypes[normalizeContentType(ct)] = reader
	}
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = reader
	}
}

// Lookup returns the reader for a content type or file name.
func (r *Registry) Lookup(contentType, filename string) (Reader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reader, ok := r.contentTypes[normalizeContentType(contentType)]; ok {
		return reader, true
	}
	reader, ok := r.extensions[strings.ToLower(filepath.Ext(filename))]
	return reader, ok
}

// Extract returns the text of an uploaded file. Unsupported formats yield
// empty text. A parse failure is logged and also yields empty text, so an
// unreadable upload never blocks a post.
func (r *Registry) Extract(contentType, filename string, data []byte) string {
	reader, ok := r.Lookup(contentType, filename)
	if !ok {
		log.Debugf("document: no reader for %s (%s)", filename, contentType)
		return ""
	}
	text, err := reader.Read(data)
	if err != nil {
		log.Warnf("document: %s failed on %s: %v", reader.Name(), filename, err)
		return ""
	}
	return strings.TrimSpace(text)
}

// ExtractFrom reads all of src and extracts its text.
func (r *Registry) ExtractFrom(contentType, filename string, src io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return "", err
	}
	return r.Extract(contentType, filename, buf.Bytes()), nil
}

func normalizeContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// TextReader reads UTF-8 text, replacing invalid sequences.
type TextReader struct{}

// Read implements Reader.
func (TextReader) Read(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// Name implements Reader.
func (TextReader) Name() string {
	return "TextReader"
}
