//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package docx

import (
	"bytes"
	"testing"

	godocx "github.com/gomutex/godocx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/document"
)

// createDocx creates a DOCX file with one paragraph per text.
func createDocx(t *testing.T, texts ...string) []byte {
	t.Helper()
	doc, err := godocx.NewDocument()
	require.NoError(t, err)
	for _, text := range texts {
		doc.AddParagraph(text)
	}
	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReader_Read(t *testing.T) {
	text, err := New().Read(createDocx(t, "Why agents fail", "Evals come first"))
	require.NoError(t, err)
	assert.Contains(t, text, "Why agents fail")
	assert.Contains(t, text, "Evals come first")
}

func TestReader_Invalid(t *testing.T) {
	_, err := New().Read([]byte("not a zip"))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := document.NewRegistry()
	Register(reg)
	data := createDocx(t, "Hello Docx")
	assert.Contains(t, reg.Extract(document.ContentTypeDOCX, "notes.docx", data), "Hello Docx")
	assert.Contains(t, reg.Extract("", "notes.docx", data), "Hello Docx")
}
