//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact stores the binary files a post refers to: uploaded
// images, generated images and images downloaded from the web.
//
// The pipeline state never holds file paths or URLs of stored files. It
// holds references of the form "artifact://<name>", which a Service maps to
// a URL when events leave the process.
package artifact

import (
	"context"
	"errors"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// RefScheme prefixes stored artifact references.
const RefScheme = "artifact://"

// ErrNotFound is returned when no artifact has the requested name.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidName is returned for names that could escape the store.
var ErrInvalidName = errors.New("invalid artifact name")

// Artifact is a stored file.
type Artifact struct {
	// Data contains the raw bytes (required).
	Data []byte `json:"data,omitempty"`
	// MimeType is the IANA standard MIME type of the data (required).
	MimeType string `json:"mime_type,omitempty"`
	// Name is the object name. Save generates one when empty.
	Name string `json:"name,omitempty"`
}

// Service is an artifact store.
type Service interface {
	// Save stores art and returns its reference.
	Save(ctx context.Context, art *Artifact) (string, error)
	// Load returns the artifact stored under a name or reference.
	Load(ctx context.Context, name string) (*Artifact, error)
	// Delete removes an artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, name string) error
	// URL returns where clients can fetch the artifact.
	URL(name string) string
}

// Ref returns the reference of a stored name.
func Ref(name string) string {
	return RefScheme + name
}

// ParseRef returns the name of a reference. Plain names are accepted too.
func ParseRef(ref string) (string, bool) {
	name := strings.TrimPrefix(ref, RefScheme)
	if ValidateName(name) != nil {
		return "", false
	}
	return name, true
}

// IsRef reports whether s is an artifact reference.
func IsRef(s string) bool {
	_, ok := ParseRef(s)
	return ok && strings.HasPrefix(s, RefScheme)
}

// ResolveURL maps a reference to its URL. Anything else, such as an
// external URL, is returned unchanged.
func ResolveURL(svc Service, s string) string {
	if svc == nil || !IsRef(s) {
		return s
	}
	name, _ := ParseRef(s)
	return svc.URL(name)
}

// ValidateName rejects empty names and names containing path elements.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}

// NewName returns a fresh object name with an extension for mimeType.
func NewName(mimeType string) string {
	return uuid.New().String() + Extension(mimeType)
}

// Extension returns the file extension for a MIME type.
func Extension(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = mimeType
	}
	switch mt {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ContentType guesses the MIME type of a stored name from its extension.
func ContentType(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(name[i:]); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// PrepareName returns the name to store art under.
func PrepareName(art *Artifact) (string, error) {
	if art == nil {
		return "", errors.New("artifact is nil")
	}
	if art.Name == "" {
		return NewName(art.MimeType), nil
	}
	if err := ValidateName(art.Name); err != nil {
		return "", err
	}
	return art.Name, nil
}
