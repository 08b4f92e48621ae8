//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

const uploadField = "file"

// uploadResponse describes an accepted upload. Documents carry their
// extracted text, images carry the reference to pass as uploaded_images.
type uploadResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
	Ref         string `json:"ref,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleUpload called: path=%s", r.URL.Path)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing multipart field \"file\": "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if !s.allowed(name) {
		http.Error(w, fmt.Sprintf("file type of %q is not allowed", name), http.StatusUnsupportedMediaType)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	resp := uploadResponse{Filename: name, ContentType: contentType}
	if strings.HasPrefix(contentType, "image/") {
		if s.artifacts == nil {
			http.Error(w, "image uploads are not enabled", http.StatusServiceUnavailable)
			return
		}
		ref, err := s.artifacts.Save(r.Context(), &artifact.Artifact{Data: data, MimeType: contentType})
		if err != nil {
			writeError(w, fmt.Errorf("store upload: %w", err))
			return
		}
		resp.Ref = ref
		resp.URL = artifact.ResolveURL(s.artifacts, ref)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Text = s.documents.Extract(contentType, name, data)
	writeJSON(w, http.StatusOK, resp)
}

// allowed reports whether name matches one of the upload patterns.
func (s *Server) allowed(name string) bool {
	for _, pattern := range s.uploadPatterns {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			log.Warnf("api: bad upload pattern %q: %v", pattern, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		http.NotFound(w, r)
		return
	}
	name := mux.Vars(r)["name"]
	if err := artifact.ValidateName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	art, err := s.artifacts.Load(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := art.MimeType
	if contentType == "" {
		contentType = artifact.ContentType(name)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(art.Data)
}
