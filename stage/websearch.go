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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
	"trpc.group/trpc-go/trpc-post-agent-go/model"
	"trpc.group/trpc-go/trpc-post-agent-go/search"
)

const (
	maxClaims          = 4
	claimSearchResults = 3
	imageSearchResults = 5
	maxImageCandidates = 3
	imageQuerySuffix   = "data chart infographic statistics"
)

var claimGeneration = model.Config(300, 0.7)

// accepted image types for web downloads.
var downloadTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// Source is a web page backing a fact-checked claim.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// FactCheck is one claim checked against the web.
type FactCheck struct {
	Claim         string   `json:"claim"`
	SearchAnswer  string   `json:"search_answer"`
	Sources       []Source `json:"sources"`
	SourcesInPost bool     `json:"sources_in_post,omitempty"`
}

// RetrievedImage is an image candidate found by web search.
type RetrievedImage struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

type downloadedImage struct {
	Ref         string
	SourceURL   string
	Description string
}

type webResearch struct {
	facts      []FactCheck
	performed  bool
	candidates []RetrievedImage
	downloaded []downloadedImage
}

// webResearch runs fact-checking and image search side by side, then downloads
// the image candidates. Failures only shrink the result.
func (s *Stages) webResearch(ctx context.Context, draft, pillar string) webResearch {
	var (
		res webResearch
		wg  sync.WaitGroup
	)
	wg.Add(2)
	s.submit(ctx, subtaskFactCheck, &wg, func() {
		res.facts, res.performed = s.factCheck(ctx, draft, pillar)
	})
	s.submit(ctx, subtaskImageSearch, &wg, func() {
		res.candidates = s.searchImages(ctx, draft, pillar)
	})
	wg.Wait()
	res.downloaded = s.downloadImages(ctx, res.candidates)
	return res
}

// submit runs task on the pool. A rejected submission counts as a failed
// subtask.
func (s *Stages) submit(ctx context.Context, subtask string, wg *sync.WaitGroup, task func()) {
	err := s.pool.Submit(func() {
		defer wg.Done()
		task()
	})
	if err != nil {
		wg.Done()
		s.subtaskFailed(ctx, subtask, fmt.Errorf("submit: %w", err))
	}
}

func (s *Stages) subtaskFailed(ctx context.Context, subtask string, err error) {
	log.Warnf("stage: %s failed: %v", subtask, err)
	s.metrics.RecordSubtaskFailure(ctx, subtask)
}

func (s *Stages) factCheck(ctx context.Context, draft, pillar string) ([]FactCheck, bool) {
	text, err := model.Prompt(ctx, s.model, fill(claimExtractionPrompt,
		"draft_content", draft,
		"content_pillar", pillar,
	), claimGeneration)
	if err != nil {
		s.subtaskFailed(ctx, subtaskFactCheck, fmt.Errorf("extract claims: %w", err))
		return nil, false
	}
	claims := limit(splitLines(text, ""), maxClaims)
	if len(claims) == 0 {
		return nil, false
	}
	checked := make([]FactCheck, 0, len(claims))
	for _, claim := range claims {
		rsp, err := s.searcher.Search(ctx, &search.Request{
			Query:         claim,
			Depth:         search.DepthAdvanced,
			MaxResults:    claimSearchResults,
			IncludeAnswer: true,
		})
		if err != nil {
			s.subtaskFailed(ctx, subtaskFactCheck, fmt.Errorf("search claim %q: %w", truncate(claim, 50), err))
			continue
		}
		fc := FactCheck{Claim: claim, SearchAnswer: rsp.Answer, Sources: make([]Source, 0, len(rsp.Results))}
		for _, r := range rsp.Results {
			fc.Sources = append(fc.Sources, Source{
				Title:   r.Title,
				URL:     r.URL,
				Snippet: truncate(r.Content, snippetLimit),
			})
		}
		checked = append(checked, fc)
	}
	return checked, true
}

func (s *Stages) searchImages(ctx context.Context, draft, pillar string) []RetrievedImage {
	query := strings.Join([]string{truncate(draft, imageQueryLimit), pillar, imageQuerySuffix}, " ")
	rsp, err := s.searcher.Search(ctx, &search.Request{
		Query:         query,
		MaxResults:    imageSearchResults,
		IncludeImages: true,
	})
	if err != nil {
		s.subtaskFailed(ctx, subtaskImageSearch, err)
		return nil
	}
	var out []RetrievedImage
	for _, img := range limit(rsp.Images, maxImageCandidates) {
		if img.URL == "" {
			continue
		}
		out = append(out, RetrievedImage{URL: img.URL, Description: img.Description})
	}
	return out
}

// downloadImages fetches candidates in parallel and keeps the successful
// ones in candidate order.
func (s *Stages) downloadImages(ctx context.Context, candidates []RetrievedImage) []downloadedImage {
	refs := make([]string, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		i, c := i, c
		wg.Add(1)
		s.submit(ctx, subtaskImageDownload, &wg, func() {
			ref, err := s.download(ctx, c.URL)
			if err != nil {
				s.subtaskFailed(ctx, subtaskImageDownload, fmt.Errorf("%s: %w", c.URL, err))
				return
			}
			refs[i] = ref
		})
	}
	wg.Wait()
	var out []downloadedImage
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		out = append(out, downloadedImage{
			Ref:         ref,
			SourceURL:   candidates[i].URL,
			Description: candidates[i].Description,
		})
	}
	return out
}

func (s *Stages) download(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	rsp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", rsp.StatusCode)
	}
	mimeType := matchImageType(rsp.Header.Get("Content-Type"))
	if mimeType == "" {
		return "", fmt.Errorf("invalid content type: %q", rsp.Header.Get("Content-Type"))
	}
	data, err := io.ReadAll(io.LimitReader(rsp.Body, s.maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", s.maxImageBytes)
	}
	return s.artifacts.Save(ctx, &artifact.Artifact{Data: data, MimeType: mimeType})
}

func matchImageType(contentType string) string {
	for _, t := range downloadTypes {
		if strings.Contains(contentType, t) {
			return t
		}
	}
	return ""
}
