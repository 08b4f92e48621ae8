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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-post-agent-go/artifact"
	"trpc.group/trpc-go/trpc-post-agent-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
	"trpc.group/trpc-go/trpc-post-agent-go/imagegen"
	"trpc.group/trpc-go/trpc-post-agent-go/search"
)

func newStages(t *testing.T, m *scriptedModel, opts ...Option) *Stages {
	t.Helper()
	s, err := New(m, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestResearch(t *testing.T) {
	m := newScriptedModel()
	s := newStages(t, m)
	state := graph.State{
		graph.KeyUserInput:        "agent evals",
		graph.KeyContentPillar:    "AgentOps",
		graph.KeyPostFormat:       FormatFramework,
		graph.KeyUploadedFileText: strings.Repeat("a", 3500),
	}
	patch, err := s.Research(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"Evals are the new unit tests", "Cost of agents"}, patch[graph.KeyTrendingAngles])
	assert.Equal(t, []string{"Most agents fail quietly"}, patch[graph.KeyRecommendedHookIdeas])
	assert.Equal(t, Research, patch[graph.KeyCurrentStage])
	assert.Contains(t, patch[graph.KeyResearchResults], "## Key Talking Points")

	prompt := m.last(kindResearch)
	assert.Contains(t, prompt, "Content pillar: AgentOps")
	assert.Contains(t, prompt, "Uploaded file content:\n"+strings.Repeat("a", 3000)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("a", 3001))
}

func TestResearch_CapsListsAndTolerantOfMissingSections(t *testing.T) {
	m := newScriptedModel()
	m.set(kindResearch, "## Trending Angles\n1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g")
	s := newStages(t, m)
	patch, err := s.Research(context.Background(), graph.State{graph.KeyUserInput: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, patch[graph.KeyTrendingAngles])
	assert.Equal(t, []string{}, patch[graph.KeyRecommendedHookIdeas])
}

func TestResearch_ModelFailure(t *testing.T) {
	m := newScriptedModel()
	m.fail(kindResearch, errors.New("rate limited"))
	s := newStages(t, m)
	_, err := s.Research(context.Background(), graph.State{graph.KeyUserInput: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDraft(t *testing.T) {
	tests := []struct {
		name         string
		state        graph.State
		wantInPrompt []string
		notInPrompt  []string
		wantRevision int
	}{
		{
			name:         "first draft",
			state:        graph.State{graph.KeyUserInput: "evals", graph.KeyPostFormat: FormatStory},
			wantInPrompt: []string{"leadership story", "Topic from the author:\nevals"},
			notInPrompt:  []string{"REVISION REQUESTED"},
		},
		{
			name:         "unknown format falls back to framework",
			state:        graph.State{graph.KeyUserInput: "evals", graph.KeyPostFormat: "haiku"},
			wantInPrompt: []string{"structured framework"},
		},
		{
			name: "revision",
			state: graph.State{
				graph.KeyUserInput:        "evals",
				graph.KeyDraftContent:     "old draft",
				graph.KeyApprovalFeedback: "shorter please",
				graph.KeyRevisionCount:    float64(1),
			},
			wantInPrompt: []string{
				"REVISION REQUESTED. Previous feedback from reviewer:\nshorter please\n\nPrevious draft:\nold draft",
			},
			wantRevision: 2,
		},
		{
			name:         "source material",
			state:        graph.State{graph.KeyUserInput: "evals", graph.KeyUploadedFileText: "whitepaper"},
			wantInPrompt: []string{"Source material from uploaded file:\nwhitepaper"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newScriptedModel()
			s := newStages(t, m)
			patch, err := s.Draft(context.Background(), tt.state)
			require.NoError(t, err)
			prompt := m.last(kindDraft)
			for _, want := range tt.wantInPrompt {
				assert.Contains(t, prompt, want)
			}
			for _, not := range tt.notInPrompt {
				assert.NotContains(t, prompt, not)
			}
			assert.Equal(t, tt.wantRevision, patch[graph.KeyRevisionCount])
			assert.Equal(t, "Most agent failures are silent.\nHere is why.", patch[graph.KeyDraftHook])
			assert.Equal(t, "What do you measure?", patch[graph.KeyDraftCTA])
			assert.Equal(t, Draft, patch[graph.KeyCurrentStage])
		})
	}
}

func TestHookAndCTA(t *testing.T) {
	hook, cta := hookAndCTA("\n\nOnly line\n")
	assert.Equal(t, "Only line", hook)
	assert.Empty(t, cta)

	hook, cta = hookAndCTA("Why?\nsecond\nthird?\nlast")
	assert.Equal(t, "Why?\nsecond", hook)
	assert.Equal(t, "third?", cta)
}

func TestGenerateImage(t *testing.T) {
	png := &imagegen.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}
	tests := []struct {
		name       string
		generator  imagegen.Generator
		state      graph.State
		wantStatus string
		wantURL    func(t *testing.T, url string, store artifact.Service)
		wantPrompt string
	}{
		{
			name:       "uploaded image wins",
			generator:  &fakeGenerator{img: png},
			state:      graph.State{graph.KeyUploadedImages: []any{"/api/uploads/file/a.png", "b.png"}},
			wantStatus: ImageStatusUploaded,
			wantURL: func(t *testing.T, url string, _ artifact.Service) {
				assert.Equal(t, "/api/uploads/file/a.png", url)
			},
		},
		{
			name:       "no generator",
			state:      graph.State{},
			wantStatus: ImageStatusSkippedNoKey,
			wantURL: func(t *testing.T, url string, _ artifact.Service) {
				assert.Empty(t, url)
			},
		},
		{
			name:       "generated and stored",
			generator:  &fakeGenerator{img: png},
			state:      graph.State{graph.KeyDraftContent: "post"},
			wantStatus: ImageStatusSuccess,
			wantPrompt: "abstract blue network",
			wantURL: func(t *testing.T, url string, store artifact.Service) {
				require.True(t, artifact.IsRef(url))
				art, err := store.Load(context.Background(), url)
				require.NoError(t, err)
				assert.Equal(t, png.Data, art.Data)
			},
		},
		{
			name:       "generation failure is recorded",
			generator:  &fakeGenerator{err: imagegen.ErrNoImage},
			state:      graph.State{graph.KeyDraftContent: "post"},
			wantStatus: "failed: " + imagegen.ErrNoImage.Error(),
			wantPrompt: "abstract blue network",
			wantURL: func(t *testing.T, url string, _ artifact.Service) {
				assert.Empty(t, url)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := inmemory.NewService()
			opts := []Option{WithArtifactStore(store)}
			if tt.generator != nil {
				opts = append(opts, WithImageGenerator(tt.generator))
			}
			s := newStages(t, newScriptedModel(), opts...)
			patch, err := s.GenerateImage(context.Background(), tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, patch[graph.KeyImageGenerationStatus])
			assert.Equal(t, tt.wantPrompt, patch[graph.KeyImagePrompt])
			assert.Equal(t, GenerateImage, patch[graph.KeyCurrentStage])
			tt.wantURL(t, patch.GetString(graph.KeyImageURL), store)
		})
	}
}

func TestOptimize_WithoutSearcher(t *testing.T) {
	m := newScriptedModel()
	s := newStages(t, m)
	state := graph.State{
		graph.KeyDraftContent:          "draft text",
		graph.KeyImageGenerationStatus: ImageStatusSkippedNoKey,
		graph.KeyUploadedFileText:      "source doc",
	}
	patch, err := s.Optimize(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "Most agent failures are silent.\n\nWhat do you measure?", patch[graph.KeyOptimizedContent])
	assert.Equal(t, []string{"Sharper hook", "Shorter paragraphs"}, patch[graph.KeyOptimizationChanges])
	assert.Equal(t, []string{"#AI", "#AgentOps"}, patch[graph.KeySuggestedHashtags])
	assert.Equal(t, 53, patch[graph.KeyLinkedInCharCount])
	assert.Equal(t, false, patch[graph.KeyFactCheckPerformed])
	assert.Equal(t, []FactCheck{}, patch[graph.KeyFactCheckResults])
	assert.Equal(t, ImageSourceGenerated, patch[graph.KeyImageSourceDecision])
	assert.NotContains(t, patch, graph.KeyImageURL)

	prompt := m.last(kindOptimize)
	assert.NotContains(t, prompt, "FACT-CHECK RESULTS")
	assert.NotContains(t, prompt, "IMAGE SELECTION")
	assert.Contains(t, prompt, "Original source material (verify facts against this):\nsource doc")
	assert.Zero(t, m.calls(kindClaims))
}

func TestOptimize_FallsBackToDraft(t *testing.T) {
	m := newScriptedModel()
	m.set(kindOptimize, "I could not follow the format.")
	s := newStages(t, m)
	patch, err := s.Optimize(context.Background(), graph.State{
		graph.KeyDraftContent:          "draft text",
		graph.KeyImageGenerationStatus: ImageStatusSkippedNoKey,
		graph.KeyUploadedImages:        []string{"x.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "draft text", patch[graph.KeyOptimizedContent])
	assert.Equal(t, []string{}, patch[graph.KeyOptimizationChanges])
	assert.Equal(t, ImageSourceUploaded, patch[graph.KeyImageSourceDecision])
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chart.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("chart-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOptimize_WebResearchAndRetrievedImage(t *testing.T) {
	srv := imageServer(t)
	m := newScriptedModel()
	m.set(kindOptimize, "## Optimized Post\nFixed post?\n## Changes Made\n1. Corrected a statistic\n"+
		"## Suggested Hashtags\n#AI\n## Sources\nReport - https://example.com/report\n"+
		"## Image Decision\nChoice: retrieved_1\nReasoning: The chart supports the claim.\n")
	searcher := &fakeSearcher{images: []search.Image{
		{URL: srv.URL + "/page.html", Description: "not an image"},
		{URL: srv.URL + "/chart.png", Description: "adoption chart"},
		{URL: ""},
		{URL: srv.URL + "/missing.png"},
	}}
	store := inmemory.NewService()
	s := newStages(t, m, WithSearcher(searcher), WithArtifactStore(store))

	patch, err := s.Optimize(context.Background(), graph.State{
		graph.KeyDraftContent:          "70% of agents fail",
		graph.KeyContentPillar:         "AgentOps",
		graph.KeyImageURL:              "artifact://generated.png",
		graph.KeyImageGenerationStatus: ImageStatusSuccess,
	})
	require.NoError(t, err)

	facts, ok := patch[graph.KeyFactCheckResults].([]FactCheck)
	require.True(t, ok)
	require.Len(t, facts, 2)
	assert.Equal(t, "70% of agents fail in production", facts[0].Claim)
	assert.Equal(t, "answer for 70% of agents fail in production", facts[0].SearchAnswer)
	assert.Len(t, facts[0].Sources[0].Snippet, snippetLimit)
	assert.True(t, facts[0].SourcesInPost)
	assert.Equal(t, true, patch[graph.KeyFactCheckPerformed])

	// Only the first three hits are candidates and empty URLs are dropped.
	assert.Equal(t, []RetrievedImage{
		{URL: srv.URL + "/page.html", Description: "not an image"},
		{URL: srv.URL + "/chart.png", Description: "adoption chart"},
	}, patch[graph.KeyRetrievedImages])

	ref := patch.GetString(graph.KeyImageURL)
	require.True(t, artifact.IsRef(ref))
	art, err := store.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("chart-bytes"), art.Data)
	assert.Equal(t, ImageStatusRetrieved, patch[graph.KeyImageGenerationStatus])
	assert.Equal(t, ImageSourceRetrieved, patch[graph.KeyImageSourceDecision])
	assert.Equal(t, "artifact://generated.png", patch[graph.KeyOriginalImageURL])
	assert.Equal(t, "The chart supports the claim.", patch[graph.KeyImageDecisionReasoning])

	prompt := m.last(kindOptimize)
	assert.Contains(t, prompt, "Claim 1: 70% of agents fail in production")
	assert.Contains(t, prompt, "Current image: AI-generated image (success)")
	assert.Contains(t, prompt, "retrieved_1: adoption chart ("+srv.URL+"/chart.png)")
	assert.NotContains(t, prompt, "retrieved_2")

	var imageQuery *search.Request
	for _, req := range searcher.requests {
		if req.IncludeImages {
			imageQuery = req
		} else {
			assert.Equal(t, search.DepthAdvanced, req.Depth)
			assert.Equal(t, 3, req.MaxResults)
			assert.True(t, req.IncludeAnswer)
		}
	}
	require.NotNil(t, imageQuery)
	assert.Equal(t, "70% of agents fail AgentOps data chart infographic statistics", imageQuery.Query)
	assert.Equal(t, 5, imageQuery.MaxResults)
}

func TestOptimize_SubtaskFailuresAreAbsorbed(t *testing.T) {
	m := newScriptedModel()
	searcher := &fakeSearcher{failOn: func(req *search.Request) bool {
		return req.IncludeImages || strings.HasPrefix(req.Query, "GPT-4")
	}}
	s := newStages(t, m, WithSearcher(searcher))
	patch, err := s.Optimize(context.Background(), graph.State{graph.KeyDraftContent: "draft"})
	require.NoError(t, err)

	facts := patch[graph.KeyFactCheckResults].([]FactCheck)
	require.Len(t, facts, 1)
	assert.Equal(t, "70% of agents fail in production", facts[0].Claim)
	assert.False(t, facts[0].SourcesInPost)
	assert.Equal(t, []RetrievedImage{}, patch[graph.KeyRetrievedImages])
	assert.Equal(t, ImageSourceGenerated, patch[graph.KeyImageSourceDecision])
}

func TestOptimize_ClaimExtractionFailure(t *testing.T) {
	m := newScriptedModel()
	m.fail(kindClaims, errors.New("model down"))
	s := newStages(t, m, WithSearcher(&fakeSearcher{}))
	patch, err := s.Optimize(context.Background(), graph.State{graph.KeyDraftContent: "draft"})
	require.NoError(t, err)
	assert.Equal(t, false, patch[graph.KeyFactCheckPerformed])
	assert.NotContains(t, m.last(kindOptimize), "FACT-CHECK RESULTS")
}

func TestOptimize_InvalidImageChoiceKeepsImage(t *testing.T) {
	srv := imageServer(t)
	m := newScriptedModel()
	m.set(kindOptimize, "## Optimized Post\npost\n## Image Decision\nChoice: retrieved_7\nReasoning: r")
	searcher := &fakeSearcher{images: []search.Image{{URL: srv.URL + "/chart.png"}}}
	s := newStages(t, m, WithSearcher(searcher))
	patch, err := s.Optimize(context.Background(), graph.State{
		graph.KeyDraftContent: "draft",
		graph.KeyImageURL:     "artifact://gen.png",
	})
	require.NoError(t, err)
	assert.NotContains(t, patch, graph.KeyImageURL)
	assert.Equal(t, ImageSourceGenerated, patch[graph.KeyImageSourceDecision])
}

func TestProofread(t *testing.T) {
	tests := []struct {
		name            string
		reply           string
		wantContent     string
		wantCorrections []string
		wantTone        bool
	}{
		{
			name:            "full response",
			reply:           newScriptedModel().replies[kindProofread],
			wantContent:     "Most agent failures are silent.\n\nWhat do you measure?",
			wantCorrections: []string{"Fixed comma"},
			wantTone:        true,
		},
		{
			name:            "tone fail",
			reply:           "## Proofread Post\nfixed\n## Corrections Made\nNo corrections needed\n## Tone Check\nfail: too salesy",
			wantContent:     "fixed",
			wantCorrections: []string{"No corrections needed"},
			wantTone:        false,
		},
		{
			name:            "unstructured reply falls back",
			reply:           "looks fine",
			wantContent:     "optimized **text**",
			wantCorrections: []string{},
			wantTone:        true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newScriptedModel()
			m.set(kindProofread, tt.reply)
			s := newStages(t, m)
			patch, err := s.Proofread(context.Background(), graph.State{graph.KeyOptimizedContent: "optimized **text**"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, patch[graph.KeyProofreadContent])
			assert.Equal(t, tt.wantCorrections, patch[graph.KeyProofreadCorrections])
			assert.Equal(t, tt.wantTone, patch[graph.KeyToneCheckPassed])
			assert.NotNil(t, patch[graph.KeyLinkedInWarnings])
		})
	}
}

func TestProofread_RevalidatesFinalText(t *testing.T) {
	m := newScriptedModel()
	m.set(kindProofread, "## Proofread Post\n**bold** claim\n## Tone Check\nPASS")
	s := newStages(t, m)
	patch, err := s.Proofread(context.Background(), graph.State{graph.KeyOptimizedContent: "x"})
	require.NoError(t, err)
	assert.Equal(t, 14, patch[graph.KeyLinkedInCharCount])
	assert.Contains(t, patch[graph.KeyLinkedInWarnings], "Markdown formatting detected, LinkedIn renders plain text only")
}

func TestApprove(t *testing.T) {
	s := newStages(t, newScriptedModel())
	state := graph.State{
		graph.KeyProofreadContent: "final",
		graph.KeyRevisionCount:    float64(2),
		graph.KeyFactCheckResults: []any{map[string]any{"claim": "c", "search_answer": "a"}},
	}

	_, err := s.Approve(context.Background(), state)
	ie, ok := graph.GetInterruptError(err)
	require.True(t, ok)
	assert.Len(t, ie.Payload, 15)
	assert.Equal(t, "final", ie.Payload[graph.KeyProofreadContent])
	assert.Equal(t, 2, ie.Payload[graph.KeyRevisionCount])
	assert.Equal(t, true, ie.Payload[graph.KeyToneCheckPassed])
	assert.Equal(t, []FactCheck{{Claim: "c", SearchAnswer: "a"}}, ie.Payload[graph.KeyFactCheckResults])
	assert.Equal(t, []string{}, ie.Payload[graph.KeySuggestedHashtags])

	resumed := state.Apply(graph.Patch{graph.KeyResume: graph.Approve()})
	patch, err := s.Approve(context.Background(), resumed)
	require.NoError(t, err)
	assert.Equal(t, graph.Patch{
		graph.KeyApprovalStatus:   graph.DecisionApproved,
		graph.KeyApprovalFeedback: "",
		graph.KeyCurrentStage:     "approved",
	}, patch)

	resumed = state.Apply(graph.Patch{graph.KeyResume: graph.RequestEdit("more data")})
	patch, err = s.Approve(context.Background(), resumed)
	require.NoError(t, err)
	assert.Equal(t, graph.DecisionEditRequested, patch[graph.KeyApprovalStatus])
	assert.Equal(t, "more data", patch[graph.KeyApprovalFeedback])
	assert.Equal(t, "revision", patch[graph.KeyCurrentStage])
}

func TestRouteAfterApproval(t *testing.T) {
	route, err := RouteAfterApproval(context.Background(), graph.State{graph.KeyApprovalStatus: graph.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, graph.End, route)

	route, err = RouteAfterApproval(context.Background(), graph.State{graph.KeyApprovalStatus: graph.DecisionEditRequested})
	require.NoError(t, err)
	assert.Equal(t, Draft, route)
}
