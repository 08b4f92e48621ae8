//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Input fields. They are set when a thread starts and are not rewritten by stages.
const (
	KeyUserInput        = "user_input"
	KeyContentPillar    = "content_pillar"
	KeyPostFormat       = "post_format"
	KeyUploadedFileText = "uploaded_file_text"
	KeyUploadedImages   = "uploaded_images"
	KeyPostID           = "post_id"
)

// Research stage output.
const (
	KeyResearchResults      = "research_results"
	KeyTrendingAngles       = "trending_angles"
	KeyRecommendedHookIdeas = "recommended_hook_ideas"
)

// Draft stage output.
const (
	KeyDraftContent = "draft_content"
	KeyDraftHook    = "draft_hook"
	KeyDraftCTA     = "draft_cta"
)

// Image stage output.
const (
	KeyImagePrompt           = "image_prompt"
	KeyImageURL              = "image_url"
	KeyImageGenerationStatus = "image_generation_status"
)

// Optimize stage output.
const (
	KeyOptimizedContent       = "optimized_content"
	KeyOptimizationChanges    = "optimization_changes"
	KeySuggestedHashtags      = "suggested_hashtags"
	KeyLinkedInCharCount      = "linkedin_char_count"
	KeyLinkedInWarnings       = "linkedin_warnings"
	KeyFactCheckResults       = "fact_check_results"
	KeyFactCheckPerformed     = "fact_check_performed"
	KeyRetrievedImages        = "retrieved_images"
	KeyImageSourceDecision    = "image_source_decision"
	KeyImageDecisionReasoning = "image_decision_reasoning"
	KeyOriginalImageURL       = "original_image_url"
)

// Proofread stage output.
const (
	KeyProofreadContent     = "proofread_content"
	KeyProofreadCorrections = "proofread_corrections"
	KeyToneCheckPassed      = "tone_check_passed"
)

// Control fields.
const (
	KeyCurrentStage     = "current_stage"
	KeyRevisionCount    = "revision_count"
	KeyApprovalStatus   = "approval_status"
	KeyApprovalFeedback = "approval_feedback"
	KeyError            = "error"
)

// KeyResume carries the resume Command into the suspended stage. It is
// removed from the record before the record is persisted.
const KeyResume = "__resume__"
