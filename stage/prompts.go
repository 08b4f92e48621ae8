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
	"fmt"
	"strings"
)

// Text limits in runes.
const (
	researchSourceLimit = 3000
	draftSourceLimit    = 5000
	optimizeSourceLimit = 3000
	imageQueryLimit     = 150
	snippetLimit        = 300
)

const researchPrompt = `You are a content strategist preparing research for a LinkedIn post by a senior AI leader.

Content pillar: {content_pillar}
Post format: {post_format}

Topic from the author:
{user_input}

{file_context}

Work through the following:
1. Find 3-5 angles on this topic that are currently getting attention in AI and enterprise circles.
2. Propose 3-5 opening hooks that suit the post format.
3. Collect the key talking points and any data points worth citing.
4. Note counterarguments or nuances the post should acknowledge.

Answer with these sections:

## Trending Angles
(numbered list)

## Hook Ideas
(numbered list)

## Key Talking Points
(bullet points)

## Nuances to Address
(bullet points)
`

const draftFooter = `
Research notes:
{research_results}

Topic from the author:
{user_input}

{revision_context}

Write the post itself with no preamble and no commentary about it.`

var formatPrompts = map[string]string{
	FormatFramework: `You write LinkedIn posts for a senior AI systems leader. Readers are AI engineers, research scientists, enterprise AI leaders and founders building agents.

Voice: clear, executive, free of hype, confident without arrogance. Keep paragraphs short and use emojis sparingly if at all.

Write a post that introduces a structured framework on agent operations, enterprise AI systems, inference-time scaling or agent evaluation:
1. Open with a strong hook of one or two sentences.
2. State the problem plainly.
3. Lay out the framework as 3-5 numbered components.
4. Give one practical takeaway.
5. Close with a question that invites discussion.

Stay under 400 words.` + draftFooter,

	FormatStrongPOV: `You write a contrarian but considered LinkedIn post for a senior leader in agent operations and enterprise AI.

Pick a common misconception in building AI agents and take it apart:
1. Open with a statement that is pointed but professional.
2. Show where the common belief breaks down.
3. Reframe the problem at the systems level.
4. Back it with one or two concrete examples.
5. Finish with an open question.

Sound confident and grounded in practice. Skip buzzwords, emojis and long paragraphs, and do not tag executives.

Stay under 300 words.` + draftFooter,

	FormatSimplification: `You turn advanced AI systems research into LinkedIn content for technical readers outside the specialty: senior engineers, product leaders and founders.

Explain the topic simply without dumbing it down:
1. Why the topic matters.
2. A simple mental model for it.
3. Where people usually get it wrong.
4. What it means in production.

Keep it sharp and under 350 words.` + draftFooter,

	FormatStory: `You write a narrative LinkedIn post for a senior AI leader.

Turn the topic into a leadership story:
1. Set the scene.
2. Build the tension.
3. Describe the turning point.
4. Share the lesson.
5. Widen it into an insight about AI systems or innovation.

Be human and reflective, a little personal but still professional. Stay under 400 words.` + draftFooter,

	FormatLeaderLens: `You write a LinkedIn post from the seat of a technical leader in enterprise AI, aimed at business leaders and hiring managers as much as researchers.

Useful themes: hiring for AI teams, evaluating agent engineers, mistakes enterprises make when buying AI, and what agent founders underestimate.

1. Open with something business leaders recognise.
2. Share an insight from leading AI teams.
3. Offer practical advice or a small framework.
4. End with a call to action or a question.

Use a leadership voice that stays accessible and light on jargon. Stay under 350 words.` + draftFooter,
}

const revisionContext = "REVISION REQUESTED. Previous feedback from reviewer:\n{feedback}\n\n" +
	"Previous draft:\n{draft}\n\nPlease revise the post addressing the feedback above."

const imagePrompt = `Write a short prompt for an image model. The image will accompany the LinkedIn post below.

The image should be professional and minimal rather than stock-photo-like, use a restrained palette of blues, grays and whites, and express the core idea abstractly.

Post:
{post_content}

Post format: {post_format}
Content pillar: {content_pillar}

Reply with the image prompt only, in under 100 words.`

const claimExtractionPrompt = `List the 2-4 most important factual claims in this LinkedIn draft that can be checked against public sources: statistics, data points, named entities and specific assertions. Reply with one claim per line and nothing else.

Draft:
{draft_content}

Content pillar: {content_pillar}`

const optimizePrompt = `You optimize LinkedIn posts for reach and engagement. Rework the draft below following these rules.

Hook
1. Mobile readers see roughly the first 210 characters before "see more". Open with a bold claim, a surprising number or a contrarian take that earns the tap.
2. Create curiosity or tension right away. Never open with "I'm excited to share".

Structure
3. Keep paragraphs to one to three sentences, break lines often and use one-sentence paragraphs for emphasis.
4. For lists use unicode symbols such as → • ✓ ▸. LinkedIn shows plain text, so never use *, - or # for formatting.
5. Stay strictly under 3000 characters. 1300-2000 characters performs best.

Emojis
6. Use at most three, placed at section starts or key points, never in clusters.

Engagement
7. End with a clear question for the comments.
8. Suggest 3-5 hashtags that are neither too niche nor too broad.

Format
9. Plain text only. No **, _, # or [text](url).

Draft:
{draft_content}

Post format: {post_format}
Content pillar: {content_pillar}

Answer with these sections:

## Optimized Post
(the full optimized post)

## Changes Made
(numbered list of changes)

## Suggested Hashtags
(one hashtag per line)
`

const factCheckSection = `

FACT-CHECK RESULTS
These claims from the draft were checked against web sources. Apply the findings in the optimized post:

{claims}

→ Correct any claim the sources contradict.
→ Soften any claim that could not be verified ("reportedly", "by some estimates").
→ Keep confirmed claims as they are.

After ## Suggested Hashtags add:

## Sources
(the source URLs that back claims in the post, one per line as: Title - URL)
`

const imageDecisionSection = `

IMAGE SELECTION
Current image: {current_image}

These images were found on the web:
{choices}

After the other sections add:

## Image Decision
Choice: generated or retrieved_N
Reasoning: one sentence explaining the choice
`

const proofreadPrompt = `You proofread executive LinkedIn posts and check their tone.

Check the post for:
1. Grammar and spelling.
2. A consistent tone: executive, clear, no hype, confident without arrogance.
3. Emojis, which should go unless they carry structure.
4. Length, which must stay under 400 words.
5. Corporate buzzwords, which should be removed.
6. A hook that earns attention.
7. A closing question that invites replies.

Post:
{optimized_content}

Answer with these sections:

## Proofread Post
(the corrected post)

## Corrections Made
(numbered list, or "No corrections needed")

## Tone Check
(PASS or FAIL with a short explanation)
`

// fill substitutes {name} placeholders. Values are inserted verbatim.
func fill(tmpl string, kv ...string) string {
	return strings.NewReplacer(placeholders(kv)...).Replace(tmpl)
}

func placeholders(kv []string) []string {
	out := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, "{"+kv[i]+"}", kv[i+1])
	}
	return out
}

// draftTemplate returns the prompt for a post format. Unknown formats fall
// back to the framework prompt.
func draftTemplate(format string) string {
	if p, ok := formatPrompts[format]; ok {
		return p
	}
	return formatPrompts[FormatFramework]
}

func buildOptimizePrompt(draft, format, pillar string, facts []FactCheck, currentImage string, candidates []downloadedImage) string {
	prompt := fill(optimizePrompt,
		"draft_content", draft,
		"post_format", format,
		"content_pillar", pillar,
	)
	if len(facts) > 0 {
		prompt += fill(factCheckSection, "claims", formatClaims(facts))
	}
	if len(candidates) > 0 {
		if currentImage == "" {
			currentImage = "none"
		}
		var sb strings.Builder
		for i, c := range candidates {
			desc := c.Description
			if desc == "" {
				desc = "no description"
			}
			fmt.Fprintf(&sb, "retrieved_%d: %s (%s)\n", i+1, desc, c.SourceURL)
		}
		prompt += fill(imageDecisionSection,
			"current_image", currentImage,
			"choices", strings.TrimRight(sb.String(), "\n"),
		)
	}
	return prompt
}

func formatClaims(facts []FactCheck) string {
	blocks := make([]string, 0, len(facts))
	for i, fc := range facts {
		var sb strings.Builder
		answer := fc.SearchAnswer
		if answer == "" {
			answer = "No answer available"
		}
		fmt.Fprintf(&sb, "Claim %d: %s\n  Search answer: %s\n", i+1, fc.Claim, answer)
		for _, src := range fc.Sources {
			fmt.Fprintf(&sb, "  Source: %s - %s\n", src.Title, src.URL)
			if src.Snippet != "" {
				fmt.Fprintf(&sb, "    Snippet: %s\n", src.Snippet)
			}
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n")
}
