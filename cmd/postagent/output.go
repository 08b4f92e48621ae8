//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

// printEvents writes each event as it arrives. A failed event becomes the
// returned error.
func printEvents(w io.Writer, events <-chan *event.Event) error {
	var failed error
	for ev := range events {
		printEvent(w, ev)
		if ev.Kind == event.KindFailed {
			failed = failedError(ev)
		}
	}
	return failed
}

func printEvent(w io.Writer, ev *event.Event) {
	switch ev.Kind {
	case event.KindStageComplete:
		fmt.Fprintf(w, "[%d] %s: %s\n", ev.Step, ev.Stage, ev.Description)
		for _, d := range ev.Details {
			fmt.Fprintf(w, "      - %s\n", d)
		}
	case event.KindSuspended:
		fmt.Fprintf(w, "[%d] waiting for review\n\n", ev.Step)
		printReview(w, ev.Payload)
		fmt.Fprintf(w, "\nresume with: postagent resume %s --status approved\n", ev.ThreadID)
		fmt.Fprintf(w, "         or: postagent resume %s --status edit_requested --feedback \"...\"\n", ev.ThreadID)
	case event.KindCompleted:
		fmt.Fprintf(w, "[%d] completed\n", ev.Step)
		if content, ok := ev.Data["final_content"].(string); ok && content != "" {
			fmt.Fprintf(w, "\n%s\n", content)
		}
	case event.KindFailed:
		msg := ""
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		fmt.Fprintf(w, "[%d] %s failed: %s\n", ev.Step, ev.Stage, msg)
	}
}

func printReview(w io.Writer, payload map[string]any) {
	p := graph.State(payload)
	content := p.GetString(graph.KeyProofreadContent)
	if content == "" {
		content = p.GetString(graph.KeyOptimizedContent)
	}
	fmt.Fprintln(w, content)
	if tags := p.GetStrings(graph.KeySuggestedHashtags); len(tags) > 0 {
		fmt.Fprintf(w, "\n%s\n", strings.Join(tags, " "))
	}
	fmt.Fprintf(w, "\nchars: %d\n", p.GetInt(graph.KeyLinkedInCharCount))
	for _, warning := range p.GetStrings(graph.KeyLinkedInWarnings) {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if url := p.GetString(graph.KeyImageURL); url != "" {
		fmt.Fprintf(w, "image: %s\n", url)
	}
}

func printStatus(w io.Writer, st *graph.Status) {
	fmt.Fprintf(w, "thread:  %s\n", st.ThreadID)
	fmt.Fprintf(w, "status:  %s\n", st.Status)
	if st.CurrentStage != "" {
		fmt.Fprintf(w, "stage:   %s\n", st.CurrentStage)
	}
	if st.Step > 0 {
		fmt.Fprintf(w, "step:    %d\n", st.Step)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
