//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph implements the post pipeline engine: a fixed stage graph
// executed over a shared State record, with a checkpoint persisted after every
// step and a suspend/resume protocol for human approval.
package graph

import (
	"context"
	"fmt"
)

// Special stage identifiers for routing.
const (
	// End represents the virtual terminal stage.
	End = "__end__"
)

// StageFunc transforms the current state into a sparse patch. It may block on
// external I/O and must honour ctx cancellation.
type StageFunc func(ctx context.Context, state State) (Patch, error)

// ConditionalFunc selects a route key from the state.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// SummaryFunc derives the human-readable part of a stage_complete event from
// the patch that stage produced.
type SummaryFunc func(patch Patch) Summary

// InitFunc validates and normalises the initial state of a new thread.
type InitFunc func(state State) (State, error)

// CompletionFunc builds the data of the completed event from the final state.
type CompletionFunc func(state State) map[string]any

// Summary is the projection of one stage's output.
type Summary struct {
	Description string
	Details     []string
	Data        map[string]any
}

// Stage is one named transformation in the pipeline.
type Stage struct {
	Name          string
	Description   string
	Function      StageFunc
	Summarize     SummaryFunc
	interruptible bool
}

// Interruptible reports whether the stage may suspend the thread.
func (s *Stage) Interruptible() bool {
	return s.interruptible
}

// ConditionalEdge represents a conditional edge with routing logic.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string // Maps condition result to target stage.
}

// Graph is the compiled, immutable pipeline definition.
// Use StateGraph to build one.
type Graph struct {
	stages           map[string]*Stage
	order            []string
	edges            map[string]string
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
	initializer      InitFunc
	completion       CompletionFunc
}

// Stage returns a stage by name.
func (g *Graph) Stage(name string) (*Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

// Stages returns the stage names in the order they were added.
func (g *Graph) Stages() []string {
	return append([]string(nil), g.order...)
}

// EntryPoint returns the entry stage name.
func (g *Graph) EntryPoint() string {
	return g.entryPoint
}

// next selects the successor of a stage that completed with state.
func (g *Graph) next(ctx context.Context, from string, state State) (string, error) {
	if cond, ok := g.conditionalEdges[from]; ok {
		key, err := cond.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("conditional edge from %s: %w", from, err)
		}
		to, ok := cond.PathMap[key]
		if !ok {
			return "", fmt.Errorf("condition result %q from %s not found in path map", key, from)
		}
		return to, nil
	}
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("stage %s has no successor", from)
}

func (g *Graph) completionData(state State) map[string]any {
	if g.completion == nil {
		return nil
	}
	return g.completion(state)
}

func (g *Graph) initialize(state State) (State, error) {
	if state == nil {
		state = State{}
	}
	if g.initializer == nil {
		return state.Clone(), nil
	}
	return g.initializer(state.Clone())
}
