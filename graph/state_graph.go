//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"errors"
	"fmt"
)

// StateGraph builds a pipeline definition.
//
//	g, err := graph.NewStateGraph().
//		AddStage("research", research).
//		AddStage("draft", draft).
//		AddEdge("research", "draft").
//		...
//		SetEntryPoint("research").
//		Compile()
type StateGraph struct {
	graph *Graph
	errs  []error
}

// StageOption configures a stage.
type StageOption func(*Stage)

// WithDescription sets the stage description used in traces.
func WithDescription(desc string) StageOption {
	return func(s *Stage) {
		s.Description = desc
	}
}

// WithSummary sets the function that projects the stage patch into an event.
func WithSummary(fn SummaryFunc) StageOption {
	return func(s *Stage) {
		s.Summarize = fn
	}
}

// WithInterrupt marks the stage as allowed to suspend the thread.
// A stage without this option that suspends fails the step.
func WithInterrupt() StageOption {
	return func(s *Stage) {
		s.interruptible = true
	}
}

// NewStateGraph creates an empty builder.
func NewStateGraph() *StateGraph {
	return &StateGraph{
		graph: &Graph{
			stages:           make(map[string]*Stage),
			edges:            make(map[string]string),
			conditionalEdges: make(map[string]*ConditionalEdge),
		},
	}
}

// AddStage adds a named stage.
func (sg *StateGraph) AddStage(name string, fn StageFunc, opts ...StageOption) *StateGraph {
	if name == "" || name == End {
		sg.errs = append(sg.errs, fmt.Errorf("invalid stage name %q", name))
		return sg
	}
	if fn == nil {
		sg.errs = append(sg.errs, fmt.Errorf("stage %s has no function", name))
		return sg
	}
	if _, dup := sg.graph.stages[name]; dup {
		sg.errs = append(sg.errs, fmt.Errorf("duplicate stage %s", name))
		return sg
	}
	s := &Stage{Name: name, Function: fn}
	for _, opt := range opts {
		opt(s)
	}
	sg.graph.stages[name] = s
	sg.graph.order = append(sg.graph.order, name)
	return sg
}

// AddEdge adds the static successor of a stage.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if _, dup := sg.graph.edges[from]; dup {
		sg.errs = append(sg.errs, fmt.Errorf("stage %s already has a successor", from))
		return sg
	}
	sg.graph.edges[from] = to
	return sg
}

// AddConditionalEdges routes from a stage by the key returned by condition.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	condition ConditionalFunc,
	pathMap map[string]string,
) *StateGraph {
	if condition == nil || len(pathMap) == 0 {
		sg.errs = append(sg.errs, fmt.Errorf("conditional edge from %s needs a condition and a path map", from))
		return sg
	}
	sg.graph.conditionalEdges[from] = &ConditionalEdge{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	}
	return sg
}

// SetEntryPoint sets the first stage.
func (sg *StateGraph) SetEntryPoint(name string) *StateGraph {
	sg.graph.entryPoint = name
	return sg
}

// SetInitializer sets the function applied to the initial state of every
// new thread. Its error rejects the run.
func (sg *StateGraph) SetInitializer(fn InitFunc) *StateGraph {
	sg.graph.initializer = fn
	return sg
}

// SetCompletion sets the builder of the completed event data.
func (sg *StateGraph) SetCompletion(fn CompletionFunc) *StateGraph {
	sg.graph.completion = fn
	return sg
}

// Compile validates the definition and returns the immutable graph.
func (sg *StateGraph) Compile() (*Graph, error) {
	if len(sg.errs) > 0 {
		return nil, errors.Join(sg.errs...)
	}
	g := sg.graph
	if g.entryPoint == "" {
		return nil, errors.New("graph must have an entry point")
	}
	if _, ok := g.stages[g.entryPoint]; !ok {
		return nil, fmt.Errorf("entry point stage %s does not exist", g.entryPoint)
	}
	exists := func(name string) bool {
		if name == End {
			return true
		}
		_, ok := g.stages[name]
		return ok
	}
	for _, name := range g.order {
		_, static := g.edges[name]
		_, cond := g.conditionalEdges[name]
		switch {
		case static && cond:
			return nil, fmt.Errorf("stage %s has both a static and a conditional successor", name)
		case !static && !cond:
			return nil, fmt.Errorf("stage %s has no successor", name)
		}
	}
	for from, to := range g.edges {
		if !exists(from) {
			return nil, fmt.Errorf("edge source %s does not exist", from)
		}
		if !exists(to) {
			return nil, fmt.Errorf("edge target %s does not exist", to)
		}
	}
	for from, ce := range g.conditionalEdges {
		if !exists(from) {
			return nil, fmt.Errorf("conditional edge source %s does not exist", from)
		}
		for key, to := range ce.PathMap {
			if !exists(to) {
				return nil, fmt.Errorf("conditional edge %s[%s] targets unknown stage %s", from, key, to)
			}
		}
	}
	if err := checkStaticCycles(g); err != nil {
		return nil, err
	}
	return g, nil
}

// checkStaticCycles rejects loops made only of static edges; a loop must
// pass through a conditional edge so that it can terminate.
func checkStaticCycles(g *Graph) error {
	for _, start := range g.order {
		seen := map[string]bool{start: true}
		cur := start
		for {
			to, ok := g.edges[cur]
			if !ok || to == End {
				break
			}
			if seen[to] {
				return fmt.Errorf("static edges form a cycle through %s", to)
			}
			seen[to] = true
			cur = to
		}
	}
	return nil
}
