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
	"encoding/json"
	"fmt"
	"strconv"
)

// State is the record that flows through every stage of a thread.
// Fields may be absent; readers use the typed accessors, which accept both
// in-process values and the shapes produced by a JSON round trip through a
// checkpoint store.
type State map[string]any

// Patch is the sparse update a stage returns.
type Patch = State

// Clone creates a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Apply returns a new state with every key of patch written over s.
// Values are replaced as a whole, nested values are never merged.
func (s State) Apply(patch Patch) State {
	next := s.Clone()
	for k, v := range patch {
		next[k] = v
	}
	return next
}

// without returns a copy of the state lacking key.
func (s State) without(key string) State {
	if _, ok := s[key]; !ok {
		return s
	}
	next := s.Clone()
	delete(next, key)
	return next
}

// GetString returns the string stored under key, or "".
func (s State) GetString(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// GetInt returns the integer stored under key, or 0.
func (s State) GetInt(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// GetBool returns the boolean stored under key. def is returned when the
// key is absent or holds a non-boolean value.
func (s State) GetBool(key string, def bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return def
}

// GetStrings returns the string list stored under key.
func (s State) GetStrings(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Has reports whether key holds a non-nil value.
func (s State) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Decode converts the value stored under key into out through JSON. It is
// used for structured fields such as fact-check results. A missing key
// leaves out untouched.
func (s State) Decode(key string, out any) error {
	v, ok := s[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %s: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode field %s: %w", key, err)
	}
	return nil
}
