//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides Redis checkpoint storage for pipeline threads.
//
// Layout:
//
//	<prefix>thread:<thread_id> => HASH step -> checkpoint JSON
//
// Steps are dense, so the hash length is the latest step.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-post-agent-go/graph"
)

const defaultPrefix = "postagent:"

// appendLua stores ARGV[2] under step ARGV[1] only when it follows the
// latest step. Returns 1 when stored, 0 otherwise.
var appendLua = redis.NewScript(`
local key = KEYS[1]
local step = tonumber(ARGV[1])
local ttlms = tonumber(ARGV[3])

if redis.call('HLEN', key) ~= step - 1 then
	return 0
end
redis.call('HSET', key, ARGV[1], ARGV[2])
if ttlms > 0 then
	redis.call('PEXPIRE', key, ttlms)
end
return 1
`)

// Option configures a Saver.
type Option func(*Saver)

// WithKeyPrefix sets the key prefix, "postagent:" by default.
func WithKeyPrefix(prefix string) Option {
	return func(s *Saver) {
		s.prefix = prefix
	}
}

// WithTTL expires a thread's checkpoints ttl after its last write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Saver) {
		s.ttl = ttl
	}
}

// Saver is a Redis-backed implementation of CheckpointSaver.
type Saver struct {
	client     redis.UniversalClient
	ownsClient bool
	prefix     string
	ttl        time.Duration
}

// NewSaver creates a saver on an existing client.
func NewSaver(client redis.UniversalClient, opts ...Option) (*Saver, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	s := &Saver{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open connects to addr, either host:port or a redis:// URL, and returns a
// saver owning the client.
func Open(ctx context.Context, addr string, opts ...Option) (*Saver, error) {
	var redisOpts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisOpts = parsed
	} else {
		redisOpts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s, err := NewSaver(client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

func (s *Saver) keyThread(threadID string) string {
	return s.prefix + "thread:" + threadID
}

// Put implements graph.CheckpointSaver.
func (s *Saver) Put(ctx context.Context, cp *graph.Checkpoint) error {
	if err := graph.ValidateForPut(cp); err != nil {
		return err
	}
	b, err := graph.Marshal(cp)
	if err != nil {
		return err
	}
	stored, err := appendLua.Run(ctx, s.client, []string{s.keyThread(cp.ThreadID)},
		strconv.FormatInt(cp.Step, 10), b, s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("store checkpoint: %w", err)
	}
	if stored != 1 {
		return fmt.Errorf("%w: thread %s step %d does not follow the latest step",
			graph.ErrCheckpointConflict, cp.ThreadID, cp.Step)
	}
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	key := s.keyThread(threadID)
	n, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("count checkpoints: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", graph.ErrCheckpointNotFound, threadID)
	}
	b, err := s.client.HGet(ctx, key, strconv.FormatInt(n, 10)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", graph.ErrCheckpointNotFound, threadID)
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return graph.Unmarshal(b)
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(ctx context.Context, threadID string) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	all, err := s.client.HGetAll(ctx, s.keyThread(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get checkpoints: %w", err)
	}
	out := make([]*graph.Checkpoint, 0, len(all))
	for _, v := range all {
		cp, err := graph.Unmarshal([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// DeleteThread removes all checkpoints of a thread.
func (s *Saver) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, s.keyThread(threadID)).Err(); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close closes the client when the saver opened it.
func (s *Saver) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
