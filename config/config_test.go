//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverDefaults(t *testing.T) {
	cfg := Default()
	data := []byte(`
addr: ":9000"
cors_origins: [https://app.example.com]
llm:
  model: gpt-4o-mini
  timeout: 30s
checkpoint:
  driver: postgres
  dsn: postgres://u:p@localhost/db
pipeline:
  stage_timeout: 90s
  parallelism: 4
`)
	require.NoError(t, Parse(data, cfg))
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout.Duration())
	assert.Equal(t, DriverPostgres, cfg.Checkpoint.Driver)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.StageTimeout.Duration())
	assert.Equal(t, 4, cfg.Pipeline.Parallelism)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, cfg.Pipeline.MaxSteps)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	require.NoError(t, cfg.Validate())
}

func TestParse_BadDuration(t *testing.T) {
	err := Parse([]byte("llm:\n  timeout: soon\n"), Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duration "soon"`)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"POSTAGENT_ADDR":    ":7000",
		"OPENAI_API_KEY":    "sk-test",
		"TAVILY_API_KEY":    "tv-test",
		"GEMINI_API_KEY":    "",
		"CHECKPOINT_DRIVER": "redis",
		"CHECKPOINT_DSN":    "redis://localhost:6379/0",
		"CORS_ORIGINS":      "http://a.test, http://b.test ,",
		"OTEL_ENABLED":      "true",
		"COS_BUCKET_URL":    "https://bucket.cos.ap-guangzhou.myqcloud.com",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "tv-test", cfg.Search.APIKey)
	assert.Empty(t, cfg.Image.APIKey)
	assert.Equal(t, DriverRedis, cfg.Checkpoint.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "https://bucket.cos.ap-guangzhou.myqcloud.com", cfg.Storage.COS.BucketURL)

	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "OTEL_ENABLED" {
			return "maybe", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory needs no dsn", mutate: func(c *Config) { c.Checkpoint = CheckpointConfig{Driver: DriverMemory} }},
		{name: "unknown driver", mutate: func(c *Config) { c.Checkpoint.Driver = "mongo" }, wantErr: `unknown checkpoint driver "mongo"`},
		{name: "missing dsn", mutate: func(c *Config) { c.Checkpoint.DSN = "" }, wantErr: "requires a dsn"},
		{name: "cos without bucket", mutate: func(c *Config) { c.Storage.Driver = StorageCOS }, wantErr: "requires bucket_url"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "s3" }, wantErr: `unknown storage driver "s3"`},
		{name: "no model", mutate: func(c *Config) { c.LLM.Model = "" }, wantErr: "llm model is required"},
		{name: "bad protocol", mutate: func(c *Config) { c.Telemetry.Protocol = "udp" }, wantErr: "unknown telemetry protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checkpoint:\n  driver: memory\n"), 0o600))
	t.Setenv("LLM_MODEL", "local-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Checkpoint.Driver)
	assert.Equal(t, "local-model", cfg.LLM.Model)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
