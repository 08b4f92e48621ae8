//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//
// Package config loads the service configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Checkpoint drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Artifact storage drivers.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageCOS    = "cos"
)

// Config is the root configuration.
type Config struct {
	Addr           string   `yaml:"addr"`
	LogLevel       string   `yaml:"log_level"`
	CORSOrigins    []string `yaml:"cors_origins"`
	UploadPatterns []string `yaml:"upload_patterns"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	LLM        LLMConfig        `yaml:"llm"`
	Image      ImageConfig      `yaml:"image"`
	Search     SearchConfig     `yaml:"search"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// LLMConfig configures the OpenAI-compatible text model.
type LLMConfig struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// ImageConfig configures image generation. An empty key disables it.
type ImageConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// SearchConfig configures web search. An empty key disables it.
type SearchConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// StorageConfig selects where uploaded and generated files live.
type StorageConfig struct {
	Driver    string    `yaml:"driver"`
	UploadDir string    `yaml:"upload_dir"`
	COS       COSConfig `yaml:"cos"`
}

// COSConfig configures Tencent Cloud object storage.
type COSConfig struct {
	BucketURL string `yaml:"bucket_url"`
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"`
	Prefix    string `yaml:"prefix"`
}

// PipelineConfig tunes the executor and the stages.
type PipelineConfig struct {
	StageTimeout    Duration `yaml:"stage_timeout"`
	MaxSteps        int      `yaml:"max_steps"`
	Parallelism     int      `yaml:"parallelism"`
	DownloadTimeout Duration `yaml:"download_timeout"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Protocol        string `yaml:"protocol"`
	TracesEndpoint  string `yaml:"traces_endpoint"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
	ServiceName     string `yaml:"service_name"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:           ":8000",
		LogLevel:       "info",
		CORSOrigins:    []string{"http://localhost:3000"},
		UploadPatterns: []string{"*.{pdf,PDF}", "*.{docx,DOCX}", "*.{txt,md,TXT,MD}", "*.{png,jpg,jpeg,webp,gif}"},
		MaxUploadBytes: 20 << 20,
		LLM: LLMConfig{
			Model:   "gpt-4o",
			Timeout: Duration(2 * time.Minute),
		},
		Image: ImageConfig{Model: "gemini-2.5-flash-image"},
		Checkpoint: CheckpointConfig{
			Driver: DriverSQLite,
			DSN:    "checkpoints.db",
		},
		Storage: StorageConfig{
			Driver:    StorageLocal,
			UploadDir: "uploads",
		},
		Pipeline: PipelineConfig{
			StageTimeout:    Duration(5 * time.Minute),
			MaxSteps:        100,
			Parallelism:     8,
			DownloadTimeout: Duration(15 * time.Second),
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "postagent",
		},
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg. Fields absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("POSTAGENT_ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	str("LLM_MODEL", &c.LLM.Model)
	str("GEMINI_API_KEY", &c.Image.APIKey)
	str("IMAGE_MODEL", &c.Image.Model)
	str("TAVILY_API_KEY", &c.Search.APIKey)
	str("CHECKPOINT_DRIVER", &c.Checkpoint.Driver)
	str("CHECKPOINT_DSN", &c.Checkpoint.DSN)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("UPLOAD_DIR", &c.Storage.UploadDir)
	str("COS_BUCKET_URL", &c.Storage.COS.BucketURL)
	str("COS_SECRETID", &c.Storage.COS.SecretID)
	str("COS_SECRETKEY", &c.Storage.COS.SecretKey)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %w", err)
		}
		c.Telemetry.Enabled = enabled
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Checkpoint.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverRedis:
		if c.Checkpoint.DSN == "" {
			errs = append(errs, fmt.Errorf("checkpoint driver %s requires a dsn", c.Checkpoint.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint driver %q", c.Checkpoint.Driver))
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.UploadDir == "" {
			errs = append(errs, errors.New("local storage requires upload_dir"))
		}
	case StorageCOS:
		if c.Storage.COS.BucketURL == "" {
			errs = append(errs, errors.New("cos storage requires bucket_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm model is required"))
	}
	if c.Pipeline.MaxSteps < 0 || c.Pipeline.Parallelism < 0 {
		errs = append(errs, errors.New("pipeline limits must not be negative"))
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry protocol %q", c.Telemetry.Protocol))
	}
	return errors.Join(errs...)
}
