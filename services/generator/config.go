// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for the generator service.
//
// # Description
//
// Values are resolved in three layers: compiled defaults, then an
// optional YAML file, then environment variable overrides. The
// environment always wins so container deployments can tune a shared
// config file per instance.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Provider selects the default LLM adapter by registry name.
	Provider string `yaml:"provider"`

	// OTelEndpoint is the OTLP gRPC collector address. Empty disables
	// trace export.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// WorkspaceRoot is the parent directory for test workspaces.
	WorkspaceRoot string `yaml:"workspace_root"`

	// MaxFileLines caps generated file length, in lines.
	MaxFileLines int `yaml:"max_file_lines"`

	// TestTimeoutSeconds bounds each test framework invocation.
	TestTimeoutSeconds int `yaml:"test_timeout_seconds"`

	// MaxRetries is the retry budget for transient provider failures.
	MaxRetries int `yaml:"max_retries"`

	// KeepWorkspaces retains test workspaces on disk for debugging.
	KeepWorkspaces bool `yaml:"keep_workspaces"`

	// RateLimitRPS throttles provider calls. Zero disables throttling.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// GinMode is the gin framework mode (debug, release, test).
	GinMode string `yaml:"gin_mode"`

	// EnableMetrics exposes the Prometheus /metrics endpoint.
	EnableMetrics bool `yaml:"enable_metrics"`
}

// DefaultServiceConfig returns the compiled defaults.
func DefaultServiceConfig() Config {
	return Config{
		Port:               8093,
		Provider:           "openai",
		WorkspaceRoot:      os.TempDir(),
		MaxFileLines:       10000,
		TestTimeoutSeconds: 60,
		MaxRetries:         3,
		GinMode:            "release",
		EnableMetrics:      true,
	}
}

// LoadConfig resolves the service configuration.
//
// # Inputs
//   - path: YAML config file. Empty string skips the file layer; a named
//     file that does not exist is an error.
//
// # Outputs
//   - Config: fully resolved configuration.
//   - error: unreadable or malformed config file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultServiceConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides applies GENERATOR_* environment variables on top of
// the file and default layers.
func applyEnvOverrides(cfg *Config) {
	cfg.Port = envInt("GENERATOR_PORT", cfg.Port)
	cfg.Provider = envString("GENERATOR_PROVIDER", cfg.Provider)
	cfg.OTelEndpoint = envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.WorkspaceRoot = envString("GENERATOR_WORKSPACE_ROOT", cfg.WorkspaceRoot)
	cfg.MaxFileLines = envInt("GENERATOR_MAX_FILE_LINES", cfg.MaxFileLines)
	cfg.TestTimeoutSeconds = envInt("GENERATOR_TEST_TIMEOUT_SECONDS", cfg.TestTimeoutSeconds)
	cfg.MaxRetries = envInt("GENERATOR_MAX_RETRIES", cfg.MaxRetries)
	cfg.KeepWorkspaces = envBool("GENERATOR_KEEP_WORKSPACES", cfg.KeepWorkspaces)
	cfg.RateLimitRPS = envFloat("GENERATOR_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.GinMode = envString("GIN_MODE", cfg.GinMode)
	cfg.EnableMetrics = envBool("GENERATOR_ENABLE_METRICS", cfg.EnableMetrics)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
