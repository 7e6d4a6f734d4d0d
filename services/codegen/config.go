// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import "time"

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the tunable parameters for the generation pipeline.
type Config struct {
	// Provider is the default registry name used when runs do not select
	// one explicitly.
	Provider string

	// WorkspaceRoot is the parent directory for run workspaces. Empty
	// means the system temp directory.
	WorkspaceRoot string

	// KeepWorkspaces disables workspace teardown after each run.
	KeepWorkspaces bool

	// MaxFileLines bounds any single generated file written to disk.
	MaxFileLines int

	// TestTimeout bounds the execution of a single test file.
	TestTimeout time.Duration

	// MaxTestOutput bounds captured stdout/stderr per test execution.
	MaxTestOutput int

	// MaxRetries is the number of additional provider attempts after the
	// first for retryable failures.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff between retries.
	RetryBaseDelay time.Duration

	// ReviewChunkSize bounds the characters sent per review chunk.
	ReviewChunkSize int

	// ReviewChunkOverlap is the character overlap between review chunks.
	ReviewChunkOverlap int
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:           "openai",
		MaxFileLines:       10000,
		TestTimeout:        60 * time.Second,
		MaxTestOutput:      1 << 20,
		MaxRetries:         3,
		RetryBaseDelay:     500 * time.Millisecond,
		ReviewChunkSize:    6000,
		ReviewChunkOverlap: 200,
	}
}

// NewConfig builds a Config from defaults plus options, then clamps
// out-of-range values back into safe bounds.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Validate()
	return cfg
}

// Validate clamps out-of-range values to the nearest safe bound rather
// than failing, so a partially bad config still yields a usable pipeline.
func (c *Config) Validate() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.MaxFileLines <= 0 || c.MaxFileLines > 10000 {
		c.MaxFileLines = 10000
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = 60 * time.Second
	}
	if c.TestTimeout > 10*time.Minute {
		c.TestTimeout = 10 * time.Minute
	}
	if c.MaxTestOutput <= 0 {
		c.MaxTestOutput = 1 << 20
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.ReviewChunkSize <= 0 {
		c.ReviewChunkSize = 6000
	}
	if c.ReviewChunkOverlap < 0 || c.ReviewChunkOverlap >= c.ReviewChunkSize {
		c.ReviewChunkOverlap = 200
	}
}

// WithProvider sets the default provider name.
func WithProvider(name string) Option {
	return func(c *Config) { c.Provider = name }
}

// WithWorkspaceRoot sets the parent directory for run workspaces.
func WithWorkspaceRoot(dir string) Option {
	return func(c *Config) { c.WorkspaceRoot = dir }
}

// WithKeepWorkspaces disables workspace teardown, for debugging runs.
func WithKeepWorkspaces(keep bool) Option {
	return func(c *Config) { c.KeepWorkspaces = keep }
}

// WithMaxFileLines bounds generated file sizes.
func WithMaxFileLines(n int) Option {
	return func(c *Config) { c.MaxFileLines = n }
}

// WithTestTimeout bounds single test file execution.
func WithTestTimeout(d time.Duration) Option {
	return func(c *Config) { c.TestTimeout = d }
}

// WithMaxRetries sets the retry budget for retryable provider failures.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithRetryBaseDelay seeds the exponential backoff.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryBaseDelay = d }
}
