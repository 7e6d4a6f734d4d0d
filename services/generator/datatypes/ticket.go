// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire-level data model shared by the
// generation pipeline, the LLM adapters, and the HTTP handlers.
package datatypes

import (
	"fmt"
	"time"

	"github.com/AleutianAI/ticketsmith/pkg/validation"
)

// =============================================================================
// TICKET MODEL
// =============================================================================

// IssueType classifies a ticket.
type IssueType string

const (
	IssueTask    IssueType = "Task"
	IssueStory   IssueType = "Story"
	IssueBug     IssueType = "Bug"
	IssueEpic    IssueType = "Epic"
	IssueSubtask IssueType = "Sub-task"
)

// Priority is the ticket priority level.
type Priority string

const (
	PriorityLowest  Priority = "Lowest"
	PriorityLow     Priority = "Low"
	PriorityMedium  Priority = "Medium"
	PriorityHigh    Priority = "High"
	PriorityHighest Priority = "Highest"
)

// TicketData is the immutable work-item record driving one generation run.
type TicketData struct {
	// Key is the external ticket identifier (e.g., "PROJ-123").
	Key string `json:"key" binding:"required"`

	// Summary is the ticket title.
	Summary string `json:"summary" binding:"required"`

	// Description is the detailed ticket body, may be empty.
	Description string `json:"description,omitempty"`

	IssueType IssueType `json:"issue_type,omitempty"`
	Priority  Priority  `json:"priority,omitempty"`
	Status    string    `json:"status,omitempty"`
	Assignee  string    `json:"assignee,omitempty"`
	Reporter  string    `json:"reporter,omitempty"`

	Labels     []string `json:"labels,omitempty"`
	Components []string `json:"components,omitempty"`
}

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// GenerationOptions configures one generation run. Zero values are filled
// in by ApplyDefaults before the pipeline starts.
type GenerationOptions struct {
	// GenerateTests requests unit test generation for each source file.
	GenerateTests bool `json:"generate_tests"`

	// CodeStyle is the target programming language (e.g., "typescript").
	CodeStyle string `json:"code_style,omitempty"`

	// Framework is the application framework (e.g., "react").
	Framework string `json:"framework,omitempty"`

	// TestFramework is the test harness to generate for and execute with.
	TestFramework string `json:"test_framework,omitempty"`

	// IncludeDocumentation requests a markdown doc per source file.
	IncludeDocumentation bool `json:"include_documentation"`

	// MaxFileSize is the maximum number of lines per generated file.
	MaxFileSize int `json:"max_file_size,omitempty"`

	ArchitecturePattern string `json:"architecture_pattern,omitempty"`
	DatabaseType        string `json:"database_type,omitempty"`
	APIStyle            string `json:"api_style,omitempty"`
}

// Defaults mirroring the product documentation.
const (
	DefaultCodeStyle     = "typescript"
	DefaultFramework     = "react"
	DefaultTestFramework = "jest"
	DefaultMaxFileSize   = 1000

	// MaxFileSizeCeiling is the hard upper bound on per-file line limits.
	MaxFileSizeCeiling = 10000
)

// SupportedLanguages are the code styles the pipeline accepts.
var SupportedLanguages = []string{"typescript", "javascript", "python", "java", "csharp", "go"}

// SupportedTestFrameworks are the test harnesses the runner knows.
var SupportedTestFrameworks = []string{"jest", "vitest", "pytest", "junit", "nunit", "go"}

// ApplyDefaults fills unset option fields with the documented defaults.
func (o *GenerationOptions) ApplyDefaults() {
	if o.CodeStyle == "" {
		o.CodeStyle = DefaultCodeStyle
	}
	if o.Framework == "" {
		o.Framework = DefaultFramework
	}
	if o.TestFramework == "" {
		o.TestFramework = DefaultTestFramework
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// UserContext identifies the caller of a generation request.
type UserContext struct {
	UserID    string    `json:"user_id" binding:"required"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// GenerationRequest is the input for one orchestration run. A request is
// owned by exactly one run and discarded when its result is returned.
type GenerationRequest struct {
	TicketData        TicketData        `json:"ticket_data" binding:"required"`
	GenerationOptions GenerationOptions `json:"generation_options"`
	UserContext       UserContext       `json:"user_context" binding:"required"`
}

// Validate checks required ticket fields and option bounds.
//
// Outputs:
//
//	error - Non-nil when the request is user-correctable invalid input
func (r *GenerationRequest) Validate() error {
	if r.TicketData.Key == "" {
		return fmt.Errorf("ticket key is required")
	}
	if err := validation.ValidateTicketKey(r.TicketData.Key); err != nil {
		return err
	}
	if r.TicketData.Summary == "" {
		return fmt.Errorf("ticket summary is required")
	}

	opts := &r.GenerationOptions
	opts.ApplyDefaults()

	if opts.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be greater than 0")
	}
	if opts.MaxFileSize > MaxFileSizeCeiling {
		return fmt.Errorf("max file size cannot exceed %d lines", MaxFileSizeCeiling)
	}
	if !contains(SupportedLanguages, opts.CodeStyle) {
		return fmt.Errorf("unsupported language: %s", opts.CodeStyle)
	}
	if !contains(SupportedTestFrameworks, opts.TestFramework) {
		return fmt.Errorf("unsupported test framework: %s", opts.TestFramework)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
