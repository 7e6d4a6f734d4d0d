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

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// Stage names a prompt-building mode.
type Stage string

const (
	StageCode    Stage = "code"
	StageTest    Stage = "test"
	StageReview  Stage = "review"
	StageExplain Stage = "explain"
)

// StageInput carries the stage-specific prompt material. Ticket and
// Options drive the code stage; SourceCode, FilePath, and Language drive
// the file-scoped stages.
type StageInput struct {
	Ticket  *datatypes.TicketData
	Options *datatypes.GenerationOptions

	SourceCode string
	FilePath   string
	Language   string
}

// PromptBuilder renders the prompt pairs for every pipeline stage. It is
// stateless and deterministic: identical inputs produce byte-identical
// prompts, which keeps runs reproducible and prompt changes reviewable.
type PromptBuilder struct{}

// NewPromptBuilder returns the stateless builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build renders the system and user prompt for a stage.
//
// Outputs:
//
//	string - System prompt
//	string - User prompt
//	error  - Non-nil for an unknown stage or missing stage input
func (b *PromptBuilder) Build(stage Stage, in StageInput) (string, string, error) {
	switch stage {
	case StageCode:
		if in.Ticket == nil || in.Options == nil {
			return "", "", fmt.Errorf("code stage requires ticket and options")
		}
		return b.buildCodePrompts(in.Ticket, in.Options), b.buildCodeUserPrompt(in.Ticket, in.Options), nil
	case StageTest:
		if in.Options == nil {
			return "", "", fmt.Errorf("test stage requires options")
		}
		return b.buildTestPrompts(in.Options.TestFramework),
			b.buildTestUserPrompt(in.SourceCode, in.FilePath, in.Options.TestFramework), nil
	case StageReview:
		return b.buildReviewPrompts(in.Language), b.buildReviewUserPrompt(in.SourceCode, in.Language), nil
	case StageExplain:
		return b.buildExplainPrompts(in.Language), b.buildExplainUserPrompt(in.SourceCode, in.Language), nil
	default:
		return "", "", fmt.Errorf("unknown prompt stage: %s", stage)
	}
}

func (b *PromptBuilder) buildCodePrompts(ticket *datatypes.TicketData, opts *datatypes.GenerationOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert software engineer specializing in %s and %s.\n", opts.CodeStyle, opts.Framework)
	sb.WriteString("Your task is to generate clean, production-ready code based on ticket requirements.\n\n")
	sb.WriteString("IMPORTANT GUIDELINES:\n")
	sb.WriteString("1. Write modular, well-structured code following best practices\n")
	sb.WriteString("2. Include proper error handling and input validation\n")
	sb.WriteString("3. Add comprehensive comments and documentation\n")
	fmt.Fprintf(&sb, "4. Follow %s coding conventions\n", opts.CodeStyle)
	sb.WriteString("5. Ensure code is testable and maintainable\n")
	sb.WriteString("6. Use appropriate design patterns when needed\n")
	sb.WriteString("7. Make code secure and performant\n\n")
	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("- Provide complete, runnable code\n")
	sb.WriteString("- Structure response as multiple files when needed\n")
	sb.WriteString("- Include import statements and dependencies\n")
	sb.WriteString("- Mark each file with a fenced code block preceded by a ")
	sb.WriteString("filename line: ```filename: path/to/file.ext\n")
	return sb.String()
}

func (b *PromptBuilder) buildCodeUserPrompt(ticket *datatypes.TicketData, opts *datatypes.GenerationOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TICKET: %s\n", ticket.Key)
	fmt.Fprintf(&sb, "TITLE: %s\n", ticket.Summary)
	fmt.Fprintf(&sb, "TYPE: %s\n", valueOr(string(ticket.IssueType), "Task"))
	fmt.Fprintf(&sb, "PRIORITY: %s\n\n", valueOr(string(ticket.Priority), "Medium"))

	sb.WriteString("DESCRIPTION:\n")
	sb.WriteString(valueOr(ticket.Description, "No description provided"))
	sb.WriteString("\n\n")

	sb.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&sb, "- Programming Language: %s\n", opts.CodeStyle)
	fmt.Fprintf(&sb, "- Framework: %s\n", opts.Framework)
	fmt.Fprintf(&sb, "- Architecture: %s\n", valueOr(opts.ArchitecturePattern, "Standard"))
	fmt.Fprintf(&sb, "- Database: %s\n", valueOr(opts.DatabaseType, "None specified"))
	fmt.Fprintf(&sb, "- API Style: %s\n", valueOr(opts.APIStyle, "REST"))
	fmt.Fprintf(&sb, "- Max file size: %d lines\n", opts.MaxFileSize)
	fmt.Fprintf(&sb, "- Include tests: %t\n", opts.GenerateTests)
	fmt.Fprintf(&sb, "- Include docs: %t\n\n", opts.IncludeDocumentation)

	sb.WriteString("ADDITIONAL CONTEXT:\n")
	fmt.Fprintf(&sb, "- Labels: %s\n", joinOr(ticket.Labels, "None"))
	fmt.Fprintf(&sb, "- Components: %s\n\n", joinOr(ticket.Components, "None"))

	sb.WriteString("Generate complete, production-ready code that implements the requirements described in this ticket.\n")
	return sb.String()
}

func (b *PromptBuilder) buildTestPrompts(testFramework string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert test engineer specializing in %s.\n", testFramework)
	sb.WriteString("Your task is to generate comprehensive unit and integration tests for the provided source code.\n\n")
	sb.WriteString("TESTING GUIDELINES:\n")
	sb.WriteString("1. Write tests that cover all public methods and functions\n")
	sb.WriteString("2. Include edge cases and error scenarios\n")
	sb.WriteString("3. Test both positive and negative paths\n")
	sb.WriteString("4. Use proper mocking for external dependencies\n")
	fmt.Fprintf(&sb, "5. Follow %s best practices\n", testFramework)
	sb.WriteString("6. Ensure tests are isolated and independent\n")
	sb.WriteString("7. Write descriptive test names\n\n")
	sb.WriteString("OUTPUT FORMAT:\n")
	sb.WriteString("- Provide complete test files in fenced code blocks\n")
	sb.WriteString("- Include proper imports and setup\n")
	fmt.Fprintf(&sb, "- Follow naming conventions for %s\n", testFramework)
	sb.WriteString("- Ensure tests are runnable\n")
	return sb.String()
}

func (b *PromptBuilder) buildTestUserPrompt(sourceCode, filePath, testFramework string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SOURCE FILE: %s\n\n", filePath)
	sb.WriteString("SOURCE CODE:\n```\n")
	sb.WriteString(sourceCode)
	sb.WriteString("\n```\n\n")
	fmt.Fprintf(&sb, "Generate comprehensive %s tests for this code. Include:\n", testFramework)
	sb.WriteString("1. Unit tests for all functions/methods\n")
	sb.WriteString("2. Edge case testing\n")
	sb.WriteString("3. Error handling tests\n")
	sb.WriteString("4. Mocking for external dependencies\n")
	return sb.String()
}

func (b *PromptBuilder) buildReviewPrompts(language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert code reviewer specializing in %s.\n", language)
	sb.WriteString("Analyze the provided code and provide constructive feedback on:\n")
	sb.WriteString("1. Code quality and best practices\n")
	sb.WriteString("2. Performance improvements\n")
	sb.WriteString("3. Security considerations\n")
	sb.WriteString("4. Maintainability issues\n")
	sb.WriteString("5. Bug potential\n")
	sb.WriteString("6. Design patterns usage\n\n")
	sb.WriteString("Provide specific, actionable suggestions with examples when possible.\n")
	return sb.String()
}

func (b *PromptBuilder) buildReviewUserPrompt(code, language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please review this %s code:\n\n", language)
	fmt.Fprintf(&sb, "```%s\n", language)
	sb.WriteString(code)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Provide a comprehensive code review with specific recommendations for improvement.\n")
	return sb.String()
}

func (b *PromptBuilder) buildExplainPrompts(language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert technical writer specializing in %s documentation.\n", language)
	sb.WriteString("Generate clear, comprehensive documentation for the provided code including:\n")
	sb.WriteString("1. Overall purpose and functionality\n")
	sb.WriteString("2. Function/method descriptions\n")
	sb.WriteString("3. Parameter explanations\n")
	sb.WriteString("4. Return value descriptions\n")
	sb.WriteString("5. Usage examples\n\n")
	sb.WriteString("Write in a clear, professional style suitable for technical documentation.\n")
	return sb.String()
}

func (b *PromptBuilder) buildExplainUserPrompt(code, language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate comprehensive documentation for this %s code:\n\n", language)
	fmt.Fprintf(&sb, "```%s\n", language)
	sb.WriteString(code)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Include detailed explanations of functionality, parameters, return values, and usage examples.\n")
	return sb.String()
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
