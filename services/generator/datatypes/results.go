// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "strings"

// =============================================================================
// GENERATED ARTIFACTS
// =============================================================================

// FileType classifies a generated file by its role in the output set.
type FileType string

const (
	FileTypeSource        FileType = "source"
	FileTypeTest          FileType = "test"
	FileTypeConfig        FileType = "config"
	FileTypeDocumentation FileType = "documentation"
)

// GeneratedFile is a single artifact produced by a generation run. Paths
// are always relative to the workspace root.
type GeneratedFile struct {
	Path        string   `json:"path"`
	Content     string   `json:"content"`
	FileType    FileType `json:"file_type"`
	Language    string   `json:"language"`
	Description string   `json:"description,omitempty"`
	SizeLines   int      `json:"size_lines"`
}

// NewGeneratedFile builds a file record with SizeLines derived from content.
func NewGeneratedFile(path, content string, fileType FileType, language, description string) *GeneratedFile {
	return &GeneratedFile{
		Path:        path,
		Content:     content,
		FileType:    fileType,
		Language:    language,
		Description: description,
		SizeLines:   len(strings.Split(content, "\n")),
	}
}

// IsTest reports whether the file is a test artifact.
func (f *GeneratedFile) IsTest() bool {
	return f.FileType == FileTypeTest
}

// =============================================================================
// TEST EXECUTION
// =============================================================================

// TestResult is the outcome of executing one generated test file.
//
// Invariants maintained by the runner:
//   - TotalTests == PassedTests + FailedTests
//   - Passed is true iff FailedTests == 0 and the run completed
type TestResult struct {
	TestFile      string   `json:"test_file"`
	Passed        bool     `json:"passed"`
	TotalTests    int      `json:"total_tests"`
	PassedTests   int      `json:"passed_tests"`
	FailedTests   int      `json:"failed_tests"`
	ExecutionTime float64  `json:"execution_time"`
	Output        string   `json:"output,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// =============================================================================
// RUN RESULT
// =============================================================================

// GenerationResult is the terminal report of one generation run. Exactly
// one result is produced per request, whether the run succeeded or failed.
type GenerationResult struct {
	Success          bool             `json:"success"`
	TicketKey        string           `json:"ticket_key"`
	GeneratedFiles   []*GeneratedFile `json:"generated_files"`
	TestResults      []*TestResult    `json:"test_results"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	LLMTokensUsed    int              `json:"llm_tokens_used"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// SourceFiles returns the non-test, non-documentation files in the result.
func (r *GenerationResult) SourceFiles() []*GeneratedFile {
	var out []*GeneratedFile
	for _, f := range r.GeneratedFiles {
		if f.FileType == FileTypeSource || f.FileType == FileTypeConfig {
			out = append(out, f)
		}
	}
	return out
}

// TestFiles returns the test files in the result.
func (r *GenerationResult) TestFiles() []*GeneratedFile {
	var out []*GeneratedFile
	for _, f := range r.GeneratedFiles {
		if f.IsTest() {
			out = append(out, f)
		}
	}
	return out
}
