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
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// TestGenerationOutcome is the result of a standalone test generation
// request over caller-supplied source files.
type TestGenerationOutcome struct {
	TestFiles   []*datatypes.GeneratedFile `json:"test_files"`
	TestResults []*datatypes.TestResult    `json:"test_results"`
	TokensUsed  int                        `json:"tokens_used"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// GenerateTestsFor generates tests for existing source files, executes
// them in a fresh workspace alongside their sources, and returns both
// the test files and the execution results.
func (o *Orchestrator) GenerateTestsFor(ctx context.Context, sources []*datatypes.GeneratedFile, opts *datatypes.GenerationOptions) (*TestGenerationOutcome, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: at least one source file is required", ErrInvalidRequest)
	}
	for _, src := range sources {
		if src.Path == "" || src.Content == "" {
			return nil, fmt.Errorf("%w: source files need a path and content", ErrInvalidRequest)
		}
	}
	if opts == nil {
		opts = &datatypes.GenerationOptions{}
	}
	opts.ApplyDefaults()

	ctx, span := startSpan(ctx, "codegen.generate_tests")
	defer span.End()

	provider, err := o.registry.Get(o.cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}

	// Caller payloads bypass the parser, so classify and size them here.
	for _, src := range sources {
		if src.FileType == "" {
			src.FileType = classifyFile(src.Path)
		}
		if src.Language == "" {
			src.Language = languageFor(src.Path, opts.CodeStyle)
		}
		if src.SizeLines == 0 {
			*src = *datatypes.NewGeneratedFile(src.Path, src.Content, src.FileType, src.Language, src.Description)
		}
	}

	testFiles, tokens, err := o.generateTestFiles(ctx, o.logger, provider, sources, opts)
	if err != nil {
		return nil, err
	}

	outcome := &TestGenerationOutcome{
		TestFiles:  testFiles,
		TokensUsed: tokens,
	}

	combined := append(append([]*datatypes.GeneratedFile{}, sources...), testFiles...)
	results, warnings, err := o.executeTests(ctx, o.logger, combined, testFiles, opts)
	if err != nil {
		// Tests were generated; a workspace problem should not discard them.
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("test execution skipped: %v", err))
		return outcome, nil
	}
	outcome.TestResults = results
	outcome.Warnings = append(outcome.Warnings, warnings...)

	o.logger.Info("standalone test generation completed",
		slog.Int("sources", len(sources)),
		slog.Int("test_files", len(testFiles)),
		slog.Int("executed", len(results)))
	return outcome, nil
}
