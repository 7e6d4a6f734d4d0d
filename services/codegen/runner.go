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
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// =============================================================================
// TEST EXECUTION
// =============================================================================

// TestExecutor runs generated test files inside a workspace. The
// interface exists so the pipeline can be exercised without spawning
// processes.
type TestExecutor interface {
	Run(ctx context.Context, ws *Workspace, testFiles []*datatypes.GeneratedFile, framework string) []*datatypes.TestResult
}

// TestRunner executes test files with the configured framework command
// and parses their output into TestResult records.
//
// Thread Safety: safe for concurrent use.
type TestRunner struct {
	frameworks *FrameworkRegistry
	timeout    time.Duration
	maxOutput  int
	logger     *slog.Logger
}

// NewTestRunner builds a runner over the given framework registry.
func NewTestRunner(frameworks *FrameworkRegistry, timeout time.Duration, maxOutput int, logger *slog.Logger) *TestRunner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 1 << 20
	}
	return &TestRunner{frameworks: frameworks, timeout: timeout, maxOutput: maxOutput, logger: logger}
}

// Run executes every test file and returns one TestResult per file.
// A failure to launch or a timeout yields a failed result rather than
// aborting the batch, so one broken test file cannot sink the run.
func (r *TestRunner) Run(ctx context.Context, ws *Workspace, testFiles []*datatypes.GeneratedFile, framework string) []*datatypes.TestResult {
	results := make([]*datatypes.TestResult, 0, len(testFiles))
	for _, tf := range testFiles {
		results = append(results, r.runOne(ctx, ws, tf, framework))
	}
	return results
}

func (r *TestRunner) runOne(ctx context.Context, ws *Workspace, testFile *datatypes.GeneratedFile, framework string) *datatypes.TestResult {
	fc, err := r.frameworks.ForFile(testFile.Path, framework)
	if err != nil {
		return failedResult(testFile.Path, 0, err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, fc.Command, fc.BuildArgs(testFile.Path)...)
	cmd.Dir = ws.Root()

	stdout := newLimitedWriter(r.maxOutput)
	stderr := newLimitedWriter(r.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("test execution timed out",
			slog.String("test_file", testFile.Path),
			slog.String("framework", fc.Name),
			slog.Duration("timeout", r.timeout))
		return failedResult(testFile.Path, elapsed,
			fmt.Sprintf("timeout after %s", r.timeout))
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The command never launched (missing binary, bad dir).
			r.logger.Error("test command failed to launch",
				slog.String("test_file", testFile.Path),
				slog.String("command", fc.Command),
				slog.String("error", runErr.Error()))
			return failedResult(testFile.Path, elapsed, runErr.Error())
		}
	}

	counts := r.parseOutput(fc, stdout.String(), stderr.String(), exitCode)

	result := &datatypes.TestResult{
		TestFile:      testFile.Path,
		Passed:        counts.failed == 0 && exitCode == 0,
		TotalTests:    counts.total,
		PassedTests:   counts.passed,
		FailedTests:   counts.failed,
		ExecutionTime: elapsed,
		Output:        stdout.String(),
	}
	if exitCode != 0 && stderr.Len() > 0 {
		result.Errors = []string{stderr.String()}
	}
	// Keep the count and pass-flag invariants aligned when the harness
	// exits nonzero without reporting a failing test.
	if !result.Passed && result.FailedTests == 0 {
		result.FailedTests = 1
		result.TotalTests = result.PassedTests + result.FailedTests
	}

	r.logger.Info("test file executed",
		slog.String("test_file", testFile.Path),
		slog.String("framework", fc.Name),
		slog.Bool("passed", result.Passed),
		slog.Int("total", result.TotalTests),
		slog.Int("failed", result.FailedTests))
	return result
}

func (r *TestRunner) parseOutput(fc *FrameworkConfig, stdout, stderr string, exitCode int) testCounts {
	if parser, ok := getParser(fc.Parser); ok {
		if counts, recognized := parser(stdout, stderr, exitCode); recognized {
			return counts
		}
	}
	return parseTextFallback(stdout, stderr, exitCode)
}

// failedResult builds a TestResult for a run that produced no verdicts,
// preserving the count invariants.
func failedResult(testFile string, elapsed float64, errMsg string) *datatypes.TestResult {
	return &datatypes.TestResult{
		TestFile:      testFile,
		Passed:        false,
		TotalTests:    1,
		PassedTests:   0,
		FailedTests:   1,
		ExecutionTime: elapsed,
		Errors:        []string{errMsg},
	}
}

// =============================================================================
// OUTPUT CAPTURE
// =============================================================================

// limitedWriter captures up to max bytes and silently drops the rest.
// Runaway test output cannot exhaust memory.
type limitedWriter struct {
	buf       []byte
	max       int
	truncated bool
}

func newLimitedWriter(max int) *limitedWriter {
	return &limitedWriter{max: max}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.max - len(w.buf)
	if remaining <= 0 {
		w.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf = append(w.buf, p[:remaining]...)
		w.truncated = true
		return len(p), nil
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *limitedWriter) String() string {
	if w.truncated {
		return string(w.buf) + "\n[output truncated]"
	}
	return string(w.buf)
}

func (w *limitedWriter) Len() int {
	return len(w.buf)
}
