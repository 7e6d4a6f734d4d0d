// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codegen implements the ticket-to-code generation pipeline:
// prompt construction, provider invocation with bounded retries, test
// generation and execution in isolated workspaces, and result assembly.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

// testGenConcurrency bounds parallel per-file test generation calls.
const testGenConcurrency = 4

// Orchestrator drives generation runs end to end. One instance serves
// all runs; per-run state lives on the stack of Generate.
//
// Thread Safety: safe for concurrent use.
type Orchestrator struct {
	registry *llm.Registry
	cfg      *Config
	prompts  *PromptBuilder
	executor TestExecutor
	logger   *slog.Logger
}

// NewOrchestrator builds a pipeline over the provider registry. A nil
// executor gets the default process-spawning test runner.
func NewOrchestrator(registry *llm.Registry, cfg *Config, executor TestExecutor, logger *slog.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Validate()
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = NewTestRunner(NewFrameworkRegistry(), cfg.TestTimeout, cfg.MaxTestOutput, logger)
	}
	initMetrics()
	return &Orchestrator{
		registry: registry,
		cfg:      cfg,
		prompts:  NewPromptBuilder(),
		executor: executor,
		logger:   logger,
	}
}

// Config returns the pipeline configuration.
func (o *Orchestrator) Config() *Config {
	return o.cfg
}

// Generate runs the full pipeline for one request.
//
// Outputs:
//
//	*datatypes.GenerationResult - Always non-nil; Success reports the
//	    run outcome and pipeline failures land in ErrorMessage
//	error - Non-nil only for invalid requests (wraps ErrInvalidRequest)
func (o *Orchestrator) Generate(ctx context.Context, req *datatypes.GenerationRequest) (*datatypes.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	runID := uuid.New().String()
	ctx, span := startSpan(ctx, "codegen.generate")
	defer span.End()

	start := time.Now()
	sm := NewStateMachine()
	opts := &req.GenerationOptions
	logger := o.logger.With(
		slog.String("run_id", runID),
		slog.String("ticket_key", req.TicketData.Key),
	)
	logger.Info("generation run started",
		slog.String("user_id", req.UserContext.UserID),
		slog.String("code_style", opts.CodeStyle),
		slog.Bool("generate_tests", opts.GenerateTests))

	result := &datatypes.GenerationResult{
		TicketKey:      req.TicketData.Key,
		GeneratedFiles: []*datatypes.GeneratedFile{},
		TestResults:    []*datatypes.TestResult{},
		Metadata: map[string]any{
			"run_id":     runID,
			"code_style": opts.CodeStyle,
			"framework":  opts.Framework,
		},
	}
	totalTokens := 0

	fail := func(stageErr error) *datatypes.GenerationResult {
		o.transition(ctx, sm, StateFailed, logger)
		result.Success = false
		result.ErrorMessage = stageErr.Error()
		result.LLMTokensUsed = totalTokens
		result.ProcessingTimeMs = float64(time.Since(start).Milliseconds())
		recordRun(ctx, false, time.Since(start).Seconds())
		logger.Error("generation run failed",
			slog.String("state", string(sm.Current())),
			slog.String("error", stageErr.Error()))
		return result
	}

	provider, err := o.registry.Get(o.providerFor(opts))
	if err != nil {
		return fail(fmt.Errorf("selecting provider: %w", err)), nil
	}
	result.Metadata["provider"] = provider.Name()
	result.Metadata["model"] = provider.Model()

	// Prompting.
	o.transition(ctx, sm, StatePrompting, logger)
	systemPrompt, userPrompt, err := o.prompts.Build(StageCode, StageInput{
		Ticket:  &req.TicketData,
		Options: opts,
	})
	if err != nil {
		return fail(fmt.Errorf("building prompts: %w", err)), nil
	}

	// Generating.
	o.transition(ctx, sm, StateGenerating, logger)
	resp, err := o.callWithRetry(ctx, logger, func(ctx context.Context) (*llm.LLMResponse, error) {
		return provider.GenerateCode(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return fail(fmt.Errorf("generating code: %w", err)), nil
	}
	totalTokens += resp.TokensUsed
	recordTokens(ctx, provider.Name(), resp.TokensUsed)

	files := ParseGeneratedContent(resp.Content, opts)
	if len(files) == 0 {
		return fail(ErrNoFilesParsed), nil
	}
	logger.Info("code generated",
		slog.Int("files", len(files)),
		slog.Int("tokens", resp.TokensUsed))

	// Materialization. Every run goes through the workspace so path
	// containment and the line cap hold whether or not tests execute.
	ws, err := NewWorkspace(o.cfg.WorkspaceRoot, effectiveMaxLines(o.cfg, opts), logger)
	if err != nil {
		return fail(fmt.Errorf("creating workspace: %w", err)), nil
	}
	if o.cfg.KeepWorkspaces {
		ws.Keep()
		result.Warnings = append(result.Warnings, fmt.Sprintf("workspace retained at %s", ws.Root()))
	}
	defer func() {
		if err := ws.Destroy(); err != nil {
			logger.Warn("workspace teardown failed", slog.String("error", err.Error()))
		}
	}()
	if err := ws.WriteAll(files); err != nil {
		return fail(fmt.Errorf("materializing files: %w", err)), nil
	}

	sources := sourceFilesOf(files)

	// Test generation.
	if opts.GenerateTests && len(sources) > 0 {
		o.transition(ctx, sm, StateTestGenerating, logger)
		testFiles, tokens, err := o.generateTestFiles(ctx, logger, provider, sources, opts)
		totalTokens += tokens
		recordTokens(ctx, provider.Name(), tokens)
		if err != nil {
			return fail(fmt.Errorf("generating tests: %w", err)), nil
		}
		if err := ws.WriteAll(testFiles); err != nil {
			return fail(fmt.Errorf("materializing test files: %w", err)), nil
		}
		files = append(files, testFiles...)
	}

	// Documentation.
	if opts.IncludeDocumentation && len(sources) > 0 {
		docFiles, tokens := o.generateDocs(ctx, logger, provider, sources, result)
		totalTokens += tokens
		recordTokens(ctx, provider.Name(), tokens)
		if err := ws.WriteAll(docFiles); err != nil {
			return fail(fmt.Errorf("materializing docs: %w", err)), nil
		}
		files = append(files, docFiles...)
	}

	// Execution.
	testFiles := testFilesOf(files)
	if opts.GenerateTests && len(testFiles) > 0 {
		o.transition(ctx, sm, StateExecuting, logger)
		result.TestResults = o.executor.Run(ctx, ws, testFiles, opts.TestFramework)
	}

	// Assembly.
	o.transition(ctx, sm, StateAssembling, logger)
	result.GeneratedFiles = files
	result.Warnings = append(result.Warnings, SyntaxWarnings(files)...)
	result.LLMTokensUsed = totalTokens
	result.ProcessingTimeMs = float64(time.Since(start).Milliseconds())
	result.Success = true
	result.Metadata["states"] = stateNames(sm.History())

	o.transition(ctx, sm, StateCompleted, logger)
	recordRun(ctx, true, time.Since(start).Seconds())
	logger.Info("generation run completed",
		slog.Int("files", len(result.GeneratedFiles)),
		slog.Int("test_results", len(result.TestResults)),
		slog.Int("tokens", totalTokens),
		slog.Float64("elapsed_ms", result.ProcessingTimeMs))
	return result, nil
}

// providerFor picks the run's provider name. Requests cannot override
// the provider yet, so this is the configured default.
func (o *Orchestrator) providerFor(opts *datatypes.GenerationOptions) string {
	return o.cfg.Provider
}

// transition advances the run state. An illegal transition is a
// programming error; it is logged and the machine is left untouched so
// the run can still terminate.
func (o *Orchestrator) transition(ctx context.Context, sm *StateMachine, to State, logger *slog.Logger) {
	from := sm.Current()
	if err := sm.Transition(to); err != nil {
		logger.Error("illegal state transition",
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return
	}
	recordTransition(ctx, from, to)
	logger.Debug("state transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)))
}

// callWithRetry invokes a provider call with bounded exponential backoff.
// Only retryable failures (timeouts, throttling) consume the retry
// budget; auth failures and malformed responses fail immediately.
func (o *Orchestrator) callWithRetry(ctx context.Context, logger *slog.Logger, call func(context.Context) (*llm.LLMResponse, error)) (*llm.LLMResponse, error) {
	delay := o.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			return nil, err
		}

		var pe *llm.ProviderError
		if errors.As(err, &pe) {
			recordRetry(ctx, string(pe.Kind))
		}
		logger.Warn("provider call failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", o.cfg.MaxRetries+1),
			slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, o.cfg.MaxRetries+1, lastErr)
}

// generateTestFiles produces one test file per source file, with bounded
// concurrency. A single file's failure fails the whole stage; partial
// test suites are worse than none because they report misleading totals.
func (o *Orchestrator) generateTestFiles(ctx context.Context, logger *slog.Logger, provider llm.Provider, sources []*datatypes.GeneratedFile, opts *datatypes.GenerationOptions) ([]*datatypes.GeneratedFile, int, error) {
	var (
		mu        sync.Mutex
		testFiles []*datatypes.GeneratedFile
		tokens    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(testGenConcurrency)

	for _, src := range sources {
		g.Go(func() error {
			systemPrompt, userPrompt, err := o.prompts.Build(StageTest, StageInput{
				Options:    opts,
				SourceCode: src.Content,
				FilePath:   src.Path,
			})
			if err != nil {
				return err
			}
			resp, err := o.callWithRetry(gctx, logger, func(ctx context.Context) (*llm.LLMResponse, error) {
				return provider.GenerateTests(ctx, systemPrompt, userPrompt)
			})
			if err != nil {
				return fmt.Errorf("tests for %s: %w", src.Path, err)
			}

			content := extractSingleBlock(resp.Content)
			tf := datatypes.NewGeneratedFile(
				TestFileNameFor(src.Path, opts.TestFramework),
				content,
				datatypes.FileTypeTest,
				src.Language,
				fmt.Sprintf("Unit tests for %s", src.Path),
			)

			mu.Lock()
			testFiles = append(testFiles, tf)
			tokens += resp.TokensUsed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, tokens, err
	}
	logger.Info("tests generated", slog.Int("test_files", len(testFiles)))
	return testFiles, tokens, nil
}

// generateDocs produces one markdown document per source file. Doc
// failures degrade to warnings; documentation is never worth failing a
// run that already has working code.
func (o *Orchestrator) generateDocs(ctx context.Context, logger *slog.Logger, provider llm.Provider, sources []*datatypes.GeneratedFile, result *datatypes.GenerationResult) ([]*datatypes.GeneratedFile, int) {
	var docFiles []*datatypes.GeneratedFile
	tokens := 0

	for _, src := range sources {
		systemPrompt, userPrompt, err := o.prompts.Build(StageExplain, StageInput{
			SourceCode: src.Content,
			Language:   src.Language,
		})
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("docs for %s: %v", src.Path, err))
			continue
		}
		resp, err := o.callWithRetry(ctx, logger, func(ctx context.Context) (*llm.LLMResponse, error) {
			return provider.ExplainCode(ctx, systemPrompt, userPrompt)
		})
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("docs for %s: %v", src.Path, err))
			continue
		}
		tokens += resp.TokensUsed

		stem := strings.TrimSuffix(path.Base(src.Path), path.Ext(src.Path))
		docFiles = append(docFiles, datatypes.NewGeneratedFile(
			path.Join("docs", stem+".md"),
			resp.Content,
			datatypes.FileTypeDocumentation,
			"markdown",
			fmt.Sprintf("Documentation for %s", src.Path),
		))
	}
	return docFiles, tokens
}

// executeTests writes the full file set into a fresh workspace, runs the
// test files, and tears the workspace down.
func (o *Orchestrator) executeTests(ctx context.Context, logger *slog.Logger, files, testFiles []*datatypes.GeneratedFile, opts *datatypes.GenerationOptions) ([]*datatypes.TestResult, []string, error) {
	ws, err := NewWorkspace(o.cfg.WorkspaceRoot, effectiveMaxLines(o.cfg, opts), logger)
	if err != nil {
		return nil, nil, err
	}
	if o.cfg.KeepWorkspaces {
		ws.Keep()
	}
	defer func() {
		if err := ws.Destroy(); err != nil {
			logger.Warn("workspace teardown failed", slog.String("error", err.Error()))
		}
	}()

	if err := ws.WriteAll(files); err != nil {
		return nil, nil, err
	}

	var warnings []string
	if o.cfg.KeepWorkspaces {
		warnings = append(warnings, fmt.Sprintf("workspace retained at %s", ws.Root()))
	}
	return o.executor.Run(ctx, ws, testFiles, opts.TestFramework), warnings, nil
}

// effectiveMaxLines is the tighter of the run option and the service cap.
func effectiveMaxLines(cfg *Config, opts *datatypes.GenerationOptions) int {
	if opts.MaxFileSize > 0 && opts.MaxFileSize < cfg.MaxFileLines {
		return opts.MaxFileSize
	}
	return cfg.MaxFileLines
}

// extractSingleBlock unwraps a lone fenced code block, tolerating
// completions that return the bare code instead.
func extractSingleBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	matches := codeBlockPattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return trimmed
	}
	body := strings.TrimSpace(matches[2])
	if matches[1] == "" {
		body = stripLeadingLanguageTag(body)
	}
	if body == "" {
		return trimmed
	}
	return body
}

func sourceFilesOf(files []*datatypes.GeneratedFile) []*datatypes.GeneratedFile {
	var out []*datatypes.GeneratedFile
	for _, f := range files {
		if f.FileType == datatypes.FileTypeSource {
			out = append(out, f)
		}
	}
	return out
}

func testFilesOf(files []*datatypes.GeneratedFile) []*datatypes.GeneratedFile {
	var out []*datatypes.GeneratedFile
	for _, f := range files {
		if f.IsTest() {
			out = append(out, f)
		}
	}
	return out
}

func stateNames(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
