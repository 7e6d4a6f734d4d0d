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
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

// fakeProvider scripts provider behavior: the first errCount calls fail
// with err (errCount < 0 means every call fails).
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	err      error
	errCount int

	codeContent string
	testContent string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) respond(content string) (*llm.LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil && (f.errCount < 0 || f.calls <= f.errCount) {
		return nil, f.err
	}
	return &llm.LLMResponse{Content: content, TokensUsed: 10, ModelUsed: "fake-model"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) GenerateCode(ctx context.Context, system, user string) (*llm.LLMResponse, error) {
	return f.respond(f.codeContent)
}
func (f *fakeProvider) GenerateTests(ctx context.Context, system, user string) (*llm.LLMResponse, error) {
	return f.respond(f.testContent)
}
func (f *fakeProvider) ReviewCode(ctx context.Context, system, user string) (*llm.LLMResponse, error) {
	return f.respond("looks good")
}
func (f *fakeProvider) ExplainCode(ctx context.Context, system, user string) (*llm.LLMResponse, error) {
	return f.respond("# Documentation\n\nDetails.")
}
func (f *fakeProvider) Health(ctx context.Context) llm.HealthStatus {
	return llm.HealthStatus{Available: true, Provider: "fake", Model: "fake-model"}
}

// fakeExecutor returns one passing result per test file without
// spawning processes.
type fakeExecutor struct {
	mu     sync.Mutex
	called int
}

func (f *fakeExecutor) Run(ctx context.Context, ws *Workspace, testFiles []*datatypes.GeneratedFile, framework string) []*datatypes.TestResult {
	f.mu.Lock()
	f.called++
	f.mu.Unlock()
	results := make([]*datatypes.TestResult, 0, len(testFiles))
	for _, tf := range testFiles {
		results = append(results, &datatypes.TestResult{
			TestFile:    tf.Path,
			Passed:      true,
			TotalTests:  2,
			PassedTests: 2,
		})
	}
	return results
}

const sampleCompletion = "```filename: src/login.ts\n" +
	"export function login() { return true; }\n" +
	"```\n" +
	"```filename: src/session.ts\n" +
	"export function session() { return 1; }\n" +
	"```\n"

func newPipelineFixture(t *testing.T, provider *fakeProvider, opts ...Option) (*Orchestrator, *fakeExecutor) {
	t.Helper()
	registry := llm.NewRegistry(slog.Default())
	registry.SetRateLimit(1000, 100)
	registry.Register("fake", func(logger *slog.Logger) (llm.Provider, error) {
		return provider, nil
	})

	all := append([]Option{
		WithProvider("fake"),
		WithWorkspaceRoot(t.TempDir()),
		WithRetryBaseDelay(time.Millisecond),
	}, opts...)
	executor := &fakeExecutor{}
	return NewOrchestrator(registry, NewConfig(all...), executor, slog.Default()), executor
}

func validRequest() *datatypes.GenerationRequest {
	return &datatypes.GenerationRequest{
		TicketData: datatypes.TicketData{
			Key:     "PROJ-7",
			Summary: "Add login",
		},
		GenerationOptions: datatypes.GenerationOptions{
			GenerateTests: true,
			CodeStyle:     "typescript",
			TestFramework: "jest",
		},
		UserContext: datatypes.UserContext{UserID: "u-1"},
	}
}

func TestGenerateHappyPath(t *testing.T) {
	provider := &fakeProvider{
		codeContent: sampleCompletion,
		testContent: "```\ntest('login', () => {});\n```",
	}
	pipeline, executor := newPipelineFixture(t, provider)

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.ErrorMessage)
	}
	if result.TicketKey != "PROJ-7" {
		t.Errorf("ticket key = %q", result.TicketKey)
	}

	// Two source files plus one generated test per source file.
	if got := len(result.GeneratedFiles); got != 4 {
		t.Errorf("generated %d files, want 4", got)
	}
	if got := len(result.TestFiles()); got != 2 {
		t.Errorf("test files = %d, want 2", got)
	}
	if got := len(result.TestResults); got != 2 {
		t.Errorf("test results = %d, want 2", got)
	}
	if executor.called != 1 {
		t.Errorf("executor called %d times, want 1", executor.called)
	}

	// One code call plus two test calls at 10 tokens each.
	if result.LLMTokensUsed != 30 {
		t.Errorf("tokens = %d, want 30", result.LLMTokensUsed)
	}
	if result.Metadata["provider"] != "fake" {
		t.Errorf("metadata provider = %v", result.Metadata["provider"])
	}
}

func TestGenerateWithoutTests(t *testing.T) {
	provider := &fakeProvider{codeContent: sampleCompletion}
	pipeline, executor := newPipelineFixture(t, provider)

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.ErrorMessage)
	}
	if len(result.TestResults) != 0 {
		t.Errorf("test results = %d, want 0", len(result.TestResults))
	}
	if executor.called != 0 {
		t.Errorf("executor called %d times, want 0", executor.called)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount())
	}
}

func TestGenerateRejectsEscapingPathWithoutTests(t *testing.T) {
	provider := &fakeProvider{
		codeContent: "```filename: ../../etc/passwd\nmalicious\n```",
	}
	pipeline, executor := newPipelineFixture(t, provider)

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("run must fail when a generated path escapes the workspace")
	}
	if !strings.Contains(result.ErrorMessage, "escapes workspace") &&
		!strings.Contains(result.ErrorMessage, ErrPathEscape.Error()) {
		t.Errorf("error message = %q, want a path escape failure", result.ErrorMessage)
	}
	if len(result.GeneratedFiles) != 0 {
		t.Errorf("failed run carried %d files, want 0", len(result.GeneratedFiles))
	}
	if executor.called != 0 {
		t.Errorf("executor called %d times, want 0", executor.called)
	}
}

func TestGenerateEnforcesLineLimitWithoutTests(t *testing.T) {
	big := strings.Repeat("const x = 1;\n", 50)
	provider := &fakeProvider{
		codeContent: "```filename: src/big.ts\n" + big + "```",
	}
	pipeline, _ := newPipelineFixture(t, provider, WithMaxFileLines(10))

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("run must fail when a generated file exceeds the line cap")
	}
	if !strings.Contains(result.ErrorMessage, ErrFileTooLarge.Error()) {
		t.Errorf("error message = %q, want a file-too-large failure", result.ErrorMessage)
	}
}

func TestGenerateInvalidRequestRejected(t *testing.T) {
	pipeline, _ := newPipelineFixture(t, &fakeProvider{codeContent: sampleCompletion})

	req := validRequest()
	req.TicketData.Key = ""

	result, err := pipeline.Generate(context.Background(), req)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	if result != nil {
		t.Error("invalid requests must not produce a result")
	}
}

func TestGeneratePersistentRateLimitExhaustsRetries(t *testing.T) {
	provider := &fakeProvider{
		err:      &llm.ProviderError{Provider: "fake", Kind: llm.KindRateLimited, Err: errors.New("429")},
		errCount: -1,
	}
	pipeline, _ := newPipelineFixture(t, provider, WithMaxRetries(2))

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("pipeline failures must land in the result, got error %v", err)
	}
	if result.Success {
		t.Error("run must fail")
	}
	if !strings.Contains(result.ErrorMessage, "retries exhausted") {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
	// Retry budget of 2 means exactly 3 invocations.
	if provider.callCount() != 3 {
		t.Errorf("provider called %d times, want 3", provider.callCount())
	}
}

func TestGenerateAuthFailureDoesNotRetry(t *testing.T) {
	provider := &fakeProvider{
		err:      &llm.ProviderError{Provider: "fake", Kind: llm.KindAuthFailure, Err: errors.New("401")},
		errCount: -1,
	}
	pipeline, _ := newPipelineFixture(t, provider, WithMaxRetries(3))

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("run must fail")
	}
	if provider.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount())
	}
}

func TestGenerateRecoversAfterTransientFailure(t *testing.T) {
	provider := &fakeProvider{
		codeContent: sampleCompletion,
		err:         &llm.ProviderError{Provider: "fake", Kind: llm.KindTimeout, Err: errors.New("deadline")},
		errCount:    1,
	}
	pipeline, _ := newPipelineFixture(t, provider, WithMaxRetries(2))

	req := validRequest()
	req.GenerationOptions.GenerateTests = false

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.ErrorMessage)
	}
	if provider.callCount() != 2 {
		t.Errorf("provider called %d times, want 2", provider.callCount())
	}
}

func TestGenerateEmptyCompletionFails(t *testing.T) {
	provider := &fakeProvider{codeContent: "   "}
	pipeline, _ := newPipelineFixture(t, provider)

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("run must fail when no files parse")
	}
	if !strings.Contains(result.ErrorMessage, "no files parsed") {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
}

func TestGenerateUnknownProviderFailsRun(t *testing.T) {
	provider := &fakeProvider{codeContent: sampleCompletion}
	pipeline, _ := newPipelineFixture(t, provider, WithProvider("missing"))

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("run must fail for unknown provider")
	}
	if !strings.Contains(result.ErrorMessage, "unknown provider") {
		t.Errorf("error message = %q", result.ErrorMessage)
	}
}

func TestGenerateIncludesDocumentation(t *testing.T) {
	provider := &fakeProvider{
		codeContent: sampleCompletion,
		testContent: "```\ntest('x', () => {});\n```",
	}
	pipeline, _ := newPipelineFixture(t, provider)

	req := validRequest()
	req.GenerationOptions.IncludeDocumentation = true

	result, err := pipeline.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.ErrorMessage)
	}

	var docs []string
	for _, f := range result.GeneratedFiles {
		if f.FileType == datatypes.FileTypeDocumentation {
			docs = append(docs, f.Path)
		}
	}
	if len(docs) != 2 {
		t.Fatalf("doc files = %v, want 2", docs)
	}
	for _, p := range docs {
		if !strings.HasPrefix(p, "docs/") || !strings.HasSuffix(p, ".md") {
			t.Errorf("doc path = %q, want docs/<stem>.md", p)
		}
	}
}

func TestReviewCodeChunksLargeInput(t *testing.T) {
	provider := &fakeProvider{}
	pipeline, _ := newPipelineFixture(t, provider)
	pipeline.cfg.ReviewChunkSize = 200
	pipeline.cfg.ReviewChunkOverlap = 20

	code := strings.Repeat("function chunkMe() { return 42; }\n\n", 40)
	outcome, err := pipeline.ReviewCode(context.Background(), code, "javascript")
	if err != nil {
		t.Fatalf("ReviewCode failed: %v", err)
	}
	if outcome.Chunks < 2 {
		t.Errorf("chunks = %d, want at least 2", outcome.Chunks)
	}
	if outcome.TokensUsed != outcome.Chunks*10 {
		t.Errorf("tokens = %d, want %d", outcome.TokensUsed, outcome.Chunks*10)
	}
	if !strings.Contains(outcome.Review, "Part 1 of") {
		t.Error("multi-chunk review missing part headers")
	}
}

func TestReviewCodeRejectsEmpty(t *testing.T) {
	pipeline, _ := newPipelineFixture(t, &fakeProvider{})
	if _, err := pipeline.ReviewCode(context.Background(), "  ", "go"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestGenerateTestsForStandalone(t *testing.T) {
	provider := &fakeProvider{testContent: "```\ntest('a', () => {});\n```"}
	pipeline, executor := newPipelineFixture(t, provider)

	sources := []*datatypes.GeneratedFile{
		{Path: "src/util.ts", Content: "export const x = 1;"},
	}
	outcome, err := pipeline.GenerateTestsFor(context.Background(), sources, &datatypes.GenerationOptions{TestFramework: "jest"})
	if err != nil {
		t.Fatalf("GenerateTestsFor failed: %v", err)
	}
	if len(outcome.TestFiles) != 1 {
		t.Fatalf("test files = %d, want 1", len(outcome.TestFiles))
	}
	if outcome.TestFiles[0].Path != "src/util.test.ts" {
		t.Errorf("test path = %q", outcome.TestFiles[0].Path)
	}
	if len(outcome.TestResults) != 1 {
		t.Errorf("test results = %d, want 1", len(outcome.TestResults))
	}
	if executor.called != 1 {
		t.Errorf("executor called %d times, want 1", executor.called)
	}
}

func TestGenerateTestsForRequiresSources(t *testing.T) {
	pipeline, _ := newPipelineFixture(t, &fakeProvider{})
	if _, err := pipeline.GenerateTestsFor(context.Background(), nil, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}
