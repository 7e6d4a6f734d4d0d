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
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/ticketsmith/services/llm"
)

// ReviewOutcome is the result of a standalone code review.
type ReviewOutcome struct {
	Review     string `json:"review"`
	Chunks     int    `json:"chunks"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
}

// ReviewCode reviews a body of code with the configured provider. Code
// larger than the chunk budget is split on structural boundaries and
// reviewed chunk by chunk, with the per-chunk reviews concatenated.
func (o *Orchestrator) ReviewCode(ctx context.Context, code, language string) (*ReviewOutcome, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if language == "" {
		language = "code"
	}

	ctx, span := startSpan(ctx, "codegen.review")
	defer span.End()

	provider, err := o.registry.Get(o.cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}

	chunks, err := splitForReview(code, language, o.cfg.ReviewChunkSize, o.cfg.ReviewChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("splitting code: %w", err)
	}

	outcome := &ReviewOutcome{Chunks: len(chunks)}
	var sb strings.Builder
	for i, chunk := range chunks {
		systemPrompt, userPrompt, err := o.prompts.Build(StageReview, StageInput{
			SourceCode: chunk,
			Language:   language,
		})
		if err != nil {
			return nil, err
		}
		resp, err := o.callWithRetry(ctx, o.logger, func(ctx context.Context) (*llm.LLMResponse, error) {
			return provider.ReviewCode(ctx, systemPrompt, userPrompt)
		})
		if err != nil {
			return nil, fmt.Errorf("reviewing chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if len(chunks) > 1 {
			fmt.Fprintf(&sb, "## Part %d of %d\n\n", i+1, len(chunks))
		}
		sb.WriteString(strings.TrimSpace(resp.Content))
		sb.WriteString("\n\n")
		outcome.TokensUsed += resp.TokensUsed
		outcome.ModelUsed = resp.ModelUsed
	}
	outcome.Review = strings.TrimSpace(sb.String())

	o.logger.Info("code review completed",
		slog.String("language", language),
		slog.Int("chunks", outcome.Chunks),
		slog.Int("tokens", outcome.TokensUsed))
	return outcome, nil
}

// ExplainCode generates standalone documentation for a body of code.
func (o *Orchestrator) ExplainCode(ctx context.Context, code, language string) (*ReviewOutcome, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if language == "" {
		language = "code"
	}

	ctx, span := startSpan(ctx, "codegen.explain")
	defer span.End()

	provider, err := o.registry.Get(o.cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}

	systemPrompt, userPrompt, err := o.prompts.Build(StageExplain, StageInput{
		SourceCode: code,
		Language:   language,
	})
	if err != nil {
		return nil, err
	}
	resp, err := o.callWithRetry(ctx, o.logger, func(ctx context.Context) (*llm.LLMResponse, error) {
		return provider.ExplainCode(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, err
	}
	return &ReviewOutcome{
		Review:     resp.Content,
		Chunks:     1,
		TokensUsed: resp.TokensUsed,
		ModelUsed:  resp.ModelUsed,
	}, nil
}

// splitForReview chunks code on structural boundaries so each provider
// call sees coherent units instead of mid-function cuts.
func splitForReview(code, language string, chunkSize, overlap int) ([]string, error) {
	if len(code) <= chunkSize {
		return []string{code}, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separatorsFor(language)),
	)
	chunks, err := splitter.SplitText(code)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []string{code}, nil
	}
	return chunks, nil
}

// separatorsFor orders split points from strongest to weakest structural
// boundary per language family.
func separatorsFor(language string) []string {
	switch strings.ToLower(language) {
	case "python":
		return []string{"\nclass ", "\ndef ", "\n\n", "\n", " "}
	case "go":
		return []string{"\nfunc ", "\ntype ", "\n\n", "\n", " "}
	case "java", "csharp":
		return []string{"\npublic ", "\nprivate ", "\nclass ", "\n\n", "\n", " "}
	case "typescript", "javascript":
		return []string{"\nfunction ", "\nclass ", "\nexport ", "\nconst ", "\n\n", "\n", " "}
	default:
		return []string{"\n\n", "\n", " "}
	}
}
