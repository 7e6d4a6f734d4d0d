// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the generator service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/ticketsmith/services/codegen"
	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
	"github.com/AleutianAI/ticketsmith/services/generator/observability"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

var tracer = otel.Tracer("aleutian.ticketsmith.handlers")

// Pipeline is the slice of the generation engine the handlers need.
// *codegen.Orchestrator satisfies it; tests substitute stubs.
type Pipeline interface {
	Generate(ctx context.Context, req *datatypes.GenerationRequest) (*datatypes.GenerationResult, error)
	ReviewCode(ctx context.Context, code, language string) (*codegen.ReviewOutcome, error)
	ExplainCode(ctx context.Context, code, language string) (*codegen.ReviewOutcome, error)
	GenerateTestsFor(ctx context.Context, sources []*datatypes.GeneratedFile, opts *datatypes.GenerationOptions) (*codegen.TestGenerationOutcome, error)
}

// bindingErrorMessage flattens validator errors into a caller-readable
// message instead of the raw struct-tag dump.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "field '" + fe.Field() + "' failed validation: " + fe.Tag()
	}
	return err.Error()
}

// observe records the request metrics when metrics are initialized.
func observe(endpoint, outcome string, start time.Time, tokens int) {
	m := observability.Metrics()
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		m.TokensTotal.WithLabelValues(endpoint).Add(float64(tokens))
	}
}

// GenerateCode handles POST /v1/generate/code.
//
// Description:
//
//	Runs the full ticket-to-code pipeline. Invalid requests return 400;
//	pipeline failures return 200 with success=false so callers always
//	get a structured result for a well-formed request.
func GenerateCode(pipeline Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.GenerateCode")
		defer span.End()
		start := time.Now()

		var req datatypes.GenerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observe("generate_code", "bad_request", start, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingErrorMessage(err)})
			return
		}

		result, err := pipeline.Generate(ctx, &req)
		if err != nil {
			observe("generate_code", "bad_request", start, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome := "success"
		if !result.Success {
			outcome = "pipeline_failure"
		}
		observe("generate_code", outcome, start, result.LLMTokensUsed)
		if m := observability.Metrics(); m != nil && result.Success {
			m.GeneratedFilesTotal.Add(float64(len(result.GeneratedFiles)))
			for _, tr := range result.TestResults {
				verdict := "failed"
				if tr.Passed {
					verdict = "passed"
				}
				m.TestRunsTotal.WithLabelValues(verdict).Inc()
			}
		}
		c.JSON(http.StatusOK, result)
	}
}

// reviewRequest is the payload for POST /v1/generate/review.
type reviewRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

// ReviewCode handles POST /v1/generate/review.
func ReviewCode(pipeline Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ReviewCode")
		defer span.End()
		start := time.Now()

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observe("review", "bad_request", start, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingErrorMessage(err)})
			return
		}

		outcome, err := pipeline.ReviewCode(ctx, req.Code, req.Language)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, codegen.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			observe("review", "error", start, 0)
			slog.Error("code review failed", slog.String("error", err.Error()))
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		observe("review", "success", start, outcome.TokensUsed)
		c.JSON(http.StatusOK, outcome)
	}
}

// explainRequest is the payload for POST /v1/generate/explain.
type explainRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

// ExplainCode handles POST /v1/generate/explain.
func ExplainCode(pipeline Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ExplainCode")
		defer span.End()
		start := time.Now()

		var req explainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observe("explain", "bad_request", start, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingErrorMessage(err)})
			return
		}

		outcome, err := pipeline.ExplainCode(ctx, req.Code, req.Language)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, codegen.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			observe("explain", "error", start, 0)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		observe("explain", "success", start, outcome.TokensUsed)
		c.JSON(http.StatusOK, outcome)
	}
}

// testGenRequest is the payload for POST /v1/generate/test.
type testGenRequest struct {
	Files   []*datatypes.GeneratedFile   `json:"files" binding:"required,min=1"`
	Options *datatypes.GenerationOptions `json:"options"`
}

// GenerateTests handles POST /v1/generate/test.
func GenerateTests(pipeline Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.GenerateTests")
		defer span.End()
		start := time.Now()

		var req testGenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observe("generate_tests", "bad_request", start, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": bindingErrorMessage(err)})
			return
		}

		outcome, err := pipeline.GenerateTestsFor(ctx, req.Files, req.Options)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, codegen.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			observe("generate_tests", "error", start, 0)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		observe("generate_tests", "success", start, outcome.TokensUsed)
		c.JSON(http.StatusOK, outcome)
	}
}

// providerInfo is one entry in the providers listing.
type providerInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
}

// ListProviders handles GET /v1/generate/providers.
func ListProviders(registry *llm.Registry, defaultProvider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ListProviders")
		defer span.End()

		health := registry.Health(ctx)
		providers := make([]providerInfo, 0, len(health))
		for _, name := range registry.Names() {
			status := health[name]
			providers = append(providers, providerInfo{
				Name:      name,
				Model:     status.Model,
				Available: status.Available,
				Default:   name == defaultProvider,
			})
		}
		c.JSON(http.StatusOK, gin.H{"providers": providers})
	}
}
