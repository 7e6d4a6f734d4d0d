// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the generator service URL space to its handlers.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ticketsmith/services/generator/handlers"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

// Deps carries everything the route table needs.
type Deps struct {
	Pipeline        handlers.Pipeline
	Registry        *llm.Registry
	DefaultProvider string
	ServiceVersion  string
	EnableMetrics   bool
}

// =============================================================================
// Route Setup
// =============================================================================

// SetupRoutes registers all generator service endpoints on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.Health(deps.ServiceVersion, deps.DefaultProvider))
	router.GET("/health/detailed", handlers.HealthDetailed(deps.ServiceVersion, deps.Registry))
	router.GET("/health/llm", handlers.HealthLLM(deps.Registry, deps.DefaultProvider))

	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/generate/code", handlers.GenerateCode(deps.Pipeline))
		v1.POST("/generate/review", handlers.ReviewCode(deps.Pipeline))
		v1.POST("/generate/explain", handlers.ExplainCode(deps.Pipeline))
		v1.POST("/generate/test", handlers.GenerateTests(deps.Pipeline))
		v1.GET("/generate/providers", handlers.ListProviders(deps.Registry, deps.DefaultProvider))
	}
}
