// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ticketsmith/services/llm"
)

// probeTimeout bounds each local tool version check.
const probeTimeout = 3 * time.Second

// Health handles GET /health.
func Health(serviceVersion, defaultProvider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "generator",
			"version":  serviceVersion,
			"provider": defaultProvider,
		})
	}
}

// toolStatus reports whether a test-harness tool is on the PATH.
type toolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// probeTool runs `<tool> <arg>` and captures the first output line.
func probeTool(ctx context.Context, tool string, args ...string) toolStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, tool, args...).CombinedOutput()
	if err != nil {
		return toolStatus{Available: false}
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return toolStatus{Available: true, Version: strings.TrimSpace(version)}
}

// HealthDetailed handles GET /health/detailed.
//
// Description:
//
//	Probes the local test harness tools and every registered provider
//	on top of the basic liveness check. A missing tool does not fail
//	the endpoint; test execution for that ecosystem simply reports as
//	unavailable.
func HealthDetailed(serviceVersion string, registry *llm.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "generator",
			"version":   serviceVersion,
			"providers": registry.Health(ctx),
			"harness": gin.H{
				"node":   probeTool(ctx, "node", "--version"),
				"npm":    probeTool(ctx, "npm", "--version"),
				"python": probeTool(ctx, "python", "--version"),
				"go":     probeTool(ctx, "go", "version"),
				"git":    probeTool(ctx, "git", "--version"),
			},
		})
	}
}

// HealthLLM handles GET /health/llm.
//
// Description:
//
//	Reports per-provider availability from the registry. Returns 503
//	when the configured default provider is unavailable so load
//	balancers can rotate traffic away before generation requests fail.
func HealthLLM(registry *llm.Registry, defaultProvider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := registry.Health(c.Request.Context())

		status := http.StatusOK
		if s, ok := health[defaultProvider]; !ok || !s.Available {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"default":   defaultProvider,
			"providers": health,
		})
	}
}
