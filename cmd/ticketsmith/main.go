// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ticketsmith runs the ticket-driven code generation service.
//
// # Environment Variables
//
//   - GENERATOR_PORT: HTTP server port (default: 8093)
//   - GENERATOR_PROVIDER: default LLM provider - openai, azure, anthropic (default: openai)
//   - GENERATOR_WORKSPACE_ROOT: parent directory for test workspaces
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o ticketsmith ./cmd/ticketsmith
//
//	# Run the server
//	./ticketsmith serve --config config.yaml
//
//	# Inspect provider availability
//	./ticketsmith providers
package main

import (
	"log"
	"log/slog"
	"os"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
