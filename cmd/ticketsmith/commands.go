// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ticketsmith/services/generator"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

// --- Global Command Variables ---
var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "ticketsmith",
		Short: "A service that turns tickets into generated, tested code",
		Long: `Ticketsmith takes an issue tracker ticket and drives an LLM
through code generation, test generation, and test execution,
returning the full set of generated files and test results.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the generator HTTP server",
		Run:   runServe,
	}

	providersCmd = &cobra.Command{
		Use:   "providers",
		Short: "List registered LLM providers and their availability",
		Run:   runProviders,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(generator.Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (optional; env vars override it)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(versionCmd)
}

// runServe starts the HTTP server and blocks until shutdown.
func runServe(cmd *cobra.Command, args []string) {
	cfg, err := generator.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.Info("Starting generator",
		"port", cfg.Port,
		"provider", cfg.Provider,
		"workspace_root", cfg.WorkspaceRoot,
	)

	svc, err := generator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create generator service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Generator error: %v", err)
	}
}

// runProviders prints each registered provider with its health status.
func runProviders(cmd *cobra.Command, args []string) {
	cfg, err := generator.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry := llm.NewRegistry(slog.Default())
	llm.RegisterDefaults(registry)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	health := registry.Health(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := health[name]
		marker := " "
		if name == cfg.Provider {
			marker = "*"
		}
		state := "unavailable"
		if status.Available {
			state = "available"
		}
		fmt.Printf("%s %-12s %-12s model=%s key_configured=%t\n",
			marker, name, state, status.Model, status.APIKeyConfigured)
		if status.Error != "" {
			fmt.Printf("    error: %s\n", status.Error)
		}
	}
}
