// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator provides the ticket-driven code generation service.
//
// The service exposes an HTTP surface over the codegen pipeline: ticket
// in, generated source, tests, docs, and test results out. It owns the
// provider registry, the orchestrator, and the observability plumbing;
// the handlers and the codegen engine stay transport-agnostic.
//
// # Usage
//
//	cfg, err := generator.LoadConfig("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := generator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/ticketsmith/services/codegen"
	"github.com/AleutianAI/ticketsmith/services/generator/observability"
	"github.com/AleutianAI/ticketsmith/services/generator/routes"
	"github.com/AleutianAI/ticketsmith/services/llm"
)

// Version is the service version reported by the health endpoints.
// Overridden at build time via -ldflags.
var Version = "dev"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the generator service.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// service is the concrete Service implementation.
type service struct {
	config        Config
	registry      *llm.Registry
	pipeline      *codegen.Orchestrator
	router        *gin.Engine
	tracerCleanup func(context.Context)
}

// =============================================================================
// Construction
// =============================================================================

// New creates a fully initialized generator service.
//
// # Description
//
// Initialization order:
//  1. Applies configuration defaults
//  2. Initializes OpenTelemetry tracing (skipped without an endpoint)
//  3. Initializes Prometheus metrics
//  4. Builds the provider registry and verifies the default provider
//  5. Creates the codegen orchestrator
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run generator service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - Fails fast when the default provider has no registered factory
//     or its credentials are missing (the factories reject
//     construction without an API key).
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for generation")
	}

	if err := s.initRegistry(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize provider registry: %w", err)
	}

	s.initPipeline()
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting generator server",
		"port", s.config.Port,
		"provider", s.config.Provider,
	)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	def := DefaultServiceConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = def.WorkspaceRoot
	}
	if cfg.MaxFileLines == 0 {
		cfg.MaxFileLines = def.MaxFileLines
	}
	if cfg.TestTimeoutSeconds == 0 {
		cfg.TestTimeoutSeconds = def.TestTimeoutSeconds
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.GinMode == "" {
		cfg.GinMode = def.GinMode
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
//   - No-op when OTelEndpoint is empty
func (s *service) initTracer() (func(context.Context), error) {
	if s.config.OTelEndpoint == "" {
		slog.Info("OTel endpoint not configured, trace export disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("generator-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRegistry builds the provider registry and verifies the configured
// default provider resolves.
func (s *service) initRegistry() error {
	s.registry = llm.NewRegistry(slog.Default())
	llm.RegisterDefaults(s.registry)

	if s.config.RateLimitRPS > 0 {
		s.registry.SetRateLimit(s.config.RateLimitRPS, 1)
	}

	if _, err := s.registry.Get(s.config.Provider); err != nil {
		return fmt.Errorf("default provider %q: %w", s.config.Provider, err)
	}
	return nil
}

// initPipeline creates the codegen orchestrator from the service config.
func (s *service) initPipeline() {
	cfg := codegen.NewConfig(
		codegen.WithProvider(s.config.Provider),
		codegen.WithWorkspaceRoot(s.config.WorkspaceRoot),
		codegen.WithKeepWorkspaces(s.config.KeepWorkspaces),
		codegen.WithMaxFileLines(s.config.MaxFileLines),
		codegen.WithTestTimeout(time.Duration(s.config.TestTimeoutSeconds)*time.Second),
		codegen.WithMaxRetries(s.config.MaxRetries),
	)
	s.pipeline = codegen.NewOrchestrator(s.registry, cfg, nil, slog.Default())
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("generator-service"))

	routes.SetupRoutes(s.router, routes.Deps{
		Pipeline:        s.pipeline,
		Registry:        s.registry,
		DefaultProvider: s.config.Provider,
		ServiceVersion:  Version,
		EnableMetrics:   s.config.EnableMetrics,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
