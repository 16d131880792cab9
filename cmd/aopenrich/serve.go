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
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/aopenrich/pkg/ux"
	"github.com/AleutianAI/aopenrich/services/aop"
	"github.com/AleutianAI/aopenrich/services/aop/config"
	"github.com/AleutianAI/aopenrich/services/aop/observability"
	"github.com/AleutianAI/aopenrich/services/aop/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "serve loads the reference data once and answers enrichment requests under /v1/aop until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd.OutOrStdout(), debug)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides the config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Run gin in debug mode")
	return cmd
}

func (a *app) serve(ctx context.Context, out io.Writer, debug bool) error {
	cfg := a.cfg
	logger := a.logger.Slog()

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	metrics := observability.InitMetrics()
	stages, err := telemetry.NewMetrics(otel.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		return fmt.Errorf("create stage metrics: %w", err)
	}

	ref, err := loadReference(ctx, cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}

	svc := aop.NewService(ref, cfg).
		WithMetrics(metrics).
		WithStageMetrics(stages).
		WithLogger(logger)
	limiter := aop.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst).WithMetrics(metrics)
	handlers := aop.NewHandlers(svc).WithRateLimiter(limiter)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(telemetry.MetricsMiddleware(stages))
	router.Use(aop.RequestLogger(logger))
	router.Use(aop.CORS(cfg.Server.CORSOrigins))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	aop.RegisterRoutes(router.Group("/v1"), handlers)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	printBanner(out, cfg, len(svc.AOPs()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting aopenrich server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down aopenrich server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func printBanner(w io.Writer, cfg *config.Config, aops int) {
	fmt.Fprintln(w, ux.Styles.Title.Render("aopenrich "+aop.ServiceVersion))
	fmt.Fprintf(w, "  listening  http://%s/v1/aop\n", cfg.Server.Addr())
	fmt.Fprintf(w, "  reference  %s\n", describeSource(cfg.Reference))
	fmt.Fprintf(w, "  aops       %d enabled\n", aops)
	if cfg.Server.RateLimitRPS > 0 {
		fmt.Fprintf(w, "  rate limit %.3g req/s, burst %d\n", cfg.Server.RateLimitRPS, cfg.Server.RateBurst)
	}
}

func describeSource(rc config.ReferenceConfig) string {
	if rc.Source == config.SourceGCS {
		return "gs://" + rc.GCSBucket + "/" + rc.GCSPrefix
	}
	return rc.Dir
}
