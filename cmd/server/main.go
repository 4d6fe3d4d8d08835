package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/chunkwise/internal/api"
	"github.com/dgallion1/chunkwise/internal/config"
	"github.com/dgallion1/chunkwise/internal/extract"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	planner, err := pipeline.LoadPlanner(cfg.PlansFile)
	if err != nil {
		log.Error("load plans", "path", cfg.PlansFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	claude := extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)

	// Initialize pipeline.
	pool := pipeline.NewAgentPool(claude, cfg.MaxConcurrentExtract, log.With("component", "agents"))
	orch := pipeline.NewOrchestrator(pool, claude, planner, cfg.BatchTimeout, log.With("component", "orchestrator"))
	sessions := pipeline.NewSessionStore(cfg.SessionTTL, cfg.MaxSessions)
	go sessions.Run(ctx, time.Minute, log)

	if cfg.PlansFile != "" {
		go func() {
			if err := pipeline.WatchPlans(ctx, cfg.PlansFile, orch, log); err != nil {
				log.Warn("plans file will not be reloaded", "error", err)
			}
		}()
	}

	// Initialize HTTP server.
	srv := api.NewServer(sessions, orch, claude, log, cfg)

	// Query batches hold the connection until every sub-agent replies.
	var writeTimeout time.Duration
	if cfg.BatchTimeout > 0 {
		writeTimeout = cfg.BatchTimeout + time.Minute
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		claude.Close()
	}()

	log.Info("starting chunkwise",
		"port", cfg.Port,
		"model", claude.Model(),
		"max_concurrent_extract", cfg.MaxConcurrentExtract,
		"batch_timeout", cfg.BatchTimeout.String(),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
