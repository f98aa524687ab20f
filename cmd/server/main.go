package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/xmlgest/internal/api"
	"github.com/dgallion1/xmlgest/internal/config"
	"github.com/dgallion1/xmlgest/internal/graphstore"
	"github.com/dgallion1/xmlgest/internal/ingest"
	"github.com/dgallion1/xmlgest/internal/pipeline"
	"github.com/dgallion1/xmlgest/internal/source"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	gs := graphstore.NewClient(cfg.GraphstoreURL, cfg.GraphstoreAPIKey)
	src := source.NewResolver(source.Config{
		Root:      cfg.ImportRoot,
		AllowFile: cfg.AllowFileURLs,
		MaxBytes:  cfg.MaxFetchBytes,
		Timeout:   cfg.FetchTimeout,
	})
	loader := ingest.NewLoader(src, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, loader, src, gs, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(loader, orch, gs, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		gs.Close()
	}()

	log.Info("starting xmlgest", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
