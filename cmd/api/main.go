package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"renovateAi/internal/app"
	"renovateAi/internal/config"
	"renovateAi/internal/logging"
	"renovateAi/internal/server"
	"renovateAi/internal/sessions"
	"renovateAi/internal/vision"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpClient := &http.Client{Timeout: 20 * time.Second}
	var static http.Handler
	if info, err := os.Stat("web"); err == nil && info.IsDir() {
		static = http.FileServer(http.Dir("web"))
	}

	srv := server.New(server.Options{
		Port: cfg.Port,
		Sessions: sessions.Handler{
			Store:           a.Store,
			Machine:         a.Machine,
			Analyzer:        a.Analyzer,
			Batches:         a.Orchestrator,
			Uploader:        a.Uploader,
			Events:          a.Events,
			Metrics:         a.Metrics,
			Logger:          logger.Named("sessions"),
			Client:          httpClient,
			DefaultConcepts: cfg.Policy.DefaultConceptCount,
			AnalysisTimeout: cfg.Policy.AnalysisTimeout,
		},
		Vision: vision.Handler{
			Analyzer: a.Analyzer,
			Renderer: a.Images,
			Client:   httpClient,
		},
		Metrics:      a.Metrics,
		Logger:       logger,
		WriteTimeout: batchBudget(cfg.Policy),
		Static:       static,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	return nil
}

// batchBudget is the longest a concept batch can take: concepts run in
// parallel, so it is one primary concept's full retry budget plus slack.
func batchBudget(p config.PolicyConfig) time.Duration {
	attempts := time.Duration(p.MaxRetries + 1)
	return attempts*(p.AttemptTimeout+p.ValidationTimeout) + 30*time.Second
}
