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

	"github.com/atelierops/api/internal/app"
	"github.com/atelierops/api/internal/audit"
	"github.com/atelierops/api/internal/config"
	"github.com/atelierops/api/internal/db"
	"github.com/atelierops/api/internal/importer"
	"github.com/atelierops/api/internal/importrun"
	"github.com/atelierops/api/internal/metrics"
	"github.com/atelierops/api/internal/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireDatabase()
	}
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := metrics.NewRegistry()
	imp := importer.New(postgres.New(pool), logger, reg)
	// Runs outlive the request that started them but stop with the server.
	manager := importrun.NewManager(ctx, imp, audit.NewLogger(pool), logger)

	router, err := app.NewRouter(cfg, app.Deps{Imports: manager, DB: pool, Metrics: reg, Logger: logger})
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("api_started", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := manager.Wait(shutdownCtx); err != nil {
		logger.Error("import runs still active at shutdown", "error", err)
	}
}
