package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/nekroforge/preset-switch/pkg/api"
	"github.com/nekroforge/preset-switch/pkg/bootstrap"
	"github.com/nekroforge/preset-switch/pkg/config"
	"github.com/nekroforge/preset-switch/pkg/db"
	"github.com/nekroforge/preset-switch/pkg/intake"
	"github.com/nekroforge/preset-switch/pkg/preset"
	"github.com/nekroforge/preset-switch/pkg/preset/repository"
	"github.com/nekroforge/preset-switch/pkg/tasks"
)

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Level:           log.InfoLevel,
		TimeFormat:      time.Kitchen,
	})

	envs, _ := config.LoadConfig(true)
	if level, err := log.ParseLevel(envs.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.Info("Using database path", "path", envs.DBPath)

	sqlxDB, err := db.Open(envs.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		panic(errors.Wrap(err, "Failed to open database"))
	}
	defer func() {
		if err := sqlxDB.Close(); err != nil {
			logger.Error("Error closing database", "error", err)
		}
	}()

	if err := db.RunMigrations(sqlxDB.DB, logger); err != nil {
		panic(errors.Wrap(err, "Failed to run migrations"))
	}

	natsURL := envs.NatsURL
	if natsURL == "" {
		natsServer, err := bootstrap.StartEmbeddedNATSServer(logger)
		if err != nil {
			panic(errors.Wrap(err, "Failed to start NATS server"))
		}
		defer natsServer.Shutdown()
		natsURL = natsServer.ClientURL()
	}

	nc, err := bootstrap.NewNatsClient(natsURL)
	if err != nil {
		panic(errors.Wrap(err, "Failed to connect to NATS"))
	}
	defer nc.Close()
	logger.Info("Connected to NATS", "url", natsURL)

	repo := repository.NewRepository(logger, sqlxDB)
	presetService := preset.NewService(logger, repo)
	matcher := preset.NewMatcher(logger, presetService)
	taskService := tasks.NewService(logger, sqlxDB)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	intakeService := intake.NewService(logger, nc, matcher, presetService, taskService)
	if err := intakeService.Start(appCtx); err != nil {
		panic(errors.Wrap(err, "Failed to start intake subscriptions"))
	}
	defer intakeService.Stop()

	apiServer := api.NewServer(logger, presetService, matcher, taskService, envs.WebAssetPath)
	httpServer := &http.Server{
		Addr:    ":" + envs.HTTPPort,
		Handler: apiServer.Router(),
	}

	// Start HTTP server in a goroutine so it doesn't block signal handling
	go func() {
		logger.Info("Starting admin HTTP server", "address", "http://localhost:"+envs.HTTPPort)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			panic(errors.Wrap(err, "Unable to start server"))
		}
	}()

	<-appCtx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
}
