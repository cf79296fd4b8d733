package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jrholliday/VeriPy/adapters/httpapi"
	"github.com/jrholliday/VeriPy/adapters/postgres"
	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/adapters/stats/engine"
	"github.com/jrholliday/VeriPy/app"
	"github.com/jrholliday/VeriPy/internal"
	"github.com/jrholliday/VeriPy/internal/config"
	"github.com/jrholliday/VeriPy/internal/observability"
	"github.com/jrholliday/VeriPy/ports"
)

func main() {
	godotenv.Load()
	logger := internal.NewDefaultLogger()

	if err := run(logger); err != nil {
		logger.Error("server exited: %v", err)
		os.Exit(1)
	}
}

func run(logger *internal.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo ports.ScoreRepositoryPort
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		repo = postgres.NewScoreRepository(db)
		logger.Info("score persistence enabled")
	} else {
		logger.Warn("DATABASE_URL not set, running without persistence")
	}

	eng := engine.New(rng.New())
	if cfg.Engine.Workers > 0 {
		eng.SetWorkers(cfg.Engine.Workers)
	}

	service := app.NewVerificationService(eng, repo)
	service.SetMetrics(observability.NewMetrics())

	server := httpapi.NewServer(":"+cfg.Server.Port, service, repo, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
