// Package main is the entry point of the portfolio balancer service.
// It serves allocation analysis and dry-run rebalancing plans over HTTP and
// runs the scheduled deviation monitor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/investbot/balancer/internal/config"
	"github.com/investbot/balancer/internal/di"
	allocationhandlers "github.com/investbot/balancer/internal/modules/allocation/handlers"
	portfoliohandlers "github.com/investbot/balancer/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/investbot/balancer/internal/modules/rebalancing/handlers"
	"github.com/investbot/balancer/internal/server"
	"github.com/investbot/balancer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("broker", cfg.BrokerServiceURL).
		Str("currency", cfg.ReportingCurrency).
		Msg("Starting balancer")

	container, jobs, err := di.Wire(cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Broker:    container.BrokerClient,
		Databases: container.Databases(),
		Modules: []server.RouteRegistrar{
			allocationhandlers.NewHandler(container.AllocationRepo, log),
			portfoliohandlers.NewHandler(container.SnapshotService, log),
			rebalancinghandlers.NewHandler(container.RebalancingService, container.SnapshotService, log),
		},
		Jobs: jobs.All(),
	})

	container.Scheduler.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Balancer started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
