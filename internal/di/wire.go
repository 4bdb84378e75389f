package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/config"
	"github.com/investbot/balancer/internal/domain"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order: databases, repositories, services, jobs.
// brokerClient is optional; nil uses the HTTP client from cfg.
func Wire(cfg *config.Config, log zerolog.Logger, brokerClient domain.BrokerClient) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}
	container.BrokerClient = brokerClient

	if err := InitializeRepositories(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
