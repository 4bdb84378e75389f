package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/clientdata"
	"github.com/investbot/balancer/internal/clients/broker"
	"github.com/investbot/balancer/internal/clients/openfigi"
	"github.com/investbot/balancer/internal/config"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/events"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/instruments"
	"github.com/investbot/balancer/internal/modules/portfolio"
	"github.com/investbot/balancer/internal/modules/rebalancing"
)

// InitializeRepositories creates repositories and makes sure a bucket table
// is stored. A configured bucket file replaces the stored table.
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.AllocationRepo = allocation.NewRepository(container.ConfigDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())

	seeded, err := container.AllocationRepo.SeedDefaults(allocation.DefaultBucketTable())
	if err != nil {
		return fmt.Errorf("failed to seed bucket table: %w", err)
	}
	if seeded {
		log.Info().Msg("Seeded default bucket table")
	}

	if cfg.BucketsFile != "" {
		table, err := allocation.LoadBucketFile(cfg.BucketsFile)
		if err != nil {
			return fmt.Errorf("failed to load bucket file: %w", err)
		}
		if err := container.AllocationRepo.SaveBucketTable(table); err != nil {
			return fmt.Errorf("failed to save bucket file table: %w", err)
		}
		log.Info().Str("file", cfg.BucketsFile).Int("buckets", len(table.Buckets())).Msg("Bucket table loaded from file")
	}

	return nil
}

// InitializeServices creates clients and services. A nil BrokerClient on the
// container is replaced by the HTTP client for cfg.BrokerServiceURL.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.AllocationRepo == nil || container.ClientDataRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	if container.BrokerClient == nil {
		container.BrokerClient = broker.NewClient(cfg.BrokerServiceURL, log)
	}
	container.OpenFIGIClient = openfigi.NewClient(cfg.OpenFIGIAPIKey, container.ClientDataRepo, log)

	container.EventManager = events.NewManager(log)

	container.InstrumentResolver = instruments.
		NewBrokerResolver(container.BrokerClient, container.ClientDataRepo, log).
		WithFIGILookup(container.OpenFIGIClient, openfigi.ExchangeMoscow)

	container.SnapshotService = portfolio.NewSnapshotService(
		container.BrokerClient,
		domain.Currency(cfg.ReportingCurrency),
		log,
	)

	container.RebalancingService = rebalancing.NewService(
		container.AllocationRepo,
		container.InstrumentResolver,
		log,
	)

	return nil
}
