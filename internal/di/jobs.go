package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/clientdata"
	"github.com/investbot/balancer/internal/config"
	"github.com/investbot/balancer/internal/scheduler"
)

// RegisterJobs creates jobs and registers them with the scheduler.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{}

	instances.ClientDataCleanup = clientdata.NewCleanupJob(container.ClientDataRepo, log)
	if err := container.Scheduler.AddJob(cfg.Monitor.CleanupSchedule, instances.ClientDataCleanup); err != nil {
		return nil, fmt.Errorf("failed to register client data cleanup: %w", err)
	}

	if cfg.Monitor.Enabled {
		instances.DeviationMonitor = scheduler.NewDeviationMonitorJob(
			container.SnapshotService,
			container.RebalancingService,
			container.EventManager,
			log,
		)
		if err := container.Scheduler.AddJob(cfg.Monitor.Schedule, instances.DeviationMonitor); err != nil {
			return nil, fmt.Errorf("failed to register deviation monitor: %w", err)
		}
	} else {
		log.Info().Msg("Deviation monitor disabled")
	}

	return instances, nil
}
