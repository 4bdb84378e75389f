// Package di wires databases, clients, services and jobs into a Container.
package di

import (
	"github.com/investbot/balancer/internal/clientdata"
	"github.com/investbot/balancer/internal/clients/openfigi"
	"github.com/investbot/balancer/internal/database"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/events"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/instruments"
	"github.com/investbot/balancer/internal/modules/portfolio"
	"github.com/investbot/balancer/internal/modules/rebalancing"
	"github.com/investbot/balancer/internal/scheduler"
)

// Container holds all application dependencies. It is created by Wire.
type Container struct {
	// Databases
	ConfigDB     *database.DB // bucket table and allocation settings
	ClientDataDB *database.DB // external API cache

	// Repositories
	AllocationRepo *allocation.Repository
	ClientDataRepo *clientdata.Repository

	// Clients
	BrokerClient   domain.BrokerClient
	OpenFIGIClient *openfigi.Client

	// Services
	EventManager       *events.Manager
	InstrumentResolver *instruments.BrokerResolver
	SnapshotService    *portfolio.SnapshotService
	RebalancingService *rebalancing.Service

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	DeviationMonitor  *scheduler.DeviationMonitorJob
	ClientDataCleanup scheduler.Job
}

// All returns every job instance that was created
func (j *JobInstances) All() []scheduler.Job {
	jobs := []scheduler.Job{j.ClientDataCleanup}
	if j.DeviationMonitor != nil {
		jobs = append(jobs, j.DeviationMonitor)
	}
	return jobs
}

// Databases returns the open databases
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.ConfigDB, c.ClientDataDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes all databases
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
