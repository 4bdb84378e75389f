package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/events"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/rebalancing"
)

// SnapshotProvider supplies the live portfolio snapshot
type SnapshotProvider interface {
	Current() (*domain.PortfolioSnapshot, error)
}

// RebalanceAnalyzer analyzes snapshots and plans rebalancing
type RebalanceAnalyzer interface {
	Analyze(snapshot *domain.PortfolioSnapshot) (allocation.AnalysisResult, error)
	CreatePlan(snapshot *domain.PortfolioSnapshot) (rebalancing.RebalancePlan, error)
}

// EventEmitter publishes monitor events
type EventEmitter interface {
	EmitTyped(module string, data events.EventData) events.Event
	EmitError(module string, err error, context map[string]interface{}) events.Event
}

const monitorModule = "deviation_monitor"

// DeviationMonitorJob analyzes the live portfolio and reports new allocation
// problems. A result identical to the last reported one is not reported again.
type DeviationMonitorJob struct {
	snapshots SnapshotProvider
	analyzer  RebalanceAnalyzer
	events    EventEmitter
	log       zerolog.Logger

	mu       sync.Mutex
	lastSent *allocation.AnalysisResult
}

// NewDeviationMonitorJob creates a new deviation monitor job
func NewDeviationMonitorJob(snapshots SnapshotProvider, analyzer RebalanceAnalyzer, emitter EventEmitter, log zerolog.Logger) *DeviationMonitorJob {
	return &DeviationMonitorJob{
		snapshots: snapshots,
		analyzer:  analyzer,
		events:    emitter,
		log:       log.With().Str("job", monitorModule).Logger(),
	}
}

// Name returns the job name
func (j *DeviationMonitorJob) Name() string {
	return monitorModule
}

// Run executes one monitoring pass
func (j *DeviationMonitorJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	snapshot, err := j.snapshots.Current()
	if err != nil {
		return j.fail("snapshot", err)
	}

	result, err := j.analyzer.Analyze(snapshot)
	if errors.Is(err, allocation.ErrNonPositiveTotalValue) {
		j.log.Warn().Msg("Portfolio is empty, nothing to monitor")
		return nil
	}
	if err != nil {
		return j.fail("analyze", err)
	}

	if !result.HasDeviations() {
		// A problem that recurs after a recovery is reported again.
		j.lastSent = nil
		j.log.Info().Msg("Portfolio is within tolerance")
		return nil
	}

	if j.lastSent != nil && j.lastSent.Equal(result) {
		j.log.Info().Msg("Deviations unchanged since last report, skipping")
		return nil
	}

	j.events.EmitTyped(monitorModule, deviationsData(snapshot, result))

	plan, err := j.analyzer.CreatePlan(snapshot)
	if err != nil {
		return j.fail("plan", err)
	}
	j.events.EmitTyped(monitorModule, &events.RebalancePlanCreatedData{
		Sells:                 len(plan.SellActions()),
		Buys:                  len(plan.BuyActions()),
		TotalCashFromSales:    plan.TotalCashFromSales().String(),
		TotalCashForPurchases: plan.TotalCashForPurchases().String(),
	})

	j.lastSent = &result
	j.log.Info().
		Int("deviations", len(result.Deviations)).
		Int("concentration_problems", len(result.ConcentrationProblems)).
		Msg("Reported portfolio deviations")

	return nil
}

func (j *DeviationMonitorJob) fail(stage string, err error) error {
	j.events.EmitError(monitorModule, err, map[string]interface{}{"stage": stage})
	return fmt.Errorf("deviation monitor %s failed: %w", stage, err)
}

func deviationsData(snapshot *domain.PortfolioSnapshot, result allocation.AnalysisResult) *events.DeviationsDetectedData {
	data := &events.DeviationsDetectedData{
		TotalValue:            snapshot.TotalValue().Amount.String(),
		Deviations:            make([]events.BucketDeviation, 0, len(result.Deviations)),
		ConcentrationProblems: make([]events.ConcentrationBreach, 0, len(result.ConcentrationProblems)),
	}
	for _, d := range result.Deviations {
		data.Deviations = append(data.Deviations, events.BucketDeviation{
			Bucket:    string(d.Bucket),
			ActualPct: d.ActualPct.String(),
			TargetPct: d.TargetPct.String(),
		})
	}
	for _, c := range result.ConcentrationProblems {
		data.ConcentrationProblems = append(data.ConcentrationProblems, events.ConcentrationBreach{
			Bucket:    string(c.Bucket),
			Ticker:    c.Holding.Ticker,
			ActualPct: c.ActualPct.String(),
			LimitPct:  c.LimitPct.String(),
		})
	}
	return data
}
