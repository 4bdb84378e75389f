package rebalancing

import (
	"errors"
	"fmt"

	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service runs the analysis and planning pipeline against the active bucket table.
// It holds no state between calls and is safe for concurrent use.
type Service struct {
	tables   allocation.TableProvider
	resolver PurchaseResolver
	log      zerolog.Logger
}

// NewService creates a rebalancing service. resolver is consulted only for
// purchase tickers the snapshot does not already hold; it may be nil.
func NewService(tables allocation.TableProvider, resolver PurchaseResolver, log zerolog.Logger) *Service {
	return &Service{
		tables:   tables,
		resolver: resolver,
		log:      log.With().Str("service", "rebalancing").Logger(),
	}
}

// Analyze classifies the snapshot and reports deviations and concentration
// problems. A non-positive total value yields an empty result together with
// allocation.ErrNonPositiveTotalValue.
func (s *Service) Analyze(snapshot *domain.PortfolioSnapshot) (allocation.AnalysisResult, error) {
	table, err := s.tables.GetBucketTable()
	if err != nil {
		return allocation.AnalysisResult{}, fmt.Errorf("failed to load bucket table: %w", err)
	}

	result, err := allocation.Analyze(snapshot, table)
	if errors.Is(err, allocation.ErrNonPositiveTotalValue) {
		s.log.Warn().
			Str("total_value", snapshot.TotalValue().Amount.String()).
			Msg("Portfolio total value is not positive, skipping analysis")
	}
	return result, err
}

// CreatePlan sells concentrated holdings and reinvests the freed cash into
// deficit buckets.
func (s *Service) CreatePlan(snapshot *domain.PortfolioSnapshot) (RebalancePlan, error) {
	return s.createPlan(snapshot, nil)
}

// CreatePlanWithCash is CreatePlan with an explicit buy budget replacing the
// cash freed by sells.
func (s *Service) CreatePlanWithCash(snapshot *domain.PortfolioSnapshot, availableCash decimal.Decimal) (RebalancePlan, error) {
	return s.createPlan(snapshot, &availableCash)
}

func (s *Service) createPlan(snapshot *domain.PortfolioSnapshot, availableCash *decimal.Decimal) (RebalancePlan, error) {
	table, err := s.tables.GetBucketTable()
	if err != nil {
		return RebalancePlan{}, fmt.Errorf("failed to load bucket table: %w", err)
	}

	analysis, err := allocation.Analyze(snapshot, table)
	if errors.Is(err, allocation.ErrNonPositiveTotalValue) {
		s.log.Warn().
			Str("total_value", snapshot.TotalValue().Amount.String()).
			Msg("Portfolio total value is not positive, returning empty plan")
		return AssemblePlan(nil, nil), nil
	}
	if err != nil {
		return RebalancePlan{}, err
	}

	sells := NewSellPlanner(s.log).Plan(analysis.ConcentrationProblems, snapshot.TotalValue().Amount)

	cash := AssemblePlan(sells, nil).TotalCashFromSales()
	if availableCash != nil {
		cash = *availableCash
	}

	resolver := HoldingsFirstResolver{Snapshot: snapshot, Fallback: s.resolver}
	buys := NewBuyPlanner(resolver, s.log).Plan(analysis.Deviations, cash, table)

	plan := AssemblePlan(sells, buys)
	s.log.Info().
		Int("sells", len(sells)).
		Int("buys", len(buys)).
		Str("cash_from_sales", plan.TotalCashFromSales().String()).
		Str("buy_budget", cash.String()).
		Msg("Rebalance plan created")

	return plan, nil
}
