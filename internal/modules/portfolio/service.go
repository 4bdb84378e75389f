// Package portfolio builds portfolio snapshots from the brokerage account.
package portfolio

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/investbot/balancer/internal/domain"
)

// SnapshotService converts the live broker portfolio into a validated
// domain.PortfolioSnapshot in the reporting currency.
type SnapshotService struct {
	broker            domain.BrokerClient
	reportingCurrency domain.Currency
	log               zerolog.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(broker domain.BrokerClient, reportingCurrency domain.Currency, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		broker:            broker,
		reportingCurrency: reportingCurrency,
		log:               log.With().Str("service", "portfolio").Logger(),
	}
}

// Current fetches the broker portfolio and returns it as a snapshot.
// Accounts or positions in another currency fail with ErrCurrencyMismatch.
func (s *SnapshotService) Current() (*domain.PortfolioSnapshot, error) {
	bp, err := s.broker.GetPortfolio()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch broker portfolio: %w", err)
	}

	if bp.Currency != "" && domain.Currency(bp.Currency) != s.reportingCurrency {
		return nil, fmt.Errorf("%w: account reports in %s, expected %s",
			domain.ErrCurrencyMismatch, bp.Currency, s.reportingCurrency)
	}

	holdings := make([]domain.Holding, 0, len(bp.Positions))
	for _, pos := range bp.Positions {
		holdings = append(holdings, s.toHolding(pos))
	}

	snapshot, err := domain.NewPortfolioSnapshot(
		domain.NewMoney(decimal.NewFromFloat(bp.TotalValue), s.reportingCurrency),
		holdings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	s.log.Debug().
		Int("holdings", len(holdings)).
		Str("total_value", snapshot.TotalValue().Amount.String()).
		Msg("Built portfolio snapshot")

	return snapshot, nil
}

func (s *SnapshotService) toHolding(pos domain.BrokerPosition) domain.Holding {
	currency := s.reportingCurrency
	if pos.Currency != "" {
		currency = domain.Currency(pos.Currency)
	}

	lotSize := pos.LotSize
	if lotSize == 0 {
		// Currency and some fund positions come back without a lot size.
		s.log.Debug().Str("symbol", pos.Symbol).Msg("Position has no lot size, assuming 1")
		lotSize = 1
	}

	h := domain.Holding{
		Ticker:       pos.Symbol,
		InstrumentID: pos.FIGI,
		Name:         pos.Name,
		Type:         domain.ParseInstrumentType(pos.InstrumentType),
		Quantity:     decimal.NewFromFloat(pos.Quantity),
		Price:        domain.NewMoney(decimal.NewFromFloat(pos.CurrentPrice), currency),
		LotSize:      lotSize,
	}
	if pos.AvgPrice > 0 {
		avg := domain.NewMoney(decimal.NewFromFloat(pos.AvgPrice), currency)
		h.AveragePrice = &avg
	}
	if pos.UnrealizedPnL != 0 {
		pnl := domain.NewMoney(decimal.NewFromFloat(pos.UnrealizedPnL), currency)
		h.UnrealizedProfit = &pnl
	}
	return h
}
