package rebalancing

import (
	"errors"

	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/shopspring/decimal"
)

// ErrCandidateNotFound is returned when no tradeable instrument can be
// resolved for a bucket.
var ErrCandidateNotFound = errors.New("purchase candidate not found")

// PurchaseCandidate is the instrument bought into for an under-allocated bucket.
type PurchaseCandidate struct {
	Ticker       string          `json:"ticker"`
	InstrumentID string          `json:"instrument_id"`
	Name         string          `json:"name"`
	LotSize      int64           `json:"lot_size"`
	LastPrice    decimal.Decimal `json:"last_price"`
}

// PricePerLot returns last price × lot size.
func (c PurchaseCandidate) PricePerLot() decimal.Decimal {
	return c.LastPrice.Mul(decimal.NewFromInt(c.LotSize))
}

// PurchaseResolver resolves a bucket's configured purchase ticker to a
// tradeable instrument. It may block on external lookups.
type PurchaseResolver interface {
	Resolve(bucket allocation.BucketConfig) (*PurchaseCandidate, error)
}

// HoldingsFirstResolver answers from the snapshot when the purchase ticker is
// already held and delegates to Fallback otherwise.
type HoldingsFirstResolver struct {
	Snapshot *domain.PortfolioSnapshot
	Fallback PurchaseResolver
}

// Resolve implements PurchaseResolver.
func (r HoldingsFirstResolver) Resolve(bucket allocation.BucketConfig) (*PurchaseCandidate, error) {
	if r.Snapshot != nil {
		if h, ok := r.Snapshot.FindHolding(bucket.PurchaseTicker); ok {
			return &PurchaseCandidate{
				Ticker:       h.Ticker,
				InstrumentID: h.InstrumentID,
				Name:         h.Name,
				LotSize:      h.LotSize,
				LastPrice:    h.Price.Amount,
			}, nil
		}
	}
	if r.Fallback == nil {
		return nil, ErrCandidateNotFound
	}
	return r.Fallback.Resolve(bucket)
}
