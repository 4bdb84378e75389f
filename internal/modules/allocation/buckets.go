// Package allocation classifies holdings into strategic buckets and measures
// how far the portfolio has drifted from its target allocation.
package allocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/investbot/balancer/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidBucketTable is returned when a bucket table fails validation.
	ErrInvalidBucketTable = errors.New("invalid bucket table")
	// ErrUnknownBucket is returned when a bucket id is not in the table.
	ErrUnknownBucket = errors.New("unknown bucket")
)

var hundred = decimal.NewFromInt(100)

// BucketID identifies a strategic allocation bucket
type BucketID string

const (
	BucketCoreEquity       BucketID = "core-equity"
	BucketSatelliteEquity  BucketID = "satellite-equity"
	BucketFixedIncome      BucketID = "fixed-income"
	BucketDefensive        BucketID = "defensive"
	BucketLiquidityReserve BucketID = "liquidity-reserve"

	// Unclassified is assigned to holdings no rule matches.
	Unclassified BucketID = "unclassified"
)

// RuleKind is the kind of classification rule a bucket uses
type RuleKind string

const (
	RuleFixedTicker    RuleKind = "fixed-ticker"
	RuleTickerSet      RuleKind = "ticker-set"
	RuleInstrumentType RuleKind = "instrument-type"
)

// rulePriority is the order in which rule kinds are evaluated.
var rulePriority = []RuleKind{RuleFixedTicker, RuleTickerSet, RuleInstrumentType}

// ClassificationRule decides which holdings belong to a bucket.
type ClassificationRule struct {
	Kind           RuleKind              `json:"kind"`
	Tickers        []string              `json:"tickers,omitempty"`
	InstrumentType domain.InstrumentType `json:"instrument_type,omitempty"`
}

// FixedTicker builds a rule matching exactly one ticker.
func FixedTicker(ticker string) ClassificationRule {
	return ClassificationRule{Kind: RuleFixedTicker, Tickers: []string{ticker}}
}

// TickerSet builds a rule matching any of the given tickers.
func TickerSet(tickers ...string) ClassificationRule {
	return ClassificationRule{Kind: RuleTickerSet, Tickers: tickers}
}

// ByInstrumentType builds a rule matching an instrument type.
func ByInstrumentType(t domain.InstrumentType) ClassificationRule {
	return ClassificationRule{Kind: RuleInstrumentType, InstrumentType: t}
}

func (r ClassificationRule) validate() error {
	switch r.Kind {
	case RuleFixedTicker:
		if len(r.Tickers) != 1 {
			return fmt.Errorf("fixed-ticker rule needs exactly one ticker, got %d", len(r.Tickers))
		}
	case RuleTickerSet:
		if len(r.Tickers) == 0 {
			return fmt.Errorf("ticker-set rule needs at least one ticker")
		}
	case RuleInstrumentType:
		if r.InstrumentType == "" {
			return fmt.Errorf("instrument-type rule needs an instrument type")
		}
		return nil
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	for _, t := range r.Tickers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%s rule has an empty ticker", r.Kind)
		}
	}
	return nil
}

// BucketConfig is one row of the bucket table.
type BucketConfig struct {
	ID        BucketID        `json:"id"`
	TargetPct decimal.Decimal `json:"target_pct"`
	// ConcentrationLimit caps a single holding's share of the portfolio. Nil means exempt.
	ConcentrationLimit *decimal.Decimal    `json:"concentration_limit,omitempty"`
	Rule               ClassificationRule `json:"rule"`
	// PurchaseTicker is bought into when the bucket is under-allocated. Empty means never buy.
	PurchaseTicker string `json:"purchase_ticker,omitempty"`
}

// HasConcentrationLimit reports whether the bucket caps individual holdings.
func (b BucketConfig) HasConcentrationLimit() bool {
	return b.ConcentrationLimit != nil
}

// BucketTable is the ordered, validated set of buckets plus the global
// deviation tolerance. It is immutable once built.
type BucketTable struct {
	buckets   []BucketConfig
	tolerance decimal.Decimal
	index     map[BucketID]int
}

// NewBucketTable validates and builds a bucket table.
func NewBucketTable(buckets []BucketConfig, tolerance decimal.Decimal) (*BucketTable, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: no buckets", ErrInvalidBucketTable)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("%w: negative tolerance %s", ErrInvalidBucketTable, tolerance)
	}

	table := &BucketTable{
		buckets:   make([]BucketConfig, len(buckets)),
		tolerance: tolerance,
		index:     make(map[BucketID]int, len(buckets)),
	}
	tickerOwner := make(map[string]BucketID)
	targetSum := decimal.Zero

	for i, b := range buckets {
		if b.ID == "" || b.ID == Unclassified {
			return nil, fmt.Errorf("%w: bucket %d has reserved or empty id %q", ErrInvalidBucketTable, i, b.ID)
		}
		if _, dup := table.index[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate bucket %s", ErrInvalidBucketTable, b.ID)
		}
		if b.TargetPct.IsNegative() || b.TargetPct.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: %s target %s outside 0-100", ErrInvalidBucketTable, b.ID, b.TargetPct)
		}
		if b.ConcentrationLimit != nil &&
			(!b.ConcentrationLimit.IsPositive() || b.ConcentrationLimit.GreaterThan(hundred)) {
			return nil, fmt.Errorf("%w: %s concentration limit %s outside (0,100]",
				ErrInvalidBucketTable, b.ID, b.ConcentrationLimit)
		}
		if err := b.Rule.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBucketTable, b.ID, err)
		}
		for _, t := range b.Rule.Tickers {
			if owner, taken := tickerOwner[t]; taken {
				return nil, fmt.Errorf("%w: ticker %s claimed by %s and %s", ErrInvalidBucketTable, t, owner, b.ID)
			}
			tickerOwner[t] = b.ID
		}

		targetSum = targetSum.Add(b.TargetPct)
		b.Rule.Tickers = append([]string(nil), b.Rule.Tickers...)
		table.buckets[i] = b
		table.index[b.ID] = i
	}

	if targetSum.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: targets sum to %s", ErrInvalidBucketTable, targetSum)
	}

	return table, nil
}

// DefaultBucketTable returns the canonical five-bucket allocation.
func DefaultBucketTable() *BucketTable {
	limit := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}

	table, err := NewBucketTable([]BucketConfig{
		{
			ID:             BucketCoreEquity,
			TargetPct:      decimal.NewFromInt(20),
			Rule:           FixedTicker("TMOS@"),
			PurchaseTicker: "TMOS@",
		},
		{
			ID:                 BucketSatelliteEquity,
			TargetPct:          decimal.NewFromInt(20),
			ConcentrationLimit: limit(6),
			Rule:               ByInstrumentType(domain.InstrumentTypeEquity),
		},
		{
			ID:                 BucketFixedIncome,
			TargetPct:          decimal.NewFromInt(45),
			ConcentrationLimit: limit(10),
			Rule:               ByInstrumentType(domain.InstrumentTypeFixedIncome),
			PurchaseTicker:     "TBRU@",
		},
		{
			ID:                 BucketDefensive,
			TargetPct:          decimal.NewFromInt(10),
			ConcentrationLimit: limit(50),
			Rule:               TickerSet("GLDRUB_TOM", "USD000UTSTOM"),
			PurchaseTicker:     "GLDRUB_TOM",
		},
		{
			ID:                 BucketLiquidityReserve,
			TargetPct:          decimal.NewFromInt(5),
			ConcentrationLimit: limit(5),
			Rule:               TickerSet("TMON@", "RUB000UTSTOM"),
			PurchaseTicker:     "TMON@",
		},
	}, decimal.NewFromInt(2))
	if err != nil {
		panic(err)
	}
	return table
}

// Buckets returns the buckets in table order.
func (t *BucketTable) Buckets() []BucketConfig {
	out := make([]BucketConfig, len(t.buckets))
	copy(out, t.buckets)
	return out
}

// Tolerance returns the deviation tolerance in percentage points.
func (t *BucketTable) Tolerance() decimal.Decimal {
	return t.tolerance
}

// Get returns the bucket with the given id.
func (t *BucketTable) Get(id BucketID) (BucketConfig, error) {
	i, ok := t.index[id]
	if !ok {
		return BucketConfig{}, fmt.Errorf("%w: %s", ErrUnknownBucket, id)
	}
	return t.buckets[i], nil
}

// MarshalJSON implements json.Marshaler.
func (t *BucketTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tolerance decimal.Decimal `json:"tolerance"`
		Buckets   []BucketConfig  `json:"buckets"`
	}{t.tolerance, t.buckets})
}
