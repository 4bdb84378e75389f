package allocation

import (
	"errors"

	"github.com/investbot/balancer/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNonPositiveTotalValue is returned when a snapshot's total value is zero
// or negative and percentages cannot be computed.
var ErrNonPositiveTotalValue = errors.New("portfolio total value must be positive")

// PercentOf returns value / total × 100 rounded half-up to 2 decimals.
// Callers must ensure total is positive.
func PercentOf(value, total decimal.Decimal) decimal.Decimal {
	return value.Mul(hundred).DivRound(total, 2)
}

// BucketAllocation is one bucket's share of the portfolio.
type BucketAllocation struct {
	Bucket   BucketID         `json:"bucket"`
	Value    decimal.Decimal  `json:"value"`
	Percent  decimal.Decimal  `json:"percent"`
	Holdings []domain.Holding `json:"holdings"`
}

// Distribution is the per-bucket breakdown of a snapshot.
type Distribution struct {
	TotalValue   decimal.Decimal    `json:"total_value"`
	Buckets      []BucketAllocation `json:"buckets"`
	Unclassified []domain.Holding   `json:"unclassified"`
}

// Allocation returns the named bucket's allocation.
func (d Distribution) Allocation(id BucketID) (BucketAllocation, bool) {
	for _, b := range d.Buckets {
		if b.Bucket == id {
			return b, true
		}
	}
	return BucketAllocation{}, false
}

// Percent returns the named bucket's percentage, zero if absent.
func (d Distribution) Percent(id BucketID) decimal.Decimal {
	if b, ok := d.Allocation(id); ok {
		return b.Percent
	}
	return decimal.Zero
}

// CalculateDistribution aggregates holding values per bucket and converts
// them to percentages of the snapshot's total value. When the total is not
// positive every bucket is reported at 0% and ErrNonPositiveTotalValue is
// returned alongside the distribution.
func CalculateDistribution(snapshot *domain.PortfolioSnapshot, table *BucketTable) (Distribution, error) {
	classifier := NewClassifier(table)
	total := snapshot.TotalValue().Amount

	dist := Distribution{
		TotalValue:   total,
		Buckets:      make([]BucketAllocation, len(table.buckets)),
		Unclassified: []domain.Holding{},
	}
	for i, b := range table.buckets {
		dist.Buckets[i] = BucketAllocation{
			Bucket:   b.ID,
			Value:    decimal.Zero,
			Percent:  decimal.Zero,
			Holdings: []domain.Holding{},
		}
	}

	for _, h := range snapshot.Holdings() {
		id := classifier.Classify(h)
		if id == Unclassified {
			dist.Unclassified = append(dist.Unclassified, h)
			continue
		}
		slot := &dist.Buckets[table.index[id]]
		slot.Value = slot.Value.Add(h.Value())
		slot.Holdings = append(slot.Holdings, h)
	}

	if !total.IsPositive() {
		return dist, ErrNonPositiveTotalValue
	}

	for i := range dist.Buckets {
		dist.Buckets[i].Percent = PercentOf(dist.Buckets[i].Value, total)
	}

	return dist, nil
}
