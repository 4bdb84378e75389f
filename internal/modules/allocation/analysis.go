package allocation

import (
	"github.com/investbot/balancer/internal/domain"
	"github.com/shopspring/decimal"
)

// DeviationFinding records a bucket whose actual share is outside the
// tolerance band around its target.
type DeviationFinding struct {
	Bucket    BucketID        `json:"bucket"`
	ActualPct decimal.Decimal `json:"actual_pct"`
	TargetPct decimal.Decimal `json:"target_pct"`
}

// Deficit returns target − actual. Negative for over-allocated buckets.
func (f DeviationFinding) Deficit() decimal.Decimal {
	return f.TargetPct.Sub(f.ActualPct)
}

// IsDeficit reports whether the bucket is under-allocated.
func (f DeviationFinding) IsDeficit() bool {
	return f.ActualPct.LessThan(f.TargetPct)
}

// ConcentrationFinding records a holding whose share of the portfolio
// exceeds its bucket's concentration limit.
type ConcentrationFinding struct {
	Bucket    BucketID        `json:"bucket"`
	Holding   domain.Holding  `json:"holding"`
	ActualPct decimal.Decimal `json:"actual_pct"`
	LimitPct  decimal.Decimal `json:"limit_pct"`
}

// FindDeviations flags buckets where |actual − target| > tolerance.
func FindDeviations(dist Distribution, table *BucketTable) []DeviationFinding {
	findings := []DeviationFinding{}
	for _, b := range table.buckets {
		actual := dist.Percent(b.ID)
		if actual.Sub(b.TargetPct).Abs().GreaterThan(table.tolerance) {
			findings = append(findings, DeviationFinding{
				Bucket:    b.ID,
				ActualPct: actual,
				TargetPct: b.TargetPct,
			})
		}
	}
	return findings
}

// FindConcentrationProblems flags holdings above their bucket's limit.
// Buckets without a limit are exempt.
func FindConcentrationProblems(dist Distribution, table *BucketTable) []ConcentrationFinding {
	findings := []ConcentrationFinding{}
	if !dist.TotalValue.IsPositive() {
		return findings
	}

	for _, b := range table.buckets {
		if !b.HasConcentrationLimit() {
			continue
		}
		alloc, ok := dist.Allocation(b.ID)
		if !ok {
			continue
		}
		for _, h := range alloc.Holdings {
			// Holding percentages use the same 2dp half-up rounding as bucket percentages.
			pct := PercentOf(h.Value(), dist.TotalValue)
			if pct.GreaterThan(*b.ConcentrationLimit) {
				findings = append(findings, ConcentrationFinding{
					Bucket:    b.ID,
					Holding:   h,
					ActualPct: pct,
					LimitPct:  *b.ConcentrationLimit,
				})
			}
		}
	}
	return findings
}

// AnalysisResult is the outcome of analyzing one snapshot.
type AnalysisResult struct {
	Distribution          Distribution           `json:"distribution"`
	Deviations            []DeviationFinding     `json:"deviations"`
	ConcentrationProblems []ConcentrationFinding `json:"concentration_problems"`
}

// HasDeviations reports whether any allocation or concentration problem was found.
func (r AnalysisResult) HasDeviations() bool {
	return len(r.Deviations) > 0 || len(r.ConcentrationProblems) > 0
}

// Equal compares the findings of two results. The distribution is ignored.
func (r AnalysisResult) Equal(other AnalysisResult) bool {
	if len(r.Deviations) != len(other.Deviations) ||
		len(r.ConcentrationProblems) != len(other.ConcentrationProblems) {
		return false
	}
	for i, d := range r.Deviations {
		o := other.Deviations[i]
		if d.Bucket != o.Bucket || !d.ActualPct.Equal(o.ActualPct) || !d.TargetPct.Equal(o.TargetPct) {
			return false
		}
	}
	for i, c := range r.ConcentrationProblems {
		o := other.ConcentrationProblems[i]
		if c.Bucket != o.Bucket || c.Holding.Ticker != o.Holding.Ticker ||
			!c.ActualPct.Equal(o.ActualPct) || !c.LimitPct.Equal(o.LimitPct) {
			return false
		}
	}
	return true
}

// Analyze classifies the snapshot and reports deviations and concentration
// problems. A non-positive total value short-circuits to an empty result and
// returns ErrNonPositiveTotalValue.
func Analyze(snapshot *domain.PortfolioSnapshot, table *BucketTable) (AnalysisResult, error) {
	dist, err := CalculateDistribution(snapshot, table)
	result := AnalysisResult{
		Distribution:          dist,
		Deviations:            []DeviationFinding{},
		ConcentrationProblems: []ConcentrationFinding{},
	}
	if err != nil {
		return result, err
	}

	result.Deviations = FindDeviations(dist, table)
	result.ConcentrationProblems = FindConcentrationProblems(dist, table)
	return result, nil
}
