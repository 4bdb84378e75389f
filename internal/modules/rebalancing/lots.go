package rebalancing

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// floorDiv returns floor(a / b) exactly. b must be non-zero.
func floorDiv(a, b decimal.Decimal) int64 {
	q, r := a.QuoRem(b, 0)
	if !r.IsZero() && r.IsNegative() != b.IsNegative() {
		q = q.Sub(one)
	}
	return q.IntPart()
}

// truncateDiv returns a / b truncated toward zero at the given number of decimals.
func truncateDiv(a, b decimal.Decimal, places int32) decimal.Decimal {
	q, _ := a.QuoRem(b, places)
	return q
}
