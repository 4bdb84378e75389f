package rebalancing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	testingpkg "github.com/investbot/balancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// stubResolver resolves purchase tickers from a fixed map
type stubResolver struct {
	candidates map[string]PurchaseCandidate
	calls      []string
}

func (s *stubResolver) Resolve(bucket allocation.BucketConfig) (*PurchaseCandidate, error) {
	s.calls = append(s.calls, bucket.PurchaseTicker)
	c, ok := s.candidates[bucket.PurchaseTicker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, bucket.PurchaseTicker)
	}
	return &c, nil
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(7), floorDiv(d("70"), d("10")))
	assert.Equal(t, int64(7), floorDiv(d("79.99"), d("10")))
	assert.Equal(t, int64(0), floorDiv(d("0.5"), d("1")))
	assert.Equal(t, int64(-1), floorDiv(d("-0.5"), d("1")))
	assert.Equal(t, int64(-2), floorDiv(d("-2"), d("1")))
}

func TestTruncateDiv(t *testing.T) {
	assert.Equal(t, "33.33", truncateDiv(d("100"), d("3"), 2).String())
	assert.Equal(t, "66.66", truncateDiv(d("200"), d("3"), 2).String())
	assert.Equal(t, "-33.33", truncateDiv(d("-100"), d("3"), 2).String())
}

func TestSellPlanner_Scenario(t *testing.T) {
	// 7,000 of a 100,000 portfolio against a 5% cap, ten units per lot at 100
	holding := testingpkg.NewHolding("A", domain.InstrumentTypeEquity, "70", "100", 10)
	findings := []allocation.ConcentrationFinding{{
		Bucket:    allocation.BucketSatelliteEquity,
		Holding:   holding,
		ActualPct: d("7"),
		LimitPct:  d("5"),
	}}

	actions := NewSellPlanner(testLogger()).Plan(findings, d("100000"))

	expected := []SellAction{{
		Bucket:       allocation.BucketSatelliteEquity,
		Ticker:       "A",
		InstrumentID: "FIGI-A",
		Name:         "A",
		Lots:         2,
		Amount:       d("2000"),
		Reason:       ReasonConcentrationRisk,
	}}
	require.Equal(t, "", cmp.Diff(expected, actions, decimalComparer))
}

func TestSellPlanner_FloorGuarantee(t *testing.T) {
	planner := NewSellPlanner(testLogger())
	total := d("100000")

	for _, price := range []string{"0.37", "1", "13.5", "99.99", "250", "1234.5"} {
		for _, lot := range []int64{1, 3, 10, 100} {
			for _, limit := range []string{"1", "5", "6", "10.5"} {
				name := fmt.Sprintf("price=%s/lot=%d/limit=%s", price, lot, limit)
				t.Run(name, func(t *testing.T) {
					h := testingpkg.NewHolding("X", domain.InstrumentTypeEquity, "0", price, lot)
					// Hold roughly 30% of the portfolio in whole lots
					lots := floorDiv(d("30000"), h.PricePerLot())
					h.Quantity = decimal.NewFromInt(lots * lot)

					finding := allocation.ConcentrationFinding{
						Bucket:    allocation.BucketSatelliteEquity,
						Holding:   h,
						ActualPct: allocation.PercentOf(h.Value(), total),
						LimitPct:  d(limit),
					}
					actions := planner.Plan([]allocation.ConcentrationFinding{finding}, total)
					if lots == 0 {
						return
					}
					require.Len(t, actions, 1)

					remaining := decimal.NewFromInt(lots - actions[0].Lots).Mul(h.PricePerLot())
					remainingPct := remaining.Mul(decimal.NewFromInt(100)).Div(total)
					assert.True(t, remainingPct.LessThanOrEqual(d(limit)),
						"remaining %s%% above limit %s%%", remainingPct, limit)

					// Selling one lot fewer would leave the holding above the limit
					oneLess := remaining.Add(h.PricePerLot()).Mul(decimal.NewFromInt(100)).Div(total)
					assert.True(t, oneLess.GreaterThan(d(limit)))
				})
			}
		}
	}
}

func TestSellPlanner_SkipsBadData(t *testing.T) {
	planner := NewSellPlanner(testLogger())

	zeroPrice := testingpkg.NewHolding("ZERO", domain.InstrumentTypeEquity, "100", "0", 1)
	zeroLot := testingpkg.NewHolding("NOLOT", domain.InstrumentTypeEquity, "100", "100", 1)
	zeroLot.LotSize = 0

	findings := []allocation.ConcentrationFinding{
		{Bucket: allocation.BucketSatelliteEquity, Holding: zeroPrice, ActualPct: d("10"), LimitPct: d("6")},
		{Bucket: allocation.BucketSatelliteEquity, Holding: zeroLot, ActualPct: d("10"), LimitPct: d("6")},
	}

	assert.Empty(t, planner.Plan(findings, d("100000")))
}

func TestSellPlanner_ExcessBelowOneLot(t *testing.T) {
	// 6.5% in lots worth 1,000: target 6 lots, holding 6 whole lots plus 5 loose units
	h := testingpkg.NewHolding("A", domain.InstrumentTypeEquity, "65", "100", 10)
	findings := []allocation.ConcentrationFinding{{
		Bucket: allocation.BucketSatelliteEquity, Holding: h, ActualPct: d("6.5"), LimitPct: d("6"),
	}}

	assert.Empty(t, NewSellPlanner(testLogger()).Plan(findings, d("100000")))
}

func TestBudgets_ProportionalSplit(t *testing.T) {
	deviations := []allocation.DeviationFinding{
		{Bucket: allocation.BucketFixedIncome, ActualPct: d("40"), TargetPct: d("45")},
		{Bucket: allocation.BucketDefensive, ActualPct: d("0"), TargetPct: d("15")},
	}

	budgets := Budgets(deviations, d("1000"))
	require.Len(t, budgets, 2)
	assert.Equal(t, "250", budgets[allocation.BucketFixedIncome].String())
	assert.Equal(t, "750", budgets[allocation.BucketDefensive].String())
}

func TestBudgets_IgnoresSurplusAndTruncates(t *testing.T) {
	deviations := []allocation.DeviationFinding{
		{Bucket: allocation.BucketCoreEquity, ActualPct: d("30"), TargetPct: d("20")},
		{Bucket: allocation.BucketFixedIncome, ActualPct: d("44"), TargetPct: d("45")},
		{Bucket: allocation.BucketDefensive, ActualPct: d("8"), TargetPct: d("10")},
	}

	budgets := Budgets(deviations, d("100"))
	require.Len(t, budgets, 2)
	assert.Equal(t, "33.33", budgets[allocation.BucketFixedIncome].String())
	assert.Equal(t, "66.66", budgets[allocation.BucketDefensive].String())
}

func TestBudgets_NothingToSpend(t *testing.T) {
	deficit := []allocation.DeviationFinding{
		{Bucket: allocation.BucketFixedIncome, ActualPct: d("40"), TargetPct: d("45")},
	}
	surplus := []allocation.DeviationFinding{
		{Bucket: allocation.BucketCoreEquity, ActualPct: d("30"), TargetPct: d("20")},
	}

	assert.Nil(t, Budgets(deficit, d("0")))
	assert.Nil(t, Budgets(deficit, d("-10")))
	assert.Nil(t, Budgets(surplus, d("1000")))
	assert.Nil(t, Budgets(nil, d("1000")))
}

func TestBuyPlanner_Scenario(t *testing.T) {
	resolver := &stubResolver{candidates: map[string]PurchaseCandidate{
		"TBRU@":      {Ticker: "TBRU@", InstrumentID: "TCS60A1039N1", Name: "Bonds fund", LotSize: 1, LastPrice: d("7.1")},
		"GLDRUB_TOM": {Ticker: "GLDRUB_TOM", InstrumentID: "BBG000VJ5YR4", Name: "Gold", LotSize: 1, LastPrice: d("140")},
	}}
	deviations := []allocation.DeviationFinding{
		{Bucket: allocation.BucketFixedIncome, ActualPct: d("40"), TargetPct: d("45")},
		{Bucket: allocation.BucketDefensive, ActualPct: d("7"), TargetPct: d("10")},
	}

	budgets := Budgets(deviations, d("2000"))
	assert.Equal(t, "1250", budgets[allocation.BucketFixedIncome].String())
	assert.Equal(t, "750", budgets[allocation.BucketDefensive].String())

	actions := NewBuyPlanner(resolver, testLogger()).Plan(deviations, d("2000"), allocation.DefaultBucketTable())

	expected := []BuyAction{
		{
			Bucket: allocation.BucketFixedIncome, Ticker: "TBRU@", InstrumentID: "TCS60A1039N1",
			Name: "Bonds fund", Lots: 176, Amount: d("1249.6"), Reason: ReasonAllocationDeficit,
		},
		{
			Bucket: allocation.BucketDefensive, Ticker: "GLDRUB_TOM", InstrumentID: "BBG000VJ5YR4",
			Name: "Gold", Lots: 5, Amount: d("700"), Reason: ReasonAllocationDeficit,
		},
	}
	require.Equal(t, "", cmp.Diff(expected, actions, decimalComparer))
}

func TestBuyPlanner_SkipsUnresolvableBuckets(t *testing.T) {
	resolver := &stubResolver{candidates: map[string]PurchaseCandidate{
		"TMON@": {Ticker: "TMON@", LotSize: 1, LastPrice: d("0")},
		"TMOS@": {Ticker: "TMOS@", LotSize: 10, LastPrice: d("6.5")},
	}}
	deviations := []allocation.DeviationFinding{
		{Bucket: allocation.BucketSatelliteEquity, ActualPct: d("10"), TargetPct: d("20")},  // no purchase ticker
		{Bucket: allocation.BucketFixedIncome, ActualPct: d("35"), TargetPct: d("45")},      // resolver fails
		{Bucket: allocation.BucketLiquidityReserve, ActualPct: d("0"), TargetPct: d("5")},   // zero price
		{Bucket: allocation.BucketCoreEquity, ActualPct: d("15"), TargetPct: d("20")},       // resolves
	}

	actions := NewBuyPlanner(resolver, testLogger()).Plan(deviations, d("3000"), allocation.DefaultBucketTable())

	// Budgets: satellite 1000, bonds 1000, reserve 500, core 500; core lot costs 65
	require.Len(t, actions, 1)
	assert.Equal(t, "TMOS@", actions[0].Ticker)
	assert.Equal(t, int64(7), actions[0].Lots)
	assert.Equal(t, "455", actions[0].Amount.String())
	assert.Equal(t, []string{"TBRU@", "TMON@", "TMOS@"}, resolver.calls)
}

func TestBuyPlanner_BudgetBelowOneLot(t *testing.T) {
	resolver := &stubResolver{candidates: map[string]PurchaseCandidate{
		"TMOS@": {Ticker: "TMOS@", LotSize: 100, LastPrice: d("6.5")},
	}}
	deviations := []allocation.DeviationFinding{
		{Bucket: allocation.BucketCoreEquity, ActualPct: d("15"), TargetPct: d("20")},
	}

	assert.Empty(t, NewBuyPlanner(resolver, testLogger()).Plan(deviations, d("649.99"), allocation.DefaultBucketTable()))
}

func TestBuyPlanner_NeverExceedsBudget(t *testing.T) {
	for _, price := range []string{"0.01", "3.33", "7.1", "99.5", "1999.99"} {
		for _, lot := range []int64{1, 7, 10, 1000} {
			resolver := &stubResolver{candidates: map[string]PurchaseCandidate{
				"TMOS@": {Ticker: "TMOS@", LotSize: lot, LastPrice: d(price)},
			}}
			deviations := []allocation.DeviationFinding{
				{Bucket: allocation.BucketCoreEquity, ActualPct: d("10"), TargetPct: d("20")},
			}
			actions := NewBuyPlanner(resolver, testLogger()).Plan(deviations, d("12345.67"), allocation.DefaultBucketTable())
			for _, a := range actions {
				assert.True(t, a.Amount.LessThanOrEqual(d("12345.67")), "price=%s lot=%d", price, lot)
				assert.True(t, a.Amount.Add(d(price).Mul(decimal.NewFromInt(lot))).GreaterThan(d("12345.67")))
			}
		}
	}
}

func TestHoldingsFirstResolver(t *testing.T) {
	snap := testingpkg.NewSnapshot("1000",
		testingpkg.NewHolding("TMOS@", domain.InstrumentTypeFund, "100", "6.5", 1),
	)
	fallback := &stubResolver{candidates: map[string]PurchaseCandidate{
		"TMON@": {Ticker: "TMON@", LotSize: 1, LastPrice: d("120")},
	}}
	resolver := HoldingsFirstResolver{Snapshot: snap, Fallback: fallback}
	table := allocation.DefaultBucketTable()

	core, _ := table.Get(allocation.BucketCoreEquity)
	c, err := resolver.Resolve(core)
	require.NoError(t, err)
	assert.Equal(t, "FIGI-TMOS@", c.InstrumentID)
	assert.Equal(t, "6.5", c.LastPrice.String())
	assert.Empty(t, fallback.calls)

	reserve, _ := table.Get(allocation.BucketLiquidityReserve)
	c, err = resolver.Resolve(reserve)
	require.NoError(t, err)
	assert.Equal(t, "120", c.LastPrice.String())
	assert.Equal(t, []string{"TMON@"}, fallback.calls)

	_, err = HoldingsFirstResolver{Snapshot: snap}.Resolve(reserve)
	assert.True(t, errors.Is(err, ErrCandidateNotFound))
}
