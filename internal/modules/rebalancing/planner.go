package rebalancing

import (
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SellPlanner sizes sells that bring concentrated holdings back under their
// bucket's limit.
type SellPlanner struct {
	log zerolog.Logger
}

// NewSellPlanner creates a sell planner
func NewSellPlanner(log zerolog.Logger) *SellPlanner {
	return &SellPlanner{log: log.With().Str("planner", "sell").Logger()}
}

// Plan returns one SellAction per finding that needs at least one whole lot
// sold. targetLots is floored so the remaining position never exceeds the limit.
func (p *SellPlanner) Plan(findings []allocation.ConcentrationFinding, totalValue decimal.Decimal) []SellAction {
	actions := []SellAction{}

	for _, f := range findings {
		h := f.Holding
		if !h.Price.Amount.IsPositive() || h.LotSize <= 0 {
			p.log.Warn().
				Str("ticker", h.Ticker).
				Str("price", h.Price.Amount.String()).
				Int64("lot_size", h.LotSize).
				Msg("Skipping sell: invalid price or lot size")
			continue
		}

		pricePerLot := h.PricePerLot()
		currentLots := floorDiv(h.Quantity, decimal.NewFromInt(h.LotSize))
		targetValue := totalValue.Mul(f.LimitPct).Shift(-2)
		targetLots := floorDiv(targetValue, pricePerLot)

		lotsToSell := currentLots - targetLots
		if lotsToSell <= 0 {
			p.log.Debug().
				Str("ticker", h.Ticker).
				Int64("current_lots", currentLots).
				Int64("target_lots", targetLots).
				Msg("Concentration excess is below one lot")
			continue
		}

		actions = append(actions, SellAction{
			Bucket:       f.Bucket,
			Ticker:       h.Ticker,
			InstrumentID: h.InstrumentID,
			Name:         h.Name,
			Lots:         lotsToSell,
			Amount:       decimal.NewFromInt(lotsToSell).Mul(pricePerLot),
			Reason:       ReasonConcentrationRisk,
		})
	}

	return actions
}

// BuyPlanner spreads available cash across under-allocated buckets in
// proportion to their deficits.
type BuyPlanner struct {
	resolver PurchaseResolver
	log      zerolog.Logger
}

// NewBuyPlanner creates a buy planner
func NewBuyPlanner(resolver PurchaseResolver, log zerolog.Logger) *BuyPlanner {
	return &BuyPlanner{
		resolver: resolver,
		log:      log.With().Str("planner", "buy").Logger(),
	}
}

// Budgets returns the cash allotted to each deficit bucket, truncated to 2
// decimals, in finding order. Nil when there is nothing to spend.
func Budgets(deviations []allocation.DeviationFinding, availableCash decimal.Decimal) map[allocation.BucketID]decimal.Decimal {
	totalDeficit := decimal.Zero
	for _, d := range deviations {
		if d.IsDeficit() {
			totalDeficit = totalDeficit.Add(d.Deficit())
		}
	}
	if totalDeficit.IsZero() || !availableCash.IsPositive() {
		return nil
	}

	budgets := make(map[allocation.BucketID]decimal.Decimal)
	for _, d := range deviations {
		if d.IsDeficit() {
			budgets[d.Bucket] = truncateDiv(availableCash.Mul(d.Deficit()), totalDeficit, 2)
		}
	}
	return budgets
}

// Plan converts each deficit bucket's budget into whole lots of its
// representative instrument. Buckets that cannot be resolved are skipped.
func (p *BuyPlanner) Plan(
	deviations []allocation.DeviationFinding,
	availableCash decimal.Decimal,
	table *allocation.BucketTable,
) []BuyAction {
	actions := []BuyAction{}

	budgets := Budgets(deviations, availableCash)
	if budgets == nil {
		return actions
	}

	for _, d := range deviations {
		budget, ok := budgets[d.Bucket]
		if !ok {
			continue
		}

		bucket, err := table.Get(d.Bucket)
		if err != nil {
			p.log.Warn().Err(err).Str("bucket", string(d.Bucket)).Msg("Skipping buy: bucket not in table")
			continue
		}
		if bucket.PurchaseTicker == "" {
			p.log.Info().Str("bucket", string(bucket.ID)).Msg("Skipping buy: no purchase ticker configured")
			continue
		}

		candidate, err := p.resolver.Resolve(bucket)
		if err != nil {
			p.log.Warn().
				Err(err).
				Str("bucket", string(bucket.ID)).
				Str("ticker", bucket.PurchaseTicker).
				Msg("Skipping buy: purchase candidate not resolved")
			continue
		}

		pricePerLot := candidate.PricePerLot()
		if !pricePerLot.IsPositive() {
			p.log.Warn().
				Str("ticker", candidate.Ticker).
				Str("price_per_lot", pricePerLot.String()).
				Msg("Skipping buy: invalid price per lot")
			continue
		}

		lots := floorDiv(budget, pricePerLot)
		if lots <= 0 {
			p.log.Debug().
				Str("ticker", candidate.Ticker).
				Str("budget", budget.String()).
				Str("price_per_lot", pricePerLot.String()).
				Msg("Budget below one lot")
			continue
		}

		actions = append(actions, BuyAction{
			Bucket:       bucket.ID,
			Ticker:       candidate.Ticker,
			InstrumentID: candidate.InstrumentID,
			Name:         candidate.Name,
			Lots:         lots,
			Amount:       decimal.NewFromInt(lots).Mul(pricePerLot),
			Reason:       ReasonAllocationDeficit,
		})
	}

	return actions
}
