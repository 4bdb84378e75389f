// Package rebalancing turns allocation findings into a whole-lot plan of
// sells and buys.
package rebalancing

import (
	"encoding/json"

	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/shopspring/decimal"
)

// ReasonCode explains why an action was planned
type ReasonCode string

const (
	ReasonConcentrationRisk ReasonCode = "concentration-risk"
	ReasonAllocationDeficit ReasonCode = "allocation-deficit"
)

// SellAction sells whole lots of a holding.
type SellAction struct {
	Bucket       allocation.BucketID `json:"bucket"`
	Ticker       string              `json:"ticker"`
	InstrumentID string              `json:"instrument_id"`
	Name         string              `json:"name"`
	Lots         int64               `json:"lots"`
	Amount       decimal.Decimal     `json:"amount"`
	Reason       ReasonCode          `json:"reason"`
}

// BuyAction buys whole lots of a bucket's representative instrument.
type BuyAction struct {
	Bucket       allocation.BucketID `json:"bucket"`
	Ticker       string              `json:"ticker"`
	InstrumentID string              `json:"instrument_id"`
	Name         string              `json:"name"`
	Lots         int64               `json:"lots"`
	Amount       decimal.Decimal     `json:"amount"`
	Reason       ReasonCode          `json:"reason"`
}

// RebalancePlan is the immutable result of one planning run.
type RebalancePlan struct {
	sells     []SellAction
	buys      []BuyAction
	cashSales decimal.Decimal
}

// AssemblePlan combines actions into a plan. TotalCashFromSales is the sum
// of the sell amounts.
func AssemblePlan(sells []SellAction, buys []BuyAction) RebalancePlan {
	plan := RebalancePlan{
		sells:     append([]SellAction{}, sells...),
		buys:      append([]BuyAction{}, buys...),
		cashSales: decimal.Zero,
	}
	for _, s := range sells {
		plan.cashSales = plan.cashSales.Add(s.Amount)
	}
	return plan
}

// SellActions returns a copy of the sell actions.
func (p RebalancePlan) SellActions() []SellAction {
	return append([]SellAction{}, p.sells...)
}

// BuyActions returns a copy of the buy actions.
func (p RebalancePlan) BuyActions() []BuyAction {
	return append([]BuyAction{}, p.buys...)
}

// TotalCashFromSales returns the cash freed by all sells.
func (p RebalancePlan) TotalCashFromSales() decimal.Decimal {
	return p.cashSales
}

// TotalCashForPurchases returns the cash spent by all buys.
func (p RebalancePlan) TotalCashForPurchases() decimal.Decimal {
	total := decimal.Zero
	for _, b := range p.buys {
		total = total.Add(b.Amount)
	}
	return total
}

// IsEmpty reports whether the plan has no actions, i.e. the portfolio is balanced.
func (p RebalancePlan) IsEmpty() bool {
	return len(p.sells) == 0 && len(p.buys) == 0
}

// MarshalJSON implements json.Marshaler.
func (p RebalancePlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SellActions           []SellAction    `json:"sell_actions"`
		BuyActions            []BuyAction     `json:"buy_actions"`
		TotalCashFromSales    decimal.Decimal `json:"total_cash_from_sales"`
		TotalCashForPurchases decimal.Decimal `json:"total_cash_for_purchases"`
	}{
		SellActions:           p.SellActions(),
		BuyActions:            p.BuyActions(),
		TotalCashFromSales:    p.cashSales,
		TotalCashForPurchases: p.TotalCashForPurchases(),
	})
}
