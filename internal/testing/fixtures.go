package testing

import (
	"github.com/investbot/balancer/internal/domain"
	"github.com/shopspring/decimal"
)

// NewHolding builds a RUB-priced holding. Quantity and price are decimal strings.
func NewHolding(ticker string, t domain.InstrumentType, quantity, price string, lotSize int64) domain.Holding {
	return domain.Holding{
		Ticker:       ticker,
		InstrumentID: "FIGI-" + ticker,
		Name:         ticker,
		Type:         t,
		Quantity:     decimal.RequireFromString(quantity),
		Price:        domain.NewMoney(decimal.RequireFromString(price), domain.CurrencyRUB),
		LotSize:      lotSize,
	}
}

// NewSnapshot builds a validated RUB snapshot and panics on invalid input.
func NewSnapshot(total string, holdings ...domain.Holding) *domain.PortfolioSnapshot {
	snap, err := domain.NewPortfolioSnapshot(
		domain.NewMoney(decimal.RequireFromString(total), domain.CurrencyRUB),
		holdings,
	)
	if err != nil {
		panic(err)
	}
	return snap
}

// BalancedSnapshot returns a 100,000 RUB portfolio matching the default
// bucket targets exactly: core 20%, four satellites at 5%, five bonds at 9%,
// gold 10% and the money-market fund at its 5% cap.
func BalancedSnapshot() *domain.PortfolioSnapshot {
	return NewSnapshot("100000",
		NewHolding("TMOS@", domain.InstrumentTypeFund, "2000", "10", 1),
		NewHolding("SBER", domain.InstrumentTypeEquity, "200", "25", 10),
		NewHolding("LKOH", domain.InstrumentTypeEquity, "10", "500", 1),
		NewHolding("GAZP", domain.InstrumentTypeEquity, "50", "100", 10),
		NewHolding("YDEX", domain.InstrumentTypeEquity, "5", "1000", 1),
		NewHolding("OFZ26238", domain.InstrumentTypeFixedIncome, "9", "1000", 1),
		NewHolding("OFZ26240", domain.InstrumentTypeFixedIncome, "9", "1000", 1),
		NewHolding("OFZ26243", domain.InstrumentTypeFixedIncome, "9", "1000", 1),
		NewHolding("RU000A0JX0J2", domain.InstrumentTypeFixedIncome, "9", "1000", 1),
		NewHolding("SU26230RMFS1", domain.InstrumentTypeFixedIncome, "9", "1000", 1),
		NewHolding("GLDRUB_TOM", domain.InstrumentTypeCashEquivalent, "10", "1000", 1),
		NewHolding("TMON@", domain.InstrumentTypeFund, "50", "100", 1),
	)
}
