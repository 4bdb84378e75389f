// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidHolding is returned when a holding violates its input contract.
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrCurrencyMismatch is returned when a snapshot mixes currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Currency represents a currency code
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// InstrumentType is the broker-independent instrument classification
type InstrumentType string

const (
	InstrumentTypeEquity         InstrumentType = "equity"
	InstrumentTypeFixedIncome    InstrumentType = "fixed-income"
	InstrumentTypeFund           InstrumentType = "fund"
	InstrumentTypeCashEquivalent InstrumentType = "cash-equivalent"
	InstrumentTypeOther          InstrumentType = "other"
)

// ParseInstrumentType maps broker type strings ("share", "bond", "etf",
// "currency") and canonical names to an InstrumentType.
func ParseInstrumentType(s string) InstrumentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "share", "stock", "equity":
		return InstrumentTypeEquity
	case "bond", "fixed-income":
		return InstrumentTypeFixedIncome
	case "etf", "fund":
		return InstrumentTypeFund
	case "currency", "cash", "cash-equivalent":
		return InstrumentTypeCashEquivalent
	default:
		return InstrumentTypeOther
	}
}

// Money represents a monetary value with currency
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// NewMoney creates a new Money value
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Holding is a single position in a portfolio snapshot.
type Holding struct {
	Ticker           string          `json:"ticker"`
	InstrumentID     string          `json:"instrument_id"`
	Name             string          `json:"name"`
	Type             InstrumentType  `json:"type"`
	Quantity         decimal.Decimal `json:"quantity"`
	Price            Money           `json:"price"`
	LotSize          int64           `json:"lot_size"`
	AveragePrice     *Money          `json:"average_price,omitempty"`
	UnrealizedProfit *Money          `json:"unrealized_profit,omitempty"`
}

// Value returns quantity × price.
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.Price.Amount)
}

// PricePerLot returns price × lot size.
func (h Holding) PricePerLot() decimal.Decimal {
	return h.Price.Amount.Mul(decimal.NewFromInt(h.LotSize))
}

// Validate checks the holding's input contract.
func (h Holding) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidHolding)
	}
	if h.Quantity.IsNegative() {
		return fmt.Errorf("%w: %s has negative quantity %s", ErrInvalidHolding, h.Ticker, h.Quantity)
	}
	if h.LotSize < 1 {
		return fmt.Errorf("%w: %s has lot size %d", ErrInvalidHolding, h.Ticker, h.LotSize)
	}
	return nil
}

// PortfolioSnapshot is an immutable view of a portfolio at one point in time.
// TotalValue is authoritative; it need not equal the sum of holding values.
type PortfolioSnapshot struct {
	totalValue Money
	holdings   []Holding
}

// NewPortfolioSnapshot validates every holding and copies the slice.
func NewPortfolioSnapshot(totalValue Money, holdings []Holding) (*PortfolioSnapshot, error) {
	copied := make([]Holding, len(holdings))
	for i, h := range holdings {
		if err := h.Validate(); err != nil {
			return nil, err
		}
		if totalValue.Currency != "" && h.Price.Currency != "" && h.Price.Currency != totalValue.Currency {
			return nil, fmt.Errorf("%w: %s priced in %s, portfolio in %s",
				ErrCurrencyMismatch, h.Ticker, h.Price.Currency, totalValue.Currency)
		}
		copied[i] = h
	}
	return &PortfolioSnapshot{totalValue: totalValue, holdings: copied}, nil
}

// TotalValue returns the authoritative portfolio value.
func (s *PortfolioSnapshot) TotalValue() Money {
	return s.totalValue
}

// Holdings returns a copy of the holdings.
func (s *PortfolioSnapshot) Holdings() []Holding {
	out := make([]Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}

// FindHolding returns the holding with the given ticker, if held.
func (s *PortfolioSnapshot) FindHolding(ticker string) (Holding, bool) {
	for _, h := range s.holdings {
		if h.Ticker == ticker {
			return h, true
		}
	}
	return Holding{}, false
}

type snapshotJSON struct {
	TotalValue Money     `json:"total_value"`
	Holdings   []Holding `json:"holdings"`
}

// MarshalJSON implements json.Marshaler.
func (s *PortfolioSnapshot) MarshalJSON() ([]byte, error) {
	holdings := s.holdings
	if holdings == nil {
		holdings = []Holding{}
	}
	return json.Marshal(snapshotJSON{TotalValue: s.totalValue, Holdings: holdings})
}

// UnmarshalJSON implements json.Unmarshaler and validates like NewPortfolioSnapshot.
func (s *PortfolioSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewPortfolioSnapshot(raw.TotalValue, raw.Holdings)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
