package domain

// Broker-agnostic types returned by the brokerage data provider.
// Amounts stay float64 at this boundary; the portfolio module converts them.

// BrokerPortfolio is the account summary with all open positions
type BrokerPortfolio struct {
	TotalValue float64          // Total account value in Currency
	Currency   string           // Reporting currency
	Positions  []BrokerPosition // Open positions
}

// BrokerPosition represents a portfolio position (broker-agnostic)
type BrokerPosition struct {
	Symbol         string  // Security symbol
	FIGI           string  // Stable instrument id (nullable as empty)
	Name           string  // Instrument name
	InstrumentType string  // "share", "bond", "etf", "currency"
	Quantity       float64 // Units held
	LotSize        int64   // Units per tradeable lot
	CurrentPrice   float64 // Current price per unit
	AvgPrice       float64 // Average purchase price (0 when unknown)
	UnrealizedPnL  float64 // Unrealized profit/loss
	Currency       string  // Position currency
}

// BrokerQuote represents a security quote (broker-agnostic)
type BrokerQuote struct {
	Symbol    string  // Security symbol
	Price     float64 // Last price
	Currency  string  // Quote currency
	Timestamp string  // Quote timestamp
}

// BrokerSecurityInfo represents security lookup result (broker-agnostic)
type BrokerSecurityInfo struct {
	Symbol         string  // Security symbol
	FIGI           *string // FIGI (nullable)
	Name           *string // Instrument name (nullable)
	InstrumentType *string // Broker type string (nullable)
	Currency       *string // Trading currency (nullable)
	LotSize        int64   // Units per lot (0 when unknown)
}

// BrokerHealthResult represents broker connection health status (broker-agnostic)
type BrokerHealthResult struct {
	Connected bool   // Whether broker is connected
	Timestamp string // Timestamp of health check
}
