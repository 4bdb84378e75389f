package domain

// BrokerClient is the read-only contract the balancer needs from a brokerage
// data provider. No trading operations are exposed.
type BrokerClient interface {
	GetPortfolio() (*BrokerPortfolio, error)
	GetQuote(symbol string) (*BrokerQuote, error)
	FindSymbol(symbol string) ([]BrokerSecurityInfo, error)
	HealthCheck() (*BrokerHealthResult, error)
}
