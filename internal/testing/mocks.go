package testing

import (
	"fmt"
	"sync"
	"time"

	"github.com/investbot/balancer/internal/domain"
)

// MockBrokerClient is an in-memory domain.BrokerClient for tests
type MockBrokerClient struct {
	mu         sync.RWMutex
	portfolio  *domain.BrokerPortfolio
	securities map[string]domain.BrokerSecurityInfo
	quotes     map[string]float64
	err        error
	connected  bool

	QuoteCalls int
	FindCalls  int
}

// NewMockBrokerClient creates a connected mock broker with an empty portfolio
func NewMockBrokerClient() *MockBrokerClient {
	return &MockBrokerClient{
		portfolio:  &domain.BrokerPortfolio{Currency: "RUB"},
		securities: make(map[string]domain.BrokerSecurityInfo),
		quotes:     make(map[string]float64),
		connected:  true,
	}
}

// SetPortfolio sets the portfolio to return
func (m *MockBrokerClient) SetPortfolio(p *domain.BrokerPortfolio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolio = p
}

// AddSecurity registers a security for FindSymbol and its last price for GetQuote
func (m *MockBrokerClient) AddSecurity(info domain.BrokerSecurityInfo, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securities[info.Symbol] = info
	m.quotes[info.Symbol] = price
}

// SetError makes every call fail with err
func (m *MockBrokerClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetConnected sets the health check result
func (m *MockBrokerClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// GetPortfolio returns the configured portfolio
func (m *MockBrokerClient) GetPortfolio() (*domain.BrokerPortfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p := *m.portfolio
	p.Positions = append([]domain.BrokerPosition(nil), m.portfolio.Positions...)
	return &p, nil
}

// GetQuote returns the registered last price
func (m *MockBrokerClient) GetQuote(symbol string) (*domain.BrokerQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteCalls++
	if m.err != nil {
		return nil, m.err
	}
	price, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &domain.BrokerQuote{
		Symbol:    symbol,
		Price:     price,
		Currency:  "RUB",
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

// FindSymbol returns the registered security, if any
func (m *MockBrokerClient) FindSymbol(symbol string) ([]domain.BrokerSecurityInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.securities[symbol]
	if !ok {
		return []domain.BrokerSecurityInfo{}, nil
	}
	return []domain.BrokerSecurityInfo{info}, nil
}

// HealthCheck reports the configured connection state
func (m *MockBrokerClient) HealthCheck() (*domain.BrokerHealthResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BrokerHealthResult{
		Connected: m.connected,
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}
