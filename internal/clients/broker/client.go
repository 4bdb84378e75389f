// Package broker is the HTTP client of the brokerage microservice.
// It exposes read-only portfolio and market data; no trading endpoints.
package broker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/domain"
)

// Client for the brokerage microservice
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// ServiceResponse is the standard response envelope
type ServiceResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// NewClient creates a new brokerage microservice client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "broker").Logger(),
	}
}

func (c *Client) get(endpoint string) (*ServiceResponse, error) {
	resp, err := c.client.Get(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

func (c *Client) parseResponse(resp *http.Response) (*ServiceResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ServiceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if !result.Success {
		errMsg := "unknown error"
		if result.Error != nil {
			errMsg = *result.Error
		}
		return &result, fmt.Errorf("broker service error: %s", errMsg)
	}

	return &result, nil
}

// PortfolioSummary is the payload of /api/portfolio/summary
type PortfolioSummary struct {
	TotalValue float64    `json:"total_value"`
	Currency   string     `json:"currency"`
	Positions  []Position `json:"positions"`
}

// Position represents a portfolio position
type Position struct {
	Symbol         string  `json:"symbol"`
	FIGI           string  `json:"figi"`
	Name           string  `json:"name"`
	InstrumentType string  `json:"instrument_type"`
	Quantity       float64 `json:"quantity"`
	LotSize        int64   `json:"lot_size"`
	CurrentPrice   float64 `json:"current_price"`
	AvgPrice       float64 `json:"avg_price"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	Currency       string  `json:"currency"`
}

// GetPortfolio gets the account summary with current positions
func (c *Client) GetPortfolio() (*domain.BrokerPortfolio, error) {
	resp, err := c.get("/api/portfolio/summary")
	if err != nil {
		return nil, err
	}

	var summary PortfolioSummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio: %w", err)
	}

	c.log.Debug().Int("positions_count", len(summary.Positions)).Msg("GetPortfolio: successfully parsed")
	return transformPortfolio(summary), nil
}

// SecurityInfo represents a found security
type SecurityInfo struct {
	Symbol         string  `json:"symbol"`
	FIGI           *string `json:"figi"`
	Name           *string `json:"name"`
	InstrumentType *string `json:"instrument_type"`
	Currency       *string `json:"currency"`
	LotSize        int64   `json:"lot_size"`
}

// FindSymbolResponse is the payload of /api/securities/find
type FindSymbolResponse struct {
	Found []SecurityInfo `json:"found"`
}

// FindSymbol looks up securities by ticker
func (c *Client) FindSymbol(symbol string) ([]domain.BrokerSecurityInfo, error) {
	resp, err := c.get("/api/securities/find?symbol=" + url.QueryEscape(symbol))
	if err != nil {
		return nil, err
	}

	var result FindSymbolResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse securities: %w", err)
	}

	return transformSecurities(result.Found), nil
}

// Quote represents a last-price quote
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Timestamp string  `json:"timestamp"`
}

// GetQuote gets the last price for a symbol
func (c *Client) GetQuote(symbol string) (*domain.BrokerQuote, error) {
	resp, err := c.get("/api/quotes/" + url.PathEscape(symbol))
	if err != nil {
		return nil, err
	}

	var q Quote
	if err := json.Unmarshal(resp.Data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse quote: %w", err)
	}

	return &domain.BrokerQuote{
		Symbol:    q.Symbol,
		Price:     q.Price,
		Currency:  q.Currency,
		Timestamp: q.Timestamp,
	}, nil
}

// HealthResponse is the payload of /health
type HealthResponse struct {
	Connected bool `json:"connected"`
}

// HealthCheck checks if the brokerage microservice is reachable and connected
func (c *Client) HealthCheck() (*domain.BrokerHealthResult, error) {
	resp, err := c.get("/health")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health: %w", err)
	}

	return &domain.BrokerHealthResult{
		Connected: health.Connected,
		Timestamp: resp.Timestamp,
	}, nil
}

var _ domain.BrokerClient = (*Client)(nil)
