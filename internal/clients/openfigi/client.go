// Package openfigi resolves exchange tickers to FIGI identifiers through
// Bloomberg's OpenFIGI mapping API.
package openfigi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/investbot/balancer/internal/clientdata"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.openfigi.com/v3"

	// ExchangeMoscow is the Bloomberg exchange code for MOEX listings.
	ExchangeMoscow = "RX"
)

// MappingRequest is one job in a mapping API call.
type MappingRequest struct {
	IDType   string `json:"idType"`
	IDValue  string `json:"idValue"`
	ExchCode string `json:"exchCode,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// MappingResult is a single matched instrument.
type MappingResult struct {
	FIGI          string `json:"figi"`
	Ticker        string `json:"ticker"`
	ExchCode      string `json:"exchCode"`
	Name          string `json:"name"`
	MarketSector  string `json:"marketSector"`
	SecurityType  string `json:"securityType"`
	CompositeFIGI string `json:"compositeFIGI"`
}

// MappingResponse is the API answer for one MappingRequest.
type MappingResponse struct {
	Data    []MappingResult `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// Client is the OpenFIGI API client.
type Client struct {
	baseURL    string
	apiKey     string // optional, raises the rate limit
	httpClient *http.Client
	log        zerolog.Logger
	cacheRepo  *clientdata.Repository
}

// NewClient creates a new OpenFIGI client.
// cacheRepo is optional; when nil every lookup goes to the API.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:       log.With().Str("component", "openfigi").Logger(),
		cacheRepo: cacheRepo,
	}
}

func cacheKey(ticker, exchCode string) string {
	if exchCode == "" {
		return ticker
	}
	return ticker + ":" + exchCode
}

// LookupTicker maps a ticker to its FIGI listings, optionally restricted to
// one exchange. Fresh cache entries are served without a request; when the
// API fails a stale entry is returned instead of the error.
func (c *Client) LookupTicker(ticker, exchCode string) ([]MappingResult, error) {
	key := cacheKey(ticker, exchCode)

	if results, ok := c.readCache(key, true); ok {
		c.log.Debug().Str("ticker", ticker).Msg("OpenFIGI cache hit")
		return results, nil
	}

	responses, err := c.doRequest([]MappingRequest{{
		IDType:   "TICKER",
		IDValue:  ticker,
		ExchCode: exchCode,
	}})
	if err != nil {
		if stale, ok := c.readCache(key, false); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached data")
			return stale, nil
		}
		return nil, err
	}

	if len(responses) == 0 {
		return nil, nil
	}
	if responses[0].Error != "" {
		// "No identifier found." is a miss, not a failure.
		c.log.Debug().Str("ticker", ticker).Str("error", responses[0].Error).Msg("OpenFIGI returned no match")
		return nil, nil
	}

	results := responses[0].Data
	c.writeCache(key, results)

	return results, nil
}

// FirstFIGI returns the FIGI of the first listing for ticker, or "" when
// nothing matches.
func (c *Client) FirstFIGI(ticker, exchCode string) (string, error) {
	results, err := c.LookupTicker(ticker, exchCode)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if r.FIGI != "" {
			return r.FIGI, nil
		}
	}
	return "", nil
}

func (c *Client) doRequest(requests []MappingRequest) ([]MappingResponse, error) {
	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/mapping", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
	}

	c.log.Debug().Int("count", len(requests)).Msg("Making OpenFIGI request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OpenFIGI API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var responses []MappingResponse
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return responses, nil
}

func (c *Client) readCache(key string, freshOnly bool) ([]MappingResult, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var (
		data json.RawMessage
		err  error
	)
	if freshOnly {
		data, err = c.cacheRepo.GetIfFresh(clientdata.TableOpenFIGI, key)
	} else {
		data, err = c.cacheRepo.Get(clientdata.TableOpenFIGI, key)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to read cache")
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var results []MappingResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached data")
		return nil, false
	}

	return results, true
}

func (c *Client) writeCache(key string, results []MappingResult) {
	if c.cacheRepo == nil {
		return
	}

	if err := c.cacheRepo.Store(clientdata.TableOpenFIGI, key, results, clientdata.TTLOpenFIGI); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache OpenFIGI results")
	}
}
