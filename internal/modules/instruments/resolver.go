// Package instruments resolves purchase tickers to tradeable instruments
// using the brokerage lookup and quote endpoints.
package instruments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/investbot/balancer/internal/clientdata"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/rebalancing"
)

// FIGILookup fills in instrument ids the broker does not return
type FIGILookup interface {
	FirstFIGI(ticker, exchCode string) (string, error)
}

// Instrument is the cached instrument metadata
type Instrument struct {
	Ticker  string `json:"ticker"`
	FIGI    string `json:"figi"`
	Name    string `json:"name"`
	LotSize int64  `json:"lot_size"`
}

type cachedPrice struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// BrokerResolver implements rebalancing.PurchaseResolver on top of the
// brokerage client. Metadata and prices are cached in client_data.db when a
// cache repository is set; stale entries cover broker outages.
type BrokerResolver struct {
	broker   domain.BrokerClient
	cache    *clientdata.Repository
	figi     FIGILookup
	exchCode string
	log      zerolog.Logger
}

// NewBrokerResolver creates a resolver. cache may be nil.
func NewBrokerResolver(broker domain.BrokerClient, cache *clientdata.Repository, log zerolog.Logger) *BrokerResolver {
	return &BrokerResolver{
		broker: broker,
		cache:  cache,
		log:    log.With().Str("resolver", "instruments").Logger(),
	}
}

// WithFIGILookup enables FIGI backfill for instruments on exchCode.
func (r *BrokerResolver) WithFIGILookup(lookup FIGILookup, exchCode string) *BrokerResolver {
	r.figi = lookup
	r.exchCode = exchCode
	return r
}

// Resolve implements rebalancing.PurchaseResolver.
func (r *BrokerResolver) Resolve(bucket allocation.BucketConfig) (*rebalancing.PurchaseCandidate, error) {
	ticker := bucket.PurchaseTicker
	if ticker == "" {
		return nil, fmt.Errorf("%w: bucket %s has no purchase ticker", rebalancing.ErrCandidateNotFound, bucket.ID)
	}

	inst, err := r.Instrument(ticker)
	if err != nil {
		return nil, err
	}

	price, err := r.LastPrice(ticker)
	if err != nil {
		return nil, err
	}

	return &rebalancing.PurchaseCandidate{
		Ticker:       inst.Ticker,
		InstrumentID: inst.FIGI,
		Name:         inst.Name,
		LotSize:      inst.LotSize,
		LastPrice:    price,
	}, nil
}

// Instrument returns metadata for an exact ticker match.
func (r *BrokerResolver) Instrument(ticker string) (*Instrument, error) {
	var inst Instrument
	if r.readCache(clientdata.TableInstruments, ticker, true, &inst) {
		return &inst, nil
	}

	found, err := r.broker.FindSymbol(ticker)
	if err != nil {
		if r.readCache(clientdata.TableInstruments, ticker, false, &inst) {
			r.log.Warn().Err(err).Str("ticker", ticker).Msg("Broker lookup failed, using stale instrument data")
			return &inst, nil
		}
		return nil, fmt.Errorf("failed to find %s: %w", ticker, err)
	}

	var match *domain.BrokerSecurityInfo
	for i := range found {
		if found[i].Symbol == ticker {
			match = &found[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", rebalancing.ErrCandidateNotFound, ticker)
	}

	inst = Instrument{Ticker: match.Symbol, LotSize: match.LotSize}
	if match.Name != nil {
		inst.Name = *match.Name
	}
	if match.FIGI != nil {
		inst.FIGI = *match.FIGI
	}
	if inst.LotSize == 0 {
		inst.LotSize = 1
	}
	if inst.FIGI == "" && r.figi != nil {
		figi, err := r.figi.FirstFIGI(ticker, r.exchCode)
		if err != nil {
			r.log.Warn().Err(err).Str("ticker", ticker).Msg("FIGI lookup failed")
		}
		inst.FIGI = figi
	}

	r.writeCache(clientdata.TableInstruments, ticker, inst, clientdata.TTLInstrument)
	return &inst, nil
}

// LastPrice returns the latest quote for ticker.
func (r *BrokerResolver) LastPrice(ticker string) (decimal.Decimal, error) {
	var cp cachedPrice
	if r.readCache(clientdata.TableCurrentPrices, ticker, true, &cp) {
		return cp.Price, nil
	}

	quote, err := r.broker.GetQuote(ticker)
	if err != nil {
		if r.readCache(clientdata.TableCurrentPrices, ticker, false, &cp) {
			r.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote failed, using stale price")
			return cp.Price, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}

	price := decimal.NewFromFloat(quote.Price)
	if price.IsPositive() {
		r.writeCache(clientdata.TableCurrentPrices, ticker, cachedPrice{Price: price, Currency: quote.Currency}, clientdata.TTLCurrentPrice)
	}
	return price, nil
}

func (r *BrokerResolver) readCache(table, key string, freshOnly bool, out interface{}) bool {
	if r.cache == nil {
		return false
	}

	var (
		data json.RawMessage
		err  error
	)
	if freshOnly {
		data, err = r.cache.GetIfFresh(table, key)
	} else {
		data, err = r.cache.Get(table, key)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to read cache")
		return false
	}
	if data == nil {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		r.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to unmarshal cached data")
		return false
	}
	return true
}

func (r *BrokerResolver) writeCache(table, key string, value interface{}, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Store(table, key, value, ttl); err != nil {
		r.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Failed to write cache")
	}
}
