package openfigi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/investbot/balancer/internal/clientdata"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheRepo(t *testing.T) (*clientdata.Repository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE openfigi (ticker TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL)`)
	require.NoError(t, err)

	return clientdata.NewRepository(db), db
}

func sberResponse() []MappingResponse {
	return []MappingResponse{{
		Data: []MappingResult{{
			FIGI:         "BBG004730N88",
			Ticker:       "SBER",
			ExchCode:     "RX",
			Name:         "SBERBANK",
			MarketSector: "Equity",
		}},
	}}
}

func TestLookupTicker_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mapping", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-OPENFIGI-APIKEY"))

		var req []MappingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req, 1)
		assert.Equal(t, "TICKER", req[0].IDType)
		assert.Equal(t, "SBER", req[0].IDValue)
		assert.Equal(t, "RX", req[0].ExchCode)

		json.NewEncoder(w).Encode(sberResponse())
	}))
	defer server.Close()

	client := NewClient("secret", nil, zerolog.Nop())
	client.baseURL = server.URL

	results, err := client.LookupTicker("SBER", ExchangeMoscow)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "BBG004730N88", results[0].FIGI)
	assert.Equal(t, "SBERBANK", results[0].Name)
}

func TestLookupTicker_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]MappingResponse{{Warning: "No identifier found."}})
	}))
	defer server.Close()

	client := NewClient("", nil, zerolog.Nop())
	client.baseURL = server.URL

	figi, err := client.FirstFIGI("NOPE", "")
	require.NoError(t, err)
	assert.Empty(t, figi)
}

func TestLookupTicker_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := NewClient("", nil, zerolog.Nop())
	client.baseURL = server.URL

	_, err := client.LookupTicker("SBER", ExchangeMoscow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestLookupTicker_CachesResults(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(sberResponse())
	}))
	defer server.Close()

	repo, _ := newCacheRepo(t)
	client := NewClient("", repo, zerolog.Nop())
	client.baseURL = server.URL

	first, err := client.LookupTicker("SBER", ExchangeMoscow)
	require.NoError(t, err)
	second, err := client.LookupTicker("SBER", ExchangeMoscow)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookupTicker_StaleFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo, db := newCacheRepo(t)
	payload, err := json.Marshal(sberResponse()[0].Data)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO openfigi (ticker, data, expires_at) VALUES (?, ?, ?)",
		"SBER:RX", string(payload), time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	client := NewClient("", repo, zerolog.Nop())
	client.baseURL = server.URL

	figi, err := client.FirstFIGI("SBER", ExchangeMoscow)
	require.NoError(t, err)
	assert.Equal(t, "BBG004730N88", figi)
}
