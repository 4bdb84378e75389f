package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/investbot/balancer/internal/domain"
	"github.com/investbot/balancer/internal/modules/allocation"
	"github.com/investbot/balancer/internal/modules/rebalancing"
	testingpkg "github.com/investbot/balancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSnapshots struct {
	snapshot *domain.PortfolioSnapshot
	err      error
}

func (f fixedSnapshots) Current() (*domain.PortfolioSnapshot, error) {
	return f.snapshot, f.err
}

func setupRouter(snapshots SnapshotProvider) *chi.Mux {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	service := rebalancing.NewService(
		allocation.StaticTableProvider{Table: allocation.DefaultBucketTable()},
		nil,
		logger,
	)
	router := chi.NewRouter()
	NewHandler(service, snapshots, logger).RegisterRoutes(router)
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleGetAnalysis_Balanced(t *testing.T) {
	router := setupRouter(fixedSnapshots{snapshot: testingpkg.BalancedSnapshot()})

	req := httptest.NewRequest("GET", "/rebalancing/analysis", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, false, data["has_deviations"])
	assert.Contains(t, response, "metadata")
}

func TestHandleGetAnalysis_SnapshotFailure(t *testing.T) {
	router := setupRouter(fixedSnapshots{err: errors.New("broker down")})

	req := httptest.NewRequest("GET", "/rebalancing/analysis", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleGetPlan_NoLiveSource(t *testing.T) {
	router := setupRouter(nil)

	req := httptest.NewRequest("GET", "/rebalancing/plan", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

const concentratedBody = `{
	"snapshot": {
		"total_value": {"amount": "100000", "currency": "RUB"},
		"holdings": [
			{"ticker": "TMOS@", "instrument_id": "BBG333333333", "type": "fund",
			 "quantity": 2000, "price": {"amount": "10", "currency": "RUB"}, "lot_size": 1},
			{"ticker": "SBER", "instrument_id": "BBG004730N88", "type": "equity",
			 "quantity": 70, "price": {"amount": "100", "currency": "RUB"}, "lot_size": 10}
		]
	}
}`

func TestHandlePostPlan(t *testing.T) {
	router := setupRouter(nil)

	req := httptest.NewRequest("POST", "/rebalancing/plan", bytes.NewBufferString(concentratedBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, false, data["balanced"])

	plan := data["plan"].(map[string]interface{})
	sells := plan["sell_actions"].([]interface{})
	require.Len(t, sells, 1)
	sell := sells[0].(map[string]interface{})
	assert.Equal(t, "SBER", sell["ticker"])
	assert.Equal(t, float64(1), sell["lots"])
	assert.Equal(t, "1000", sell["amount"])
	assert.Equal(t, "concentration-risk", sell["reason"])
	assert.Equal(t, "1000", plan["total_cash_from_sales"])
}

func TestHandlePostPlan_WithAvailableCash(t *testing.T) {
	router := setupRouter(nil)
	body := `{"available_cash": "935",
		"snapshot": {"total_value": {"amount": "100000", "currency": "RUB"},
		"holdings": [{"ticker": "TMOS@", "type": "fund", "quantity": 1000,
		"price": {"amount": "6.5", "currency": "RUB"}, "lot_size": 10}]}}`

	req := httptest.NewRequest("POST", "/rebalancing/plan", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	plan := decode(t, w)["data"].(map[string]interface{})["plan"].(map[string]interface{})
	buys := plan["buy_actions"].([]interface{})
	// Only core resolves from holdings; its budget is 935 × 13.5 / 93.5 = 135, two lots of 65
	require.Len(t, buys, 1)
	buy := buys[0].(map[string]interface{})
	assert.Equal(t, "TMOS@", buy["ticker"])
	assert.Equal(t, float64(2), buy["lots"])
}

func TestHandlePostPlan_BadRequests(t *testing.T) {
	router := setupRouter(nil)

	tests := map[string]string{
		"malformed":        `{"snapshot":`,
		"missing snapshot": `{}`,
		"negative cash":    `{"available_cash": -1, "snapshot": {"total_value": {"amount": "1", "currency": "RUB"}, "holdings": []}}`,
		"negative quantity": `{"snapshot": {"total_value": {"amount": "1", "currency": "RUB"},
			"holdings": [{"ticker": "SBER", "quantity": -1, "price": {"amount": "1", "currency": "RUB"}, "lot_size": 1}]}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/rebalancing/plan", bytes.NewBufferString(body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandlePost_BodyTooLarge(t *testing.T) {
	router := setupRouter(nil)
	body := `{"snapshot": {"total_value": {"amount": "` + strings.Repeat("1", maxBodyBytes) + `", "currency": "RUB"}, "holdings": []}}`

	for _, path := range []string{"/rebalancing/analysis", "/rebalancing/plan"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, strings.NewReader(body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		})
	}
}

func TestHandlePostAnalysis_NonPositiveTotal(t *testing.T) {
	router := setupRouter(nil)
	body := `{"snapshot": {"total_value": {"amount": "0", "currency": "RUB"}, "holdings": []}}`

	req := httptest.NewRequest("POST", "/rebalancing/analysis", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	response := decode(t, w)
	metadata := response["metadata"].(map[string]interface{})
	assert.Contains(t, metadata, "warning")
	data := response["data"].(map[string]interface{})
	assert.Equal(t, false, data["has_deviations"])
}
