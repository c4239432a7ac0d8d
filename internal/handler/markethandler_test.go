package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"cryptoetl/internal/analytics"
	"cryptoetl/internal/config"
	"cryptoetl/internal/svc"
)

type fakeReader struct {
	svc.MarketReader // unimplemented methods panic

	lastLimit int
	lastCoin  string
	freshness analytics.Freshness
	err       error
}

func (f *fakeReader) TopGainers(_ context.Context, n int) ([]analytics.Mover, error) {
	f.lastLimit = n
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.Mover{{CoinID: "bitcoin", PriceChange24h: 12.5}}, nil
}

func (f *fakeReader) TopLosers(_ context.Context, n int) ([]analytics.Mover, error) {
	f.lastLimit = n
	return nil, f.err
}

func (f *fakeReader) MarketSummary(context.Context) (analytics.Summary, error) {
	return analytics.Summary{TotalCoins: 20, TotalMarketCap: 2.5e12}, f.err
}

func (f *fakeReader) PriceHistory(_ context.Context, coin string, limit int) ([]analytics.HistoryPoint, error) {
	f.lastCoin, f.lastLimit = coin, limit
	if coin == "" {
		return nil, analytics.ErrCoinRequired
	}
	return []analytics.HistoryPoint{{CoinID: coin}, {CoinID: coin}}, nil
}

func (f *fakeReader) Freshness(context.Context, time.Duration, time.Time) (analytics.Freshness, error) {
	return f.freshness, f.err
}

func newAPIContext(r svc.MarketReader) *svc.APIContext {
	return &svc.APIContext{
		Config: config.APIConfig{Interval: 5 * time.Minute},
		Reader: r,
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func serve(t *testing.T, h http.HandlerFunc, target string, vars map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	SetupErrorHandler()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if vars != nil {
		req = pathvar.WithVars(req, vars)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func routeHandler(t *testing.T, ctx *svc.APIContext, path string) http.HandlerFunc {
	t.Helper()
	for _, r := range Routes(ctx) {
		if r.Path == path {
			return r.Handler
		}
	}
	t.Fatalf("route %s not registered", path)
	return nil
}

func TestRoutes_Registered(t *testing.T) {
	want := []string{
		"/summary", "/latest", "/gainers", "/losers", "/top-market-cap", "/top-volume",
		"/volatility", "/dominance", "/tiers", "/liquidity", "/sentiment", "/history/:coin", "/freshness",
	}
	var got []string
	for _, r := range Routes(newAPIContext(&fakeReader{})) {
		assert.Equal(t, http.MethodGet, r.Method)
		got = append(got, r.Path)
	}
	assert.ElementsMatch(t, want, got)
}

func TestGainers(t *testing.T) {
	reader := &fakeReader{}
	rec, body := serve(t, routeHandler(t, newAPIContext(reader), "/gainers"), "/api/v1/market/gainers?limit=3", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, reader.lastLimit)
	assert.EqualValues(t, 1, body["count"])
	items := body["items"].([]any)
	assert.Equal(t, "bitcoin", items[0].(map[string]any)["coin_id"])
}

func TestLosers_EmptyListIsArray(t *testing.T) {
	reader := &fakeReader{}
	rec, body := serve(t, routeHandler(t, newAPIContext(reader), "/losers"), "/api/v1/market/losers", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, reader.lastLimit, "clamping happens in the reader")
	assert.Equal(t, []any{}, body["items"])
}

func TestBadLimitIsBadRequest(t *testing.T) {
	rec, body := serve(t, routeHandler(t, newAPIContext(&fakeReader{}), "/gainers"), "/api/v1/market/gainers?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, http.StatusBadRequest, body["code"])
}

func TestReaderErrorIsInternal(t *testing.T) {
	reader := &fakeReader{err: errors.New("pq: too many connections")}
	rec, body := serve(t, routeHandler(t, newAPIContext(reader), "/summary"), "/api/v1/market/summary", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body["message"])
}

func TestSummary(t *testing.T) {
	rec, body := serve(t, routeHandler(t, newAPIContext(&fakeReader{}), "/summary"), "/api/v1/market/summary", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 20, body["total_coins"])
}

func TestHistory(t *testing.T) {
	reader := &fakeReader{}
	h := routeHandler(t, newAPIContext(reader), "/history/:coin")

	rec, body := serve(t, h, "/api/v1/market/history/ethereum?limit=50", map[string]string{"coin": "ethereum"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ethereum", reader.lastCoin)
	assert.Equal(t, 50, reader.lastLimit)
	assert.EqualValues(t, 2, body["count"])
}

func TestFreshness(t *testing.T) {
	at := time.Date(2024, 6, 1, 11, 54, 0, 0, time.UTC)
	reader := &fakeReader{freshness: analytics.Freshness{ExtractedAt: at, HasData: true, Age: 6 * time.Minute, Stale: true}}
	rec, body := serve(t, routeHandler(t, newAPIContext(reader), "/freshness"), "/api/v1/market/freshness", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-01T11:54:00Z", body["extracted_at"])
	assert.EqualValues(t, 360, body["age_seconds"])
	assert.EqualValues(t, 300, body["interval_seconds"])
	assert.Equal(t, true, body["stale"])

	reader.freshness = analytics.Freshness{Stale: true}
	_, body = serve(t, routeHandler(t, newAPIContext(reader), "/freshness"), "/api/v1/market/freshness", nil)
	assert.Nil(t, body["extracted_at"])
	assert.Equal(t, true, body["stale"])
}
