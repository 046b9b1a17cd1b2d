package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/backtest"
	"COTSentinel/internal/collector"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/service"
	"COTSentinel/internal/strategy"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func series(nets ...int64) []model.WeeklyPosition {
	out := make([]model.WeeklyPosition, len(nets))
	for i, n := range nets {
		out[len(nets)-1-i] = model.WeeklyPosition{Date: start.AddDate(0, 0, 7*i), NetNonComm: n}
	}
	return out
}

func daily(days int, p0, step float64) []model.PricePoint {
	out := make([]model.PricePoint, days)
	for i := range out {
		out[i] = model.PricePoint{Date: start.AddDate(0, 0, i), Price: p0 + step*float64(i)}
	}
	return out
}

func newTestServer(t *testing.T, fetchErr error) *Server {
	t.Helper()
	mock := &collector.MockFetcher{
		Feed: model.PositionFeed{
			"EUR": {Code: "099741", Weeks: series(-50, -40, 10, 60, 80, 70, 65, 40)},
			"USD": {Code: "098662", Weeks: series(5, 5, 5, 5, 5, 5, 5, 5)},
		},
		Prices: map[string][]model.PricePoint{"EURUSD=X": daily(80, 1.10, -0.001)},
		Err:    fetchErr,
	}
	table, err := pairs.Default().Select([]string{"EURUSD", "GBPUSD"}, nil)
	require.NoError(t, err)
	filter := backtest.Filter{ExcludeConflicts: true}
	svc := service.New(collector.NewCollector(mock, mock, nil, collector.GuardSettings{}), table, filter, 2)
	return NewServer(":0", svc, table, filter)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthBeforeAndAfterRefresh(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var h healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "starting", h.Status)

	require.Equal(t, http.StatusOK, get(t, s, "/pairs/EURUSD/signals").Code)

	rec = get(t, s, "/healthz")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Pairs)
	assert.Equal(t, []string{"GBPUSD"}, h.Failed)
}

type snapshotEngine struct {
	snap *service.Snapshot
}

func (e snapshotEngine) Latest() *service.Snapshot { return e.snap }
func (e snapshotEngine) Pair(name string) (pairs.Pair, error) {
	return pairs.Pair{}, service.ErrUnknownPair
}
func (e snapshotEngine) Backtest(context.Context, string, backtest.Filter) (*model.RunResult, error) {
	return nil, service.ErrUnknownPair
}
func (e snapshotEngine) Explain(context.Context, string) (strategy.Verdict, model.InstrumentSnapshot, model.InstrumentSnapshot, error) {
	return strategy.Verdict{}, model.InstrumentSnapshot{}, model.InstrumentSnapshot{}, service.ErrUnknownPair
}

func TestHealthFailedPairsSorted(t *testing.T) {
	boom := errors.New("boom")
	snap := &service.Snapshot{RunAt: start, Failures: map[string]error{
		"USDJPY": boom, "AUDUSD": boom, "GBPUSD": boom, "EURCHF": boom, "NZDUSD": boom,
	}}
	s := NewServer(":0", snapshotEngine{snap: snap}, pairs.Default(), backtest.Filter{})

	want := []string{"AUDUSD", "EURCHF", "GBPUSD", "NZDUSD", "USDJPY"}
	for i := 0; i < 5; i++ {
		var h healthResponse
		require.NoError(t, json.Unmarshal(get(t, s, "/healthz").Body.Bytes(), &h))
		assert.Equal(t, want, h.Failed)
	}
}

func TestListPairs(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/pairs")
	require.Equal(t, http.StatusOK, rec.Code)

	var ps []pairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ps))
	require.Len(t, ps, 2)
	assert.Equal(t, "EURUSD", ps[0].Name)
	assert.Equal(t, "099741", ps[0].BaseCode)
	assert.Equal(t, "098662", ps[0].QuoteCode)
}

func TestSignals(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/pairs/eurusd/signals")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp signalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EURUSD", resp.Pair)
	assert.Equal(t, 6, resp.Count)
	assert.NotEmpty(t, resp.RunID)

	rec = get(t, s, "/pairs/EURUSD/signals?limit=2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.True(t, resp.Signals[1].Date.After(resp.Signals[0].Date))

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/pairs/EURUSD/signals?limit=x").Code)
}

func TestBacktest(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/pairs/EURUSD/backtest")
	require.Equal(t, http.StatusOK, rec.Code)
	var res model.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Summary.ExcludeConflicts)
	assert.Len(t, res.Summary.Equity, res.Summary.Total)

	rec = get(t, s, "/pairs/EURUSD/backtest?min_conviction=9&exclude_conflicts=false")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 9, res.Summary.MinConviction)
	assert.False(t, res.Summary.ExcludeConflicts)
	assert.Contains(t, res.Summary.ByType, model.Conflict)
}

func TestBacktestBadQuery(t *testing.T) {
	s := newTestServer(t, nil)
	for _, q := range []string{"min_conviction=10", "min_conviction=-1", "min_conviction=abc", "exclude_conflicts=maybe"} {
		rec := get(t, s, "/pairs/EURUSD/backtest?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/pairs/XAUUSD/backtest").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, get(t, s, "/pairs/GBPUSD/signals").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)

	down := newTestServer(t, errors.New("cftc down"))
	rec := get(t, down, "/pairs/EURUSD/signals")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "cftc down")
}

func TestExplain(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/pairs/EURUSD/explain")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Pair    string `json:"pair"`
		Verdict struct {
			Direction string            `json:"direction"`
			Steps     []model.ScoreStep `json:"steps"`
		} `json:"verdict"`
		Quote model.InstrumentSnapshot `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EURUSD", resp.Pair)
	assert.NotEmpty(t, resp.Verdict.Steps)
	assert.Equal(t, 50, resp.Quote.COTIndex)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	get(t, s, "/pairs/EURUSD/signals")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cot_backtest_runs_total"))
}

func TestShutdown(t *testing.T) {
	s := newTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
