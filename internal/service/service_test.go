package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/backtest"
	"COTSentinel/internal/collector"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/recorder"
	"COTSentinel/internal/strategy"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// series builds a newest-first weekly series from chronological nets.
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

func newService(t *testing.T, names ...string) (*Service, *recorder.SQLiteRecorder) {
	t.Helper()
	mock := &collector.MockFetcher{
		Feed: model.PositionFeed{
			"EUR": {Code: "099741", Weeks: series(-50, -40, 10, 60, 80, 70, 65, 40)},
			"USD": {Code: "098662", Weeks: series(5, 5, 5, 5, 5, 5, 5, 5)},
			"JPY": {Code: "097741", Weeks: series(-90, -80, -85, -100, -60, -20, 0, 10)},
		},
		Prices: map[string][]model.PricePoint{
			"EURUSD=X": daily(80, 1.10, -0.001),
			"USDJPY=X": daily(80, 140, 0.1),
		},
	}
	rec, err := recorder.NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	table, err := pairs.Default().Select(names, nil)
	require.NoError(t, err)
	col := collector.NewCollector(mock, mock, rec, collector.GuardSettings{})
	return New(col, table, backtest.Filter{ExcludeConflicts: true}, 2), rec
}

func TestRefresh(t *testing.T) {
	svc, rec := newService(t, "EURUSD", "GBPUSD", "USDJPY")
	assert.Nil(t, svc.Latest())

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, svc.Latest())

	require.Len(t, snap.Results, 2)
	assert.Equal(t, "EURUSD", snap.Results[0].Pair)
	assert.Equal(t, "USDJPY", snap.Results[1].Pair)
	assert.Len(t, snap.Results[0].Signals, 6)

	require.Contains(t, snap.Failures, "GBPUSD")
	assert.ErrorIs(t, snap.Failures["GBPUSD"], strategy.ErrDataUnavailable)

	cached, err := rec.LoadPrices("EURUSD")
	require.NoError(t, err)
	assert.NotEmpty(t, cached, "prices are written through to the feed cache")
}

func TestBacktestRefiltersLatestRun(t *testing.T) {
	svc, _ := newService(t, "EURUSD")

	all, err := svc.Backtest(context.Background(), "eurusd", backtest.Filter{})
	require.NoError(t, err)
	assert.Equal(t, len(all.Matched), all.Summary.Total)

	strict, err := svc.Backtest(context.Background(), "EURUSD", backtest.Filter{MinConviction: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, strict.Summary.MinConviction)
	assert.LessOrEqual(t, strict.Summary.Total, all.Summary.Total)
	assert.Equal(t, all.RunID, strict.RunID)

	latest, _ := svc.Latest().Result("EURUSD")
	assert.True(t, latest.Summary.ExcludeConflicts, "stored run keeps the configured filter")
}

func TestBacktestErrors(t *testing.T) {
	svc, _ := newService(t, "EURUSD", "GBPUSD")

	_, err := svc.Backtest(context.Background(), "XAUUSD", backtest.Filter{})
	assert.ErrorIs(t, err, ErrUnknownPair)

	_, err = svc.Backtest(context.Background(), "GBPUSD", backtest.Filter{})
	assert.ErrorIs(t, err, strategy.ErrDataUnavailable)
}

func TestExplain(t *testing.T) {
	svc, _ := newService(t, "EURUSD")

	v, bs, qs, err := svc.Explain(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.NotEmpty(t, v.Steps)
	assert.Equal(t, 50, qs.COTIndex, "flat quote")
	assert.GreaterOrEqual(t, bs.COTIndex, 0)

	sigs := svc.Latest().Results[0].Signals
	last := sigs[len(sigs)-1]
	assert.Equal(t, last.Direction, v.Direction)
	assert.Equal(t, last.Conviction, v.Conviction)
}

func TestExplainMissingInstrument(t *testing.T) {
	svc, _ := newService(t, "EURUSD", "GBPUSD")

	_, _, _, err := svc.Explain(context.Background(), "GBPUSD")
	var dae *strategy.DataAvailabilityError
	require.True(t, errors.As(err, &dae))
	assert.Equal(t, "GBP", dae.Instrument)
	assert.Contains(t, dae.Reason, "missing")
}

func TestRefreshCollectFailure(t *testing.T) {
	table, err := pairs.Default().Select([]string{"EURUSD"}, nil)
	require.NoError(t, err)
	down := &collector.MockFetcher{Err: errors.New("down")}
	svc := New(collector.NewCollector(down, down, nil, collector.GuardSettings{}), table, backtest.Filter{}, 1)

	_, err = svc.Refresh(context.Background())
	var fe *collector.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Nil(t, svc.Latest())
}
