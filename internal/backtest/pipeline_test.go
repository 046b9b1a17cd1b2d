package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/strategy"
)

// series builds a newest-first weekly series from chronological nets, starting at day0.
func series(nets ...int64) []model.WeeklyPosition {
	out := make([]model.WeeklyPosition, len(nets))
	for i, n := range nets {
		out[len(nets)-1-i] = model.WeeklyPosition{Date: at(7 * i), NetNonComm: n}
	}
	return out
}

func dailyPrices(days int, start, step float64) []model.PricePoint {
	out := make([]model.PricePoint, days)
	for i := range out {
		out[i] = point(i, start+step*float64(i))
	}
	return out
}

func testFeed() model.PositionFeed {
	return model.PositionFeed{
		"EUR": {Code: "099741", Market: "EURO FX", Weeks: series(-50, -40, 10, 60, 80, 70)},
		"USD": {Code: "098662", Market: "USD INDEX", Weeks: series(0, 0, 0, 0, 0, 0)},
		"JPY": {Code: "097741", Market: "JAPANESE YEN", Weeks: series(5, 4, 3, 2, 1, 0)},
	}
}

func TestRun(t *testing.T) {
	p, ok := pairs.Default().Pair("EURUSD")
	require.True(t, ok)

	res, err := Run(p, testFeed(), dailyPrices(60, 1.10, 0.001), Filter{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "EURUSD", res.Pair)
	assert.Len(t, res.Signals, 4)
	assert.Len(t, res.Matched, 4)
	assert.Zero(t, res.Dropped)
	assert.Equal(t, len(res.Matched), res.Summary.Total)
	assert.Len(t, res.Summary.Equity, res.Summary.Total)
}

func TestRun_NoPricesStillReturnsSignals(t *testing.T) {
	p, _ := pairs.Default().Pair("EURUSD")

	res, err := Run(p, testFeed(), nil, Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Signals, 4)
	assert.Empty(t, res.Matched)
	assert.Equal(t, 4, res.Dropped)
	assert.Zero(t, res.Summary.Total)
}

func TestRun_MissingInstrument(t *testing.T) {
	p, _ := pairs.Default().Pair("GBPUSD")

	_, err := Run(p, testFeed(), nil, Filter{})
	assert.ErrorIs(t, err, strategy.ErrDataUnavailable)
}

func TestRunAll_PreservesOrder(t *testing.T) {
	table := pairs.Default()
	var inputs []Input
	for _, name := range []string{"EURUSD", "GBPUSD", "USDJPY", "EURJPY"} {
		p, ok := table.Pair(name)
		require.True(t, ok)
		inputs = append(inputs, Input{Pair: p, Prices: dailyPrices(60, 1.0, 0.002)})
	}

	out := RunAll(context.Background(), testFeed(), inputs, Filter{}, 3)
	require.Len(t, out, len(inputs))
	for i, o := range out {
		assert.Equal(t, inputs[i].Pair.Name, o.Pair.Name)
	}
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, strategy.ErrDataUnavailable)
	assert.NoError(t, out[2].Err)
	assert.NoError(t, out[3].Err)
	assert.Len(t, out[3].Result.Signals, 4)
}

func TestRunAll_CanceledContext(t *testing.T) {
	p, _ := pairs.Default().Pair("EURUSD")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := RunAll(ctx, testFeed(), []Input{{Pair: p}}, Filter{}, 0)
	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
}

func TestRunAll_Empty(t *testing.T) {
	assert.Empty(t, RunAll(context.Background(), testFeed(), nil, Filter{}, 4))
}
