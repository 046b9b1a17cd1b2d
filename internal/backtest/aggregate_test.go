package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/model"
)

func trade(days int, typ model.SignalType, conv int, pct float64, res model.Outcome) model.MatchedSignal {
	return model.MatchedSignal{
		Signal:    model.Signal{Date: at(days), Type: typ, Conviction: conv, Direction: model.Buy},
		PctChange: pct,
		Result:    res,
	}
}

func sample() []model.MatchedSignal {
	return []model.MatchedSignal{
		trade(0, model.Contrarian, 5, 1.2, model.Win),
		trade(7, model.Trend, 4, -0.8, model.Loss),
		trade(14, model.Conflict, 2, 0.5, model.Win),
		trade(21, model.Contrarian, 7, 0, model.Flat),
		trade(28, model.Trend, 6, -0.4, model.Win),
	}
}

func TestSummarize_AllSignals(t *testing.T) {
	sum := Summarize(sample(), Filter{})

	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.Equal(t, 1, sum.Flats)
	assert.Equal(t, 4, sum.Decided)
	assert.InDelta(t, 0.75, sum.WinRate, 1e-9)
	assert.InDelta(t, (1.2+0.5+0.4)/3, sum.AvgWinPct, 1e-9)
	assert.InDelta(t, 0.8, sum.AvgLossPct, 1e-9)

	require.Contains(t, sum.ByType, model.Conflict)
	assert.Equal(t, model.TypeStats{Total: 2, Wins: 1, Flats: 1}, sum.ByType[model.Contrarian])
	assert.Equal(t, model.TypeStats{Total: 2, Wins: 1, Losses: 1}, sum.ByType[model.Trend])
	assert.Equal(t, model.TypeStats{Total: 1, Wins: 1}, sum.ByType[model.Conflict])
}

func TestSummarize_EquityCurve(t *testing.T) {
	sum := Summarize(sample(), Filter{})
	require.Len(t, sum.Equity, 5)

	want := []float64{1.2, 0.4, 0.9, 0.9, 1.3}
	for i, p := range sum.Equity {
		assert.Equal(t, at(7*i), p.Date)
		assert.InDelta(t, want[i], p.CumulativePct, 1e-9, "point %d", i)
	}
}

func TestSummarize_Filters(t *testing.T) {
	sum := Summarize(sample(), Filter{MinConviction: 5})
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 5, sum.MinConviction)

	sum = Summarize(sample(), Filter{ExcludeConflicts: true})
	assert.Equal(t, 4, sum.Total)
	assert.NotContains(t, sum.ByType, model.Conflict)
	assert.Contains(t, sum.ByType, model.Contrarian)
	assert.Contains(t, sum.ByType, model.Trend)

	// conflicts carry conviction 2 so a threshold above that removes them too
	sum = Summarize(sample(), Filter{MinConviction: 3})
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, model.TypeStats{}, sum.ByType[model.Conflict])
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil, Filter{MinConviction: 9})
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.WinRate)
	assert.Zero(t, sum.AvgWinPct)
	assert.Zero(t, sum.AvgLossPct)
	assert.Empty(t, sum.Equity)

	flatOnly := []model.MatchedSignal{trade(0, model.Trend, 5, 0, model.Flat)}
	sum = Summarize(flatOnly, Filter{})
	assert.Equal(t, 1, sum.Total)
	assert.Zero(t, sum.Decided)
	assert.Zero(t, sum.WinRate)
	require.Len(t, sum.Equity, 1)
	assert.Zero(t, sum.Equity[0].CumulativePct)
}

func TestApply_PreservesOrder(t *testing.T) {
	kept := Apply(sample(), Filter{MinConviction: 4, ExcludeConflicts: true})
	require.Len(t, kept, 4)
	for i := 1; i < len(kept); i++ {
		assert.True(t, kept[i].Date.After(kept[i-1].Date))
	}
}
