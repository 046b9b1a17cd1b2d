package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/model"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time { return day0.AddDate(0, 0, days) }

func point(days int, price float64) model.PricePoint {
	return model.PricePoint{Date: at(days), Price: price}
}

func TestMatch_SellWinRoundsToThreeDecimals(t *testing.T) {
	sig := model.Signal{Date: at(0), Direction: model.Sell, Conviction: 5, Type: model.Contrarian}
	prices := []model.PricePoint{point(0, 1.1000), point(4, 1.1020), point(9, 1.0950)}

	matched, dropped := Match([]model.Signal{sig}, prices)
	require.Len(t, matched, 1)
	assert.Zero(t, dropped)

	m := matched[0]
	assert.Equal(t, at(0), m.EntryDate)
	assert.Equal(t, at(9), m.ExitDate)
	assert.Equal(t, 1.1000, m.EntryPrice)
	assert.Equal(t, 1.0950, m.ExitPrice)
	assert.InDelta(t, -0.455, m.PctChange, 1e-9)
	assert.Equal(t, model.Win, m.Result)
}

func TestMatch_EntryAndExitOnOrAfter(t *testing.T) {
	// weekend gap: signal falls on day 0 but the first quote is day 2
	sig := model.Signal{Date: at(0), Direction: model.Buy}
	prices := []model.PricePoint{point(-1, 0.9), point(2, 1.0), point(8, 1.05), point(11, 1.2)}

	matched, dropped := Match([]model.Signal{sig}, prices)
	require.Len(t, matched, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, at(2), matched[0].EntryDate)
	assert.Equal(t, at(11), matched[0].ExitDate)
	assert.InDelta(t, 20.0, matched[0].PctChange, 1e-9)
	assert.Equal(t, model.Win, matched[0].Result)
}

func TestMatch_DropsUncoveredSignals(t *testing.T) {
	sigs := []model.Signal{
		{Date: at(0), Direction: model.Buy},
		{Date: at(7), Direction: model.Buy},
		{Date: at(30), Direction: model.Buy},
	}
	prices := []model.PricePoint{point(0, 1), point(9, 1.1), point(10, 1.2)}

	matched, dropped := Match(sigs, prices)
	require.Len(t, matched, 1)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, at(0), matched[0].Date)

	matched, dropped = Match(sigs, nil)
	assert.Empty(t, matched)
	assert.Equal(t, 3, dropped)
}

func TestMatch_SortsUnorderedPricesOnCopy(t *testing.T) {
	prices := []model.PricePoint{point(9, 1.2), point(0, 1.0), point(5, 1.1)}
	sig := model.Signal{Date: at(0), Direction: model.Sell}

	matched, dropped := Match([]model.Signal{sig}, prices)
	require.Len(t, matched, 1)
	assert.Zero(t, dropped)
	assert.Equal(t, 1.0, matched[0].EntryPrice)
	assert.Equal(t, 1.2, matched[0].ExitPrice)
	assert.Equal(t, model.Loss, matched[0].Result)

	assert.Equal(t, at(9), prices[0].Date, "caller slice must not be reordered")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		dir   model.Direction
		entry float64
		exit  float64
		want  model.Outcome
	}{
		{"buy up", model.Buy, 1.0, 1.1, model.Win},
		{"buy down", model.Buy, 1.1, 1.0, model.Loss},
		{"sell down", model.Sell, 1.1, 1.0, model.Win},
		{"sell up", model.Sell, 1.0, 1.1, model.Loss},
		{"buy flat", model.Buy, 1.25, 1.25, model.Flat},
		{"sell flat", model.Sell, 1.25, 1.25, model.Flat},
		{"tiny move still decides", model.Buy, 1.0, 1.000001, model.Win},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.dir, tt.entry, tt.exit))
		})
	}
}

func TestPctChange(t *testing.T) {
	assert.InDelta(t, -0.455, PctChange(1.1, 1.095), 1e-9)
	assert.InDelta(t, 0.0, PctChange(1.0, 1.000001), 1e-9)
	assert.InDelta(t, 10.0, PctChange(1.0, 1.1), 1e-9)
	assert.Zero(t, PctChange(0, 1.2))
}
