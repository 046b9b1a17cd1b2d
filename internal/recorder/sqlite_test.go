package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"COTSentinel/internal/model"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func date(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPositionsRoundTrip(t *testing.T) {
	r := newTestRecorder(t)

	rec := model.PositionRecord{
		Code:   "099741",
		Market: "EURO FX - CHICAGO MERCANTILE EXCHANGE",
		Weeks: []model.WeeklyPosition{
			{Date: date("2024-01-16"), NetNonComm: 120, NonCommLong: 200, NonCommShort: 80, NetComm: -50},
			{Date: date("2024-01-09"), NetNonComm: 100, NonCommLong: 180, NonCommShort: 80},
		},
	}
	require.NoError(t, r.SavePositions("EUR", rec))

	feed, err := r.LoadPositions([]string{"EUR", "USD"})
	require.NoError(t, err)
	require.Contains(t, feed, "EUR")
	assert.NotContains(t, feed, "USD")

	got := feed["EUR"]
	assert.Equal(t, rec.Code, got.Code)
	assert.Equal(t, rec.Market, got.Market)
	assert.Equal(t, rec.Weeks, got.Weeks)
}

func TestSavePositionsUpsertsAndOrdersNewestFirst(t *testing.T) {
	r := newTestRecorder(t)

	require.NoError(t, r.SavePositions("JPY", model.PositionRecord{Code: "097741", Weeks: []model.WeeklyPosition{
		{Date: date("2024-01-09"), NetNonComm: 1},
	}}))
	require.NoError(t, r.SavePositions("JPY", model.PositionRecord{Code: "097741", Weeks: []model.WeeklyPosition{
		{Date: date("2024-01-02"), NetNonComm: 0},
		{Date: date("2024-01-09"), NetNonComm: 5},
		{Date: date("2024-01-16"), NetNonComm: 9},
	}}))

	feed, err := r.LoadPositions([]string{"JPY"})
	require.NoError(t, err)
	weeks := feed["JPY"].Weeks
	require.Len(t, weeks, 3)
	assert.Equal(t, date("2024-01-16"), weeks[0].Date)
	assert.Equal(t, int64(5), weeks[1].NetNonComm)
	assert.Equal(t, date("2024-01-02"), weeks[2].Date)
}

func TestPricesRoundTrip(t *testing.T) {
	r := newTestRecorder(t)

	pts := []model.PricePoint{
		{Date: date("2024-01-03"), Price: 1.0950},
		{Date: date("2024-01-02"), Price: 1.1000},
	}
	require.NoError(t, r.SavePrices("EURUSD", pts))

	got, err := r.LoadPrices("EURUSD")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, date("2024-01-02"), got[0].Date)
	assert.Equal(t, 1.1, got[0].Price)

	none, err := r.LoadPrices("GBPUSD")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.SavePositions("EUR", model.PositionRecord{}))
	feed, err := r.LoadPositions([]string{"EUR"})
	assert.NoError(t, err)
	assert.Empty(t, feed)
	assert.NoError(t, r.Close())
}
