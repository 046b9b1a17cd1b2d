package backtest

import (
	"math"

	"COTSentinel/internal/model"
)

// Filter selects which matched signals count toward statistics.
type Filter struct {
	MinConviction    int  `json:"min_conviction"`
	ExcludeConflicts bool `json:"exclude_conflicts"`
}

// Keep reports whether s passes the filter.
func (f Filter) Keep(s model.Signal) bool {
	if s.Conviction < f.MinConviction {
		return false
	}
	if f.ExcludeConflicts && s.Type == model.Conflict {
		return false
	}
	return true
}

// Apply returns the matched signals that pass f, preserving order.
func Apply(matched []model.MatchedSignal, f Filter) []model.MatchedSignal {
	out := make([]model.MatchedSignal, 0, len(matched))
	for _, m := range matched {
		if f.Keep(m.Signal) {
			out = append(out, m)
		}
	}
	return out
}

// Summarize filters matched signals and rolls them up into statistics and an equity curve.
// matched is expected in chronological order.
func Summarize(matched []model.MatchedSignal, f Filter) model.Summary {
	kept := Apply(matched, f)
	sum := model.Summary{
		MinConviction:    f.MinConviction,
		ExcludeConflicts: f.ExcludeConflicts,
		Total:            len(kept),
		ByType: map[model.SignalType]model.TypeStats{
			model.Contrarian: {},
			model.Trend:      {},
		},
		Equity: make([]model.EquityPoint, 0, len(kept)),
	}
	if !f.ExcludeConflicts {
		sum.ByType[model.Conflict] = model.TypeStats{}
	}

	var winPct, lossPct, equity float64
	for _, m := range kept {
		ts := sum.ByType[m.Type]
		ts.Total++
		mag := math.Abs(m.PctChange)
		switch m.Result {
		case model.Win:
			sum.Wins++
			ts.Wins++
			winPct += mag
			equity += mag
		case model.Loss:
			sum.Losses++
			ts.Losses++
			lossPct += mag
			equity -= mag
		default:
			sum.Flats++
			ts.Flats++
		}
		sum.ByType[m.Type] = ts
		sum.Equity = append(sum.Equity, model.EquityPoint{Date: m.Date, CumulativePct: equity})
	}

	sum.Decided = sum.Wins + sum.Losses
	if sum.Decided > 0 {
		sum.WinRate = float64(sum.Wins) / float64(sum.Decided)
	}
	if sum.Wins > 0 {
		sum.AvgWinPct = winPct / float64(sum.Wins)
	}
	if sum.Losses > 0 {
		sum.AvgLossPct = lossPct / float64(sum.Losses)
	}
	return sum
}
