package model

import "time"

// Outcome is the classification of a matched signal.
type Outcome string

const (
	Win  Outcome = "WIN"
	Loss Outcome = "LOSS"
	Flat Outcome = "FLAT"
)

// MatchedSignal is a signal aligned with entry and exit prices.
type MatchedSignal struct {
	Signal
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PctChange  float64   `json:"pct_change"`
	Result     Outcome   `json:"result"`
}

// TypeStats breaks results down by signal type.
type TypeStats struct {
	Total  int `json:"total"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Flats  int `json:"flats"`
}

// EquityPoint is one step of the cumulative percentage equity curve.
type EquityPoint struct {
	Date          time.Time `json:"date"`
	CumulativePct float64   `json:"cumulative_pct"`
}

// Summary aggregates the filtered matched signals of one backtest.
type Summary struct {
	MinConviction    int                      `json:"min_conviction"`
	ExcludeConflicts bool                     `json:"exclude_conflicts"`
	Total            int                      `json:"total"`
	Wins             int                      `json:"wins"`
	Losses           int                      `json:"losses"`
	Flats            int                      `json:"flats"`
	Decided          int                      `json:"decided"`
	WinRate          float64                  `json:"win_rate"` // wins / decided, 0 when nothing decided
	ByType           map[SignalType]TypeStats `json:"by_type"`
	AvgWinPct        float64                  `json:"avg_win_pct"`
	AvgLossPct       float64                  `json:"avg_loss_pct"`
	Equity           []EquityPoint            `json:"equity"`
}

// RunResult is everything one backtest invocation produces for a pair.
type RunResult struct {
	RunID   string          `json:"run_id"`
	Pair    string          `json:"pair"`
	Signals []Signal        `json:"signals"`
	Matched []MatchedSignal `json:"matched"`
	Dropped int             `json:"dropped"`
	Summary Summary         `json:"summary"`
}
