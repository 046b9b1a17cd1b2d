package model

import "time"

// Direction is the side a signal recommends for the pair.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// SignalType tells which rule family produced the signal.
type SignalType string

const (
	Contrarian SignalType = "CONTRARIAN"
	Trend      SignalType = "TREND"
	Conflict   SignalType = "CONFLICT"
)

// Zone classifies a COT index reading.
type Zone string

const (
	ExtremeLong  Zone = "EXTREME_LONG"
	ExtremeShort Zone = "EXTREME_SHORT"
	Neutral      Zone = "NEUTRAL"
)

// MaxConviction is the upper bound of the conviction scale.
const MaxConviction = 9

// Signal is the output of the classifier for one evaluated week of a pair.
type Signal struct {
	Date       time.Time  `json:"date"`
	Direction  Direction  `json:"direction"`
	Conviction int        `json:"conviction"`
	Type       SignalType `json:"signal_type"`
	BaseIndex  int        `json:"b_idx"`
	QuoteIndex int        `json:"q_idx"`
	BaseNet    int64      `json:"b_net"`
	QuoteNet   int64      `json:"q_net"`
	Spread     int        `json:"spread"`
}

// ScoreStep records the points one classifier rule contributed.
type ScoreStep struct {
	Name       string `json:"name"`
	Points     int    `json:"points"`
	Commentary string `json:"commentary"`
}
