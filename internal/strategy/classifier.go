package strategy

import (
	"fmt"

	"COTSentinel/internal/model"
)

// Verdict is the classifier output for one pair of snapshots.
type Verdict struct {
	Direction  model.Direction   `json:"direction"`
	Type       model.SignalType  `json:"signal_type"`
	Conviction int               `json:"conviction"`
	Spread     int               `json:"spread"`
	BaseZone   model.Zone        `json:"base_zone"`
	QuoteZone  model.Zone        `json:"quote_zone"`
	Steps      []model.ScoreStep `json:"steps"`
}

// ConflictConviction is the fixed conviction of a CONFLICT signal.
const ConflictConviction = 2

// Classify turns a base and quote snapshot into a directional verdict.
// It is a pure function of its arguments.
func Classify(base, quote model.InstrumentSnapshot) Verdict {
	v := Verdict{
		Spread:    base.COTIndex - quote.COTIndex,
		BaseZone:  ZoneOf(base.COTIndex),
		QuoteZone: ZoneOf(quote.COTIndex),
	}

	if isConflict(v.BaseZone, v.QuoteZone) {
		return conflictVerdict(v)
	}

	bb, hasB := baseBias(v.BaseZone)
	qb, hasQ := quoteBias(v.QuoteZone)
	if hasB && hasQ && bb != qb {
		// distinct extreme zones always agree; kept so the switch below is total
		return conflictVerdict(v)
	}

	steps := make([]model.ScoreStep, 0, 5)
	var first model.ScoreStep
	v.Direction, v.Type, first = scoreBias(bb, hasB, qb, hasQ, v.Spread)
	steps = append(steps, first)
	steps = append(steps,
		scoreMomentum(v.Direction, base, quote),
		scoreUnwind("base_unwind", v.BaseZone, base),
		scoreUnwind("quote_unwind", v.QuoteZone, quote),
		scoreConfirmation(v.Direction, base, quote),
	)

	total := 0
	for _, s := range steps {
		total += s.Points
	}
	v.Conviction = clamp(total, 0, model.MaxConviction)
	v.Steps = steps
	return v
}

func conflictVerdict(v Verdict) Verdict {
	v.Type = model.Conflict
	v.Direction = model.Sell
	if v.Spread > 0 {
		v.Direction = model.Buy
	}
	v.Conviction = ConflictConviction
	v.Steps = []model.ScoreStep{{
		Name:       "conflict",
		Points:     ConflictConviction,
		Commentary: fmt.Sprintf("both legs %s", v.BaseZone),
	}}
	return v
}

// scoreBias picks direction and type from the contrarian biases, or from the
// spread when neither leg is extreme.
func scoreBias(bb model.Direction, hasB bool, qb model.Direction, hasQ bool, spread int) (model.Direction, model.SignalType, model.ScoreStep) {
	switch {
	case hasB && hasQ:
		return bb, model.Contrarian, model.ScoreStep{Name: "bias", Points: 5, Commentary: "both legs extreme"}
	case hasB:
		return bb, model.Contrarian, model.ScoreStep{Name: "bias", Points: 3, Commentary: "base extreme"}
	case hasQ:
		return qb, model.Contrarian, model.ScoreStep{Name: "bias", Points: 3, Commentary: "quote extreme"}
	}

	dir := model.Sell
	if spread >= 0 {
		dir = model.Buy
	}
	abs := spread
	if abs < 0 {
		abs = -abs
	}
	pts := 0
	switch {
	case abs >= 40:
		pts = 2
	case abs >= 20:
		pts = 1
	}
	return dir, model.Trend, model.ScoreStep{Name: "bias", Points: pts, Commentary: fmt.Sprintf("spread %+d", spread)}
}

// scoreMomentum adds a point for every leg whose positioning trend moves with dir.
func scoreMomentum(dir model.Direction, base, quote model.InstrumentSnapshot) model.ScoreStep {
	baseMoving := (dir == model.Buy && base.TrendUp) || (dir == model.Sell && !base.TrendUp)
	quoteMoving := (dir == model.Buy && !quote.TrendUp) || (dir == model.Sell && quote.TrendUp)
	pts := 0
	if baseMoving {
		pts++
	}
	if quoteMoving {
		pts++
	}
	return model.ScoreStep{Name: "momentum", Points: pts, Commentary: fmt.Sprintf("base=%t quote=%t", baseMoving, quoteMoving)}
}

// scoreUnwind adds a point when an extreme leg has started to unwind.
func scoreUnwind(name string, z model.Zone, s model.InstrumentSnapshot) model.ScoreStep {
	unwinding := false
	switch z {
	case model.ExtremeLong:
		unwinding = !s.TrendUp || s.WeekChange < 0
	case model.ExtremeShort:
		unwinding = s.TrendUp || s.WeekChange > 0
	}
	if !unwinding {
		return model.ScoreStep{Name: name, Points: 0, Commentary: string(z)}
	}
	return model.ScoreStep{Name: name, Points: 1, Commentary: fmt.Sprintf("%s unwinding", z)}
}

// scoreConfirmation adds a point when both weekly changes point the way of dir.
func scoreConfirmation(dir model.Direction, base, quote model.InstrumentSnapshot) model.ScoreStep {
	ok := false
	switch dir {
	case model.Buy:
		ok = base.WeekChange > 0 && quote.WeekChange < 0
	case model.Sell:
		ok = base.WeekChange < 0 && quote.WeekChange > 0
	}
	pts := 0
	if ok {
		pts = 1
	}
	return model.ScoreStep{
		Name:       "confirmation",
		Points:     pts,
		Commentary: fmt.Sprintf("Δbase=%+d Δquote=%+d", base.WeekChange, quote.WeekChange),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
