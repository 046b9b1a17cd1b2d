package strategy

import (
	"fmt"

	"COTSentinel/internal/calculator"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
)

// MinAlignedWeeks is the shortest aligned history that yields a signal.
const MinAlignedWeeks = 3

// firstEvalIndex is the earliest chronological index with two prior weeks.
const firstEvalIndex = 2

// BuildSignals evaluates every aligned week of a pair and returns one signal per week,
// oldest first. base and quote are newest-first, as delivered by the positioning feed.
func BuildSignals(pair string, base, quote []model.WeeklyPosition) ([]model.Signal, error) {
	n := len(base)
	if len(quote) < n {
		n = len(quote)
	}
	if n < MinAlignedWeeks {
		e := &DataAvailabilityError{Pair: pair, Weeks: n, Reason: fmt.Sprintf("need at least %d aligned weeks", MinAlignedWeeks)}
		if n > 0 {
			e.From, e.To = base[n-1].Date, base[0].Date
		}
		return nil, e
	}

	b := chronological(base[:n])
	q := chronological(quote[:n])
	bNets := calculator.Nets(b)
	qNets := calculator.Nets(q)

	signals := make([]model.Signal, 0, n-firstEvalIndex)
	for i := firstEvalIndex; i < n; i++ {
		bs, err := calculator.Snapshot(bNets, i)
		if err != nil {
			return nil, fmt.Errorf("base snapshot at %s: %w", b[i].Date.Format(model.DateLayout), err)
		}
		qs, err := calculator.Snapshot(qNets, i)
		if err != nil {
			return nil, fmt.Errorf("quote snapshot at %s: %w", q[i].Date.Format(model.DateLayout), err)
		}
		v := Classify(bs, qs)
		signals = append(signals, model.Signal{
			Date:       b[i].Date,
			Direction:  v.Direction,
			Conviction: v.Conviction,
			Type:       v.Type,
			BaseIndex:  bs.COTIndex,
			QuoteIndex: qs.COTIndex,
			BaseNet:    bNets[i],
			QuoteNet:   qNets[i],
			Spread:     v.Spread,
		})
	}
	return signals, nil
}

// BuildFromFeed resolves the pair's two instruments in feed and builds its signals.
func BuildFromFeed(p pairs.Pair, feed model.PositionFeed) ([]model.Signal, error) {
	base, quote, err := resolve(p, feed)
	if err != nil {
		return nil, err
	}
	return BuildSignals(p.Name, base, quote)
}

// ExplainFromFeed resolves the pair's two instruments in feed and explains its latest week.
func ExplainFromFeed(p pairs.Pair, feed model.PositionFeed) (Verdict, model.InstrumentSnapshot, model.InstrumentSnapshot, error) {
	base, quote, err := resolve(p, feed)
	if err != nil {
		return Verdict{}, model.InstrumentSnapshot{}, model.InstrumentSnapshot{}, err
	}
	return Explain(p.Name, base, quote)
}

func resolve(p pairs.Pair, feed model.PositionFeed) (base, quote []model.WeeklyPosition, err error) {
	for _, code := range []string{p.Base, p.Quote} {
		if rec, ok := feed[code]; !ok || len(rec.Weeks) == 0 {
			return nil, nil, &DataAvailabilityError{Pair: p.Name, Instrument: code, Reason: "instrument missing from positioning feed"}
		}
	}
	return feed[p.Base].Weeks, feed[p.Quote].Weeks, nil
}

// Explain returns the classifier verdict, with its score steps, for the latest aligned week.
func Explain(pair string, base, quote []model.WeeklyPosition) (Verdict, model.InstrumentSnapshot, model.InstrumentSnapshot, error) {
	n := len(base)
	if len(quote) < n {
		n = len(quote)
	}
	if n < MinAlignedWeeks {
		return Verdict{}, model.InstrumentSnapshot{}, model.InstrumentSnapshot{},
			&DataAvailabilityError{Pair: pair, Weeks: n, Reason: fmt.Sprintf("need at least %d aligned weeks", MinAlignedWeeks)}
	}
	bNets := calculator.Nets(chronological(base[:n]))
	qNets := calculator.Nets(chronological(quote[:n]))
	bs, err := calculator.Snapshot(bNets, n-1)
	if err != nil {
		return Verdict{}, bs, model.InstrumentSnapshot{}, err
	}
	qs, err := calculator.Snapshot(qNets, n-1)
	if err != nil {
		return Verdict{}, bs, qs, err
	}
	return Classify(bs, qs), bs, qs, nil
}

// chronological returns a reversed copy of a newest-first series.
func chronological(weeks []model.WeeklyPosition) []model.WeeklyPosition {
	out := make([]model.WeeklyPosition, len(weeks))
	for i, w := range weeks {
		out[len(weeks)-1-i] = w
	}
	return out
}
