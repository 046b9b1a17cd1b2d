package backtest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"COTSentinel/internal/model"
)

// HoldDays is the calendar distance between a signal and its exit lookup.
const HoldDays = 9

// pctPlaces is the rounding precision of PctChange.
const pctPlaces = 3

// Match aligns every signal with the first price on or after its date (entry) and the
// first price on or after date+HoldDays (exit). Signals without both prices are dropped
// and counted. prices should be ascending by date; unsorted input is sorted on a copy.
func Match(signals []model.Signal, prices []model.PricePoint) (matched []model.MatchedSignal, dropped int) {
	if !sort.SliceIsSorted(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) }) {
		sorted := make([]model.PricePoint, len(prices))
		copy(sorted, prices)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		prices = sorted
	}

	matched = make([]model.MatchedSignal, 0, len(signals))
	for _, s := range signals {
		entry, ok := firstOnOrAfter(prices, s.Date)
		if !ok {
			dropped++
			continue
		}
		exit, ok := firstOnOrAfter(prices, s.Date.AddDate(0, 0, HoldDays))
		if !ok {
			dropped++
			continue
		}
		matched = append(matched, model.MatchedSignal{
			Signal:     s,
			EntryDate:  entry.Date,
			ExitDate:   exit.Date,
			EntryPrice: entry.Price,
			ExitPrice:  exit.Price,
			PctChange:  PctChange(entry.Price, exit.Price),
			Result:     Classify(s.Direction, entry.Price, exit.Price),
		})
	}
	return matched, dropped
}

// PctChange is the percentage move from entry to exit, rounded to three decimals.
func PctChange(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	return decimal.NewFromFloat((exit - entry) / entry * 100).Round(pctPlaces).InexactFloat64()
}

// Classify decides the outcome of a trade in direction dir from the raw prices.
func Classify(dir model.Direction, entry, exit float64) model.Outcome {
	switch {
	case exit == entry:
		return model.Flat
	case (exit > entry) == (dir == model.Buy):
		return model.Win
	default:
		return model.Loss
	}
}

func firstOnOrAfter(prices []model.PricePoint, d time.Time) (model.PricePoint, bool) {
	i := sort.Search(len(prices), func(i int) bool { return !prices[i].Date.Before(d) })
	if i == len(prices) {
		return model.PricePoint{}, false
	}
	return prices[i], true
}
