package strategy

import "COTSentinel/internal/model"

// Zone thresholds on the COT index.
const (
	ExtremeLongAt  = 75
	ExtremeShortAt = 25
)

// ZoneOf classifies a COT index reading.
func ZoneOf(index int) model.Zone {
	switch {
	case index >= ExtremeLongAt:
		return model.ExtremeLong
	case index <= ExtremeShortAt:
		return model.ExtremeShort
	default:
		return model.Neutral
	}
}

// isConflict reports whether both legs sit in the same extreme zone.
func isConflict(base, quote model.Zone) bool {
	return base != model.Neutral && base == quote
}

// baseBias is the contrarian direction implied by the numerator currency.
func baseBias(z model.Zone) (model.Direction, bool) {
	switch z {
	case model.ExtremeLong:
		return model.Sell, true
	case model.ExtremeShort:
		return model.Buy, true
	}
	return "", false
}

// quoteBias is the contrarian direction implied by the denominator currency.
func quoteBias(z model.Zone) (model.Direction, bool) {
	switch z {
	case model.ExtremeLong:
		return model.Buy, true
	case model.ExtremeShort:
		return model.Sell, true
	}
	return "", false
}
