package calculator

import (
	"fmt"
	"math"
)

// IndexWindow is the number of weekly observations in the rolling index window.
const IndexWindow = 52

// NeutralIndex is returned when the window has no range.
const NeutralIndex = 50

// TrailingRange returns the high and low of up to window observations ending at i inclusive.
// Observations after i are never read.
func TrailingRange(values []int64, i, window int) (high, low int64, err error) {
	if window <= 0 {
		return 0, 0, fmt.Errorf("window must be positive")
	}
	if i < 0 || i >= len(values) {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, len(values))
	}
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	high, low = values[start], values[start]
	for k := start + 1; k <= i; k++ {
		if values[k] > high {
			high = values[k]
		}
		if values[k] < low {
			low = values[k]
		}
	}
	return high, low, nil
}

// COTIndex places current inside [low, high] on a 0-100 scale, rounded to the nearest integer.
// A flat range carries no information and maps to NeutralIndex.
func COTIndex(current, high, low int64) int {
	if high == low {
		return NeutralIndex
	}
	pos := float64(current-low) / float64(high-low) * 100
	idx := int(math.Round(pos))
	if idx < 0 {
		idx = 0
	}
	if idx > 100 {
		idx = 100
	}
	return idx
}

// RollingIndex computes the COT index of values[i] over its trailing IndexWindow.
func RollingIndex(values []int64, i int) (int, error) {
	high, low, err := TrailingRange(values, i, IndexWindow)
	if err != nil {
		return 0, err
	}
	return COTIndex(values[i], high, low), nil
}
