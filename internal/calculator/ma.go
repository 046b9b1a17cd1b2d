package calculator

import (
	"errors"
	"fmt"
)

// Moving-average periods used by the trend detector.
const (
	FastPeriod = 4
	SlowPeriod = 13
)

// TrailingMean averages up to period observations ending at index i inclusive.
// When fewer than period observations exist it averages everything available.
func TrailingMean(values []int64, i, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if i < 0 || i >= len(values) {
		return 0, fmt.Errorf("index %d out of range [0,%d)", i, len(values))
	}
	start := i - period + 1
	if start < 0 {
		start = 0
	}
	var sum int64
	for k := start; k <= i; k++ {
		sum += values[k]
	}
	return float64(sum) / float64(i-start+1), nil
}

// TrendUp reports whether the fast trailing mean is above the slow one at index i.
func TrendUp(values []int64, i int) (bool, error) {
	fast, err := TrailingMean(values, i, FastPeriod)
	if err != nil {
		return false, fmt.Errorf("fast mean: %w", err)
	}
	slow, err := TrailingMean(values, i, SlowPeriod)
	if err != nil {
		return false, fmt.Errorf("slow mean: %w", err)
	}
	return fast > slow, nil
}
