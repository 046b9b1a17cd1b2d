package calculator

import "fmt"

// lookup returns values[k] when k is a valid index. For k < 0 it falls back to the
// nearest existing observation toward anchor, so missing history reads as "unchanged".
// It never reads beyond anchor.
func lookup(values []int64, k, anchor int) int64 {
	if k > anchor {
		k = anchor
	}
	if k < 0 {
		k = 0
	}
	return values[k]
}

// WeekChanges returns the change into week i and the change into week i-1.
func WeekChanges(values []int64, i int) (week, prev int64, err error) {
	if i < 0 || i >= len(values) {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, len(values))
	}
	cur := values[i]
	p1 := lookup(values, i-1, i)
	p2 := lookup(values, i-2, i)
	return cur - p1, p1 - p2, nil
}
