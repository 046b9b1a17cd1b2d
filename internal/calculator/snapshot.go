package calculator

import (
	"fmt"

	"COTSentinel/internal/model"
)

// Snapshot builds the point-in-time state of one instrument at chronological index i.
// Only nets[0..i] are consulted.
func Snapshot(nets []int64, i int) (model.InstrumentSnapshot, error) {
	idx, err := RollingIndex(nets, i)
	if err != nil {
		return model.InstrumentSnapshot{}, fmt.Errorf("rolling index: %w", err)
	}
	up, err := TrendUp(nets, i)
	if err != nil {
		return model.InstrumentSnapshot{}, fmt.Errorf("trend: %w", err)
	}
	week, prev, err := WeekChanges(nets, i)
	if err != nil {
		return model.InstrumentSnapshot{}, fmt.Errorf("week change: %w", err)
	}
	return model.InstrumentSnapshot{
		COTIndex:       idx,
		TrendUp:        up,
		WeekChange:     week,
		PrevWeekChange: prev,
	}, nil
}

// Nets extracts net non-commercial positions from a chronological series.
func Nets(weeks []model.WeeklyPosition) []int64 {
	nets := make([]int64, len(weeks))
	for i, w := range weeks {
		nets[i] = w.NetNonComm
	}
	return nets
}
