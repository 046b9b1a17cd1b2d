package model

import "time"

// WeeklyPosition is one instrument's futures positioning for one reporting week.
type WeeklyPosition struct {
	Date         time.Time `json:"date"`
	NetNonComm   int64     `json:"net_noncomm"`
	NonCommLong  int64     `json:"noncomm_long"`
	NonCommShort int64     `json:"noncomm_short"`
	CommLong     int64     `json:"comm_long"`
	CommShort    int64     `json:"comm_short"`
	NonReptLong  int64     `json:"nonrept_long"`
	NonReptShort int64     `json:"nonrept_short"`
	NetComm      int64     `json:"net_comm"`
}

// PositionRecord is the feed entry for one instrument. Weeks are newest-first.
type PositionRecord struct {
	Code   string           `json:"code"`
	Market string           `json:"market"`
	Weeks  []WeeklyPosition `json:"weeks"`
}

// PositionFeed maps a currency code (EUR, USD, ...) to its record.
type PositionFeed map[string]PositionRecord

// InstrumentSnapshot is the point-in-time state of one instrument at one evaluation week.
type InstrumentSnapshot struct {
	COTIndex       int   `json:"cot_index"`
	TrendUp        bool  `json:"trend_up"`
	WeekChange     int64 `json:"week_change"`
	PrevWeekChange int64 `json:"prev_week_change"`
}
