package strategy

import (
	"errors"
	"fmt"
	"time"

	"COTSentinel/internal/model"
)

// ErrDataUnavailable is matched by every DataAvailabilityError.
var ErrDataUnavailable = errors.New("positioning data unavailable")

// DataAvailabilityError reports a missing instrument or too little aligned history.
type DataAvailabilityError struct {
	Pair       string
	Instrument string
	Weeks      int
	From, To   time.Time
	Reason     string
}

func (e *DataAvailabilityError) Error() string {
	msg := fmt.Sprintf("pair %s: %s", e.Pair, e.Reason)
	if e.Instrument != "" {
		msg += fmt.Sprintf(" (instrument %s)", e.Instrument)
	}
	if e.Weeks > 0 {
		msg += fmt.Sprintf(" (%d weeks %s..%s)", e.Weeks, e.From.Format(model.DateLayout), e.To.Format(model.DateLayout))
	}
	return msg
}

func (e *DataAvailabilityError) Unwrap() error { return ErrDataUnavailable }
