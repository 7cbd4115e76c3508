// internal/domain/schedule/window.go
package schedule

import (
	"fmt"
	"time"
)

// TimeWindow is a daily wall-clock window, inclusive of both bounds,
// expressed in minutes since local midnight.
type TimeWindow struct {
	StartMinute int
	EndMinute   int
}

// ParseTimeWindow builds a window from "HH:MM" bounds, e.g. ("20:00","23:30").
func ParseTimeWindow(start, end string) (TimeWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("window end: %w", err)
	}
	if e < s {
		return TimeWindow{}, fmt.Errorf("window end %s precedes start %s", end, start)
	}
	return TimeWindow{StartMinute: s, EndMinute: e}, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t's wall-clock time falls inside the window.
// The caller is responsible for converting t into the gate's time zone.
func (w TimeWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.StartMinute && m <= w.EndMinute
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		w.StartMinute/60, w.StartMinute%60, w.EndMinute/60, w.EndMinute%60)
}
