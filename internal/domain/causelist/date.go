// internal/domain/causelist/date.go
package causelist

import "time"

// AcceptedFormats are the date layouts a cause-list page is known to use,
// in priority order. Padded numeric forms come first, then unpadded, then
// the spelled-out month variants.
var AcceptedFormats = []string{
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"02 January 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// DateOnly strips the time component, returning t's calendar date as a UTC
// midnight. All date comparisons in the watcher go through this so that a
// date parsed in UTC and a clock reading in IST compare by calendar day only.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// Window is the plausibility window for extracted dates: how many days into
// the past and the future of "now" a candidate may lie and still be trusted
// as a genuine cause-list date rather than extraction noise.
type Window struct {
	PastDays   int
	FutureDays int
}

// DefaultWindow is -60..+30 days.
var DefaultWindow = Window{PastDays: 60, FutureDays: 30}

// Contains reports whether candidate lies within the window around now,
// comparing calendar dates.
func (w Window) Contains(now, candidate time.Time) bool {
	today := DateOnly(now)
	day := DateOnly(candidate)
	earliest := today.AddDate(0, 0, -w.PastDays)
	latest := today.AddDate(0, 0, w.FutureDays)
	return !day.Before(earliest) && !day.After(latest)
}

// ParseToken tries the accepted formats against a raw date token. It returns
// the parsed date and the layout that matched. A layout only matches when
// re-formatting the parsed date reproduces the token exactly, so that e.g.
// "5-8-2026" is attributed to "2-1-2006" rather than the lenient padded form.
func ParseToken(token string) (time.Time, string, bool) {
	for _, layout := range AcceptedFormats {
		t, err := time.Parse(layout, token)
		if err != nil {
			continue
		}
		if t.Format(layout) != token {
			continue
		}
		return t, layout, true
	}
	return time.Time{}, "", false
}
