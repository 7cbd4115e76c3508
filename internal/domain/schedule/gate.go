// internal/domain/schedule/gate.go
package schedule

import (
	"errors"
	"fmt"
	"time"

	"causelist_notification_bot/internal/domain/causelist"
)

// ErrMarkerNotFound is returned by a MarkerStore when no send has ever been
// recorded.
var ErrMarkerNotFound = errors.New("sent marker not found")

// MarkerStore persists the calendar date on which the last successful send
// completed. The store is read once per tick and overwritten atomically after
// a successful dispatch: a reader sees either the prior date or the new one,
// never partial content.
type MarkerStore interface {
	LastSent() (time.Time, error)
	RecordSent(day time.Time) error
}

// State is the daily gate's position for the current tick.
type State int

const (
	StateIdle State = iota
	StateOutsideWindow
	StateAlreadySentToday
	StateReady
	StateSent
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOutsideWindow:
		return "OUTSIDE_WINDOW"
	case StateAlreadySentToday:
		return "ALREADY_SENT_TODAY"
	case StateReady:
		return "READY"
	case StateSent:
		return "SENT"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Gate decides whether a send attempt is permitted right now. Exactly one
// successful send per calendar day: once MarkSent records today's date, every
// later evaluation that day yields AlreadySentToday, and the gate resets
// implicitly at local midnight because the date comparison changes.
type Gate struct {
	window  TimeWindow
	markers MarkerStore
	loc     *time.Location
	state   State

	// Now is the gate's clock, overridable in tests.
	Now func() time.Time
}

func NewGate(window TimeWindow, markers MarkerStore, loc *time.Location) *Gate {
	return &Gate{
		window:  window,
		markers: markers,
		loc:     loc,
		state:   StateIdle,
		Now:     time.Now,
	}
}

// Evaluate reads the clock and the persisted marker once and returns the
// gate's state for this tick. Outside-window and already-sent are normal
// outcomes; an error is only returned when the marker cannot be read at all.
func (g *Gate) Evaluate() (State, error) {
	now := g.Now().In(g.loc)

	if !g.window.Contains(now) {
		g.state = StateOutsideWindow
		return g.state, nil
	}

	last, err := g.markers.LastSent()
	switch {
	case errors.Is(err, ErrMarkerNotFound):
		// never sent before
	case err != nil:
		return g.state, fmt.Errorf("read sent marker: %w", err)
	case causelist.SameDay(last, now):
		g.state = StateAlreadySentToday
		return g.state, nil
	}

	g.state = StateReady
	return g.state, nil
}

// SentToday reports whether a successful send was already recorded for the
// current calendar day, independent of the time window. Single-shot runs use
// this so that bypassing the window does not bypass the once-per-day rule.
func (g *Gate) SentToday() (bool, error) {
	last, err := g.markers.LastSent()
	if errors.Is(err, ErrMarkerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sent marker: %w", err)
	}
	return causelist.SameDay(last, g.Now().In(g.loc)), nil
}

// PermitsDate applies the tie-break rule: the extracted list date must be
// strictly after today, otherwise the capture is a stale or same-day list and
// must not be delivered.
func (g *Gate) PermitsDate(listDate time.Time) bool {
	today := causelist.DateOnly(g.Now().In(g.loc))
	return causelist.DateOnly(listDate).After(today)
}

// MarkSent records today's date, transitioning Ready to Sent. Callers invoke
// it only after the dispatcher reported at least one success.
func (g *Gate) MarkSent() error {
	now := g.Now().In(g.loc)
	if err := g.markers.RecordSent(causelist.DateOnly(now)); err != nil {
		return fmt.Errorf("record sent marker: %w", err)
	}
	g.state = StateSent
	return nil
}

// State returns the gate's position as of the last Evaluate or MarkSent.
func (g *Gate) State() State { return g.state }
