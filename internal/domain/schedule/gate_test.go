package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// memMarkerStore is an in-memory MarkerStore for gate tests.
type memMarkerStore struct {
	day    time.Time
	hasDay bool
	err    error
}

func (m *memMarkerStore) LastSent() (time.Time, error) {
	if m.err != nil {
		return time.Time{}, m.err
	}
	if !m.hasDay {
		return time.Time{}, ErrMarkerNotFound
	}
	return m.day, nil
}

func (m *memMarkerStore) RecordSent(day time.Time) error {
	m.day, m.hasDay = day, true
	return nil
}

func newTestGate(t *testing.T, markers MarkerStore, now time.Time) *Gate {
	t.Helper()
	window, err := ParseTimeWindow("20:00", "23:30")
	require.NoError(t, err)
	g := NewGate(window, markers, ist)
	g.Now = func() time.Time { return now }
	return g
}

func TestParseTimeWindow(t *testing.T) {
	w, err := ParseTimeWindow("20:00", "23:30")
	require.NoError(t, err)
	assert.Equal(t, 20*60, w.StartMinute)
	assert.Equal(t, 23*60+30, w.EndMinute)

	_, err = ParseTimeWindow("25:00", "23:30")
	assert.Error(t, err)
	_, err = ParseTimeWindow("21:00", "20:00")
	assert.Error(t, err)
}

func TestGate_OutsideWindow(t *testing.T) {
	now := time.Date(2026, time.March, 10, 19, 59, 0, 0, ist)
	g := newTestGate(t, &memMarkerStore{}, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, StateOutsideWindow, state)
}

func TestGate_ReadyInsideWindowWithNoMarker(t *testing.T) {
	now := time.Date(2026, time.March, 10, 20, 5, 0, 0, ist)
	g := newTestGate(t, &memMarkerStore{}, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
}

func TestGate_AlreadySentToday(t *testing.T) {
	now := time.Date(2026, time.March, 10, 20, 15, 0, 0, ist)
	markers := &memMarkerStore{
		day:    time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		hasDay: true,
	}
	g := newTestGate(t, markers, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySentToday, state)
}

func TestGate_MarkerFromYesterdayPermits(t *testing.T) {
	now := time.Date(2026, time.March, 10, 21, 0, 0, 0, ist)
	markers := &memMarkerStore{
		day:    time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
		hasDay: true,
	}
	g := newTestGate(t, markers, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
}

func TestGate_NeverSentTwiceSameDay(t *testing.T) {
	markers := &memMarkerStore{}
	now := time.Date(2026, time.March, 10, 20, 5, 0, 0, ist)
	g := newTestGate(t, markers, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	require.Equal(t, StateReady, state)

	require.NoError(t, g.MarkSent())
	assert.Equal(t, StateSent, g.State())

	// Any number of later ticks that day stay ALREADY_SENT_TODAY.
	for _, min := range []int{15, 45, 200} {
		g.Now = func() time.Time {
			return time.Date(2026, time.March, 10, 20, min%60+20, 0, 0, ist)
		}
		state, err = g.Evaluate()
		require.NoError(t, err)
		assert.Equal(t, StateAlreadySentToday, state)
	}
}

func TestGate_ResetsAtLocalMidnight(t *testing.T) {
	markers := &memMarkerStore{
		day:    time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		hasDay: true,
	}
	// Next evening, same marker: date comparison changes, gate is ready again.
	now := time.Date(2026, time.March, 11, 20, 5, 0, 0, ist)
	g := newTestGate(t, markers, now)

	state, err := g.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
}

func TestGate_PermitsDateStrictlyAfterTodayOnly(t *testing.T) {
	now := time.Date(2026, time.March, 10, 20, 5, 0, 0, ist)
	g := newTestGate(t, &memMarkerStore{}, now)

	today := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	assert.False(t, g.PermitsDate(today), "same-day list must not trigger a send")
	assert.False(t, g.PermitsDate(today.AddDate(0, 0, -1)), "stale list must not trigger a send")
	assert.True(t, g.PermitsDate(today.AddDate(0, 0, 1)))
}

func TestGate_SentToday(t *testing.T) {
	// Morning, well outside the window: SentToday still sees today's marker.
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, ist)
	markers := &memMarkerStore{
		day:    time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		hasDay: true,
	}
	g := newTestGate(t, markers, now)

	sent, err := g.SentToday()
	require.NoError(t, err)
	assert.True(t, sent)

	markers.day = time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	sent, err = g.SentToday()
	require.NoError(t, err)
	assert.False(t, sent)

	g = newTestGate(t, &memMarkerStore{}, now)
	sent, err = g.SentToday()
	require.NoError(t, err)
	assert.False(t, sent, "a missing marker means never sent")
}

func TestGate_MarkerReadFailurePropagates(t *testing.T) {
	now := time.Date(2026, time.March, 10, 21, 0, 0, 0, ist)
	g := newTestGate(t, &memMarkerStore{err: errors.New("disk gone")}, now)

	_, err := g.Evaluate()
	assert.Error(t, err)
}
