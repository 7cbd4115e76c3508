package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	ticks   int
	lastCtx context.Context
	err     error
	panics  bool
}

func (r *scriptedRunner) Tick(ctx context.Context) error {
	r.ticks++
	r.lastCtx = ctx
	if r.panics {
		panic("tick blew up")
	}
	return r.err
}

func newTestScheduler(r CycleRunner, interval time.Duration) *WatcherScheduler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewWatcherScheduler(r, interval, time.UTC, log.WithField("component", "test"))
}

func TestGuardedTick_RecoversFromPanic(t *testing.T) {
	runner := &scriptedRunner{panics: true}
	s := newTestScheduler(runner, time.Minute)

	assert.NotPanics(t, func() { s.guardedTick() })
	assert.Equal(t, 1, runner.ticks)

	// The guard is per cycle: the next tick still runs.
	assert.NotPanics(t, func() { s.guardedTick() })
	assert.Equal(t, 2, runner.ticks)
}

func TestGuardedTick_SwallowsCycleError(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("court site unreachable")}
	s := newTestScheduler(runner, time.Minute)

	assert.NotPanics(t, func() { s.guardedTick() })
	assert.Equal(t, 1, runner.ticks)
}

func TestGuardedTick_BoundsCycleDuration(t *testing.T) {
	runner := &scriptedRunner{}
	s := newTestScheduler(runner, 10*time.Minute)

	s.guardedTick()

	require.NotNil(t, runner.lastCtx)
	deadline, ok := runner.lastCtx.Deadline()
	require.True(t, ok, "a cycle runs under a deadline")
	remaining := time.Until(deadline)
	assert.Greater(t, remaining, 19*time.Minute)
	assert.LessOrEqual(t, remaining, 20*time.Minute)
}

func TestStartAndStop(t *testing.T) {
	runner := &scriptedRunner{}
	s := newTestScheduler(runner, time.Hour)

	require.NoError(t, s.Start())
	s.Stop()
}
