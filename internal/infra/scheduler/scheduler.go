package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CycleRunner is what the scheduler drives each tick; implemented by
// app.WatcherService.
type CycleRunner interface {
	Tick(ctx context.Context) error
}

// WatcherScheduler wakes on a fixed interval and runs one gated watch cycle.
// Every tick is wrapped in a guard that converts panics and errors into a
// logged "try again next tick" instead of crashing the process; this guard
// is the single place a cycle may fail loudly.
type WatcherScheduler struct {
	cronEngine *cron.Cron
	runner     CycleRunner
	interval   time.Duration
	log        *logrus.Entry
}

func NewWatcherScheduler(runner CycleRunner, interval time.Duration, loc *time.Location, log *logrus.Entry) *WatcherScheduler {
	return &WatcherScheduler{
		// A cycle that outlives the interval (a pairing flow can) must not
		// overlap the next tick: the orchestration core is single-threaded.
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

func (s *WatcherScheduler) Start() error {
	spec := "@every " + s.interval.String()
	if _, err := s.cronEngine.AddFunc(spec, s.guardedTick); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.log.Infof("Scheduler started, ticking every %s.", s.interval)
	return nil
}

func (s *WatcherScheduler) guardedTick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Cycle panicked: %v. Will try again next tick.", r)
		}
	}()

	// A cycle gets at most two intervals before its context gives up; the
	// pairing sub-flow is the only step that can plausibly take that long.
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.interval)
	defer cancel()

	if err := s.runner.Tick(ctx); err != nil {
		s.log.WithError(err).Error("Cycle failed. Will try again next tick.")
	}
}

// Stop halts the cron engine and waits for a running cycle to finish.
func (s *WatcherScheduler) Stop() {
	s.log.Info("Stopping scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped.")
}
