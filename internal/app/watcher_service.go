// internal/app/watcher_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"causelist_notification_bot/internal/domain/delivery"
	"causelist_notification_bot/internal/domain/schedule"
	"causelist_notification_bot/internal/domain/snapshot"

	"github.com/sirupsen/logrus"
)

// captionDateLayout formats the extracted list date into the caption.
const captionDateLayout = "02-01-2006"

// WatcherService runs one poll cycle: consult the daily gate, capture a
// snapshot of the target page, check the extracted date is genuinely a
// future list, fan the image out to the recipients and persist the sent
// marker. It owns no state beyond its collaborators; everything it touches
// runs on the scheduler's single logical thread.
type WatcherService struct {
	gate       *schedule.Gate
	provider   snapshot.Provider
	dispatcher *delivery.Dispatcher
	channel    delivery.Channel

	targetURL    string
	profile      snapshot.QualityProfile
	recipients   []string
	captionTitle string

	log *logrus.Entry
}

func NewWatcherService(
	gate *schedule.Gate,
	provider snapshot.Provider,
	dispatcher *delivery.Dispatcher,
	channel delivery.Channel,
	targetURL string,
	profile snapshot.QualityProfile,
	recipients []string,
	captionTitle string,
	log *logrus.Entry,
) *WatcherService {
	return &WatcherService{
		gate:         gate,
		provider:     provider,
		dispatcher:   dispatcher,
		channel:      channel,
		targetURL:    targetURL,
		profile:      profile,
		recipients:   recipients,
		captionTitle: captionTitle,
		log:          log,
	}
}

// Tick is the scheduler entry point: evaluate the gate, and only run a cycle
// when it permits. Outside-window and already-sent are normal outcomes,
// logged below error level.
func (s *WatcherService) Tick(ctx context.Context) error {
	state, err := s.gate.Evaluate()
	if err != nil {
		return fmt.Errorf("evaluate daily gate: %w", err)
	}

	if state != schedule.StateReady {
		s.log.Debugf("Gate state %s; no cycle this tick.", state)
		return nil
	}
	return s.RunCycle(ctx)
}

// RunOnce runs exactly one cycle regardless of the time window, for manual
// invocation. The strictly-future date rule and the sent marker still apply.
func (s *WatcherService) RunOnce(ctx context.Context) error {
	sent, err := s.gate.SentToday()
	if err != nil {
		return fmt.Errorf("evaluate daily gate: %w", err)
	}
	if sent {
		s.log.Info("Already sent today; nothing to do.")
		return nil
	}
	s.log.Info("Single-shot mode: running one cycle, ignoring the time window.")
	return s.RunCycle(ctx)
}

// RunCycle performs one capture-and-deliver pass.
//
// 1. Capture the page; a page with no plausible date means the list is not
// published yet and the cycle ends quietly.
// 2. The list date must be strictly after today, otherwise the capture is a
// stale or same-day list and is discarded without delivery.
// 3. Fan out to all recipients; at least one success persists the marker so
// no further send happens today.
// The snapshot artifact is deleted when the cycle ends either way.
func (s *WatcherService) RunCycle(ctx context.Context) error {
	snap, err := s.provider.Capture(ctx, s.targetURL, s.profile)
	if errors.Is(err, snapshot.ErrDateNotFound) {
		s.log.Info("No plausible cause-list date on the page yet; will check again next tick.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("capture snapshot: %w", err)
	}
	defer func() {
		if derr := snap.Discard(); derr != nil {
			s.log.WithError(derr).Warn("Could not discard snapshot artifact.")
		}
	}()

	if !s.gate.PermitsDate(snap.ListDate) {
		s.log.Infof("List date %s is not after today; discarding without delivery.",
			snap.ListDate.Format(captionDateLayout))
		return nil
	}

	caption := fmt.Sprintf("%s\n%s", s.captionTitle, snap.ListDate.Format(captionDateLayout))
	s.log.Infof("Cause list for %s published; dispatching to %d recipient(s).",
		snap.ListDate.Format(captionDateLayout), len(s.recipients))

	ok, failed, err := s.dispatcher.SendAll(ctx, s.channel, snap.ImagePath, caption, s.recipients)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	if ok == 0 {
		s.log.Warnf("No recipient reached (%d failed); marker untouched, will retry next tick.", failed)
		return nil
	}

	if err := s.gate.MarkSent(); err != nil {
		return err
	}
	s.log.Infof("Cycle complete: %d sent, %d failed; sent marker updated.", ok, failed)
	return nil
}
