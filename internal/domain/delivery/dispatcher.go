// internal/domain/delivery/dispatcher.go
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher sequences delivery of one artifact to many recipients through a
// single Channel. Delivery is strictly sequential: the session-backed channel
// shares one mutable browser context that cannot be used concurrently.
type Dispatcher struct {
	interDelay time.Duration
	log        *logrus.Entry

	// sleep is swapped out in tests to count delays without waiting.
	sleep func(time.Duration)
}

func NewDispatcher(interDelay time.Duration, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		interDelay: interDelay,
		log:        log,
		sleep:      time.Sleep,
	}
}

// SendAll delivers imagePath with caption to every recipient in order,
// applying the inter-send delay after every send except the last. An
// individual failure is tallied and the pass moves on to the next recipient;
// only a channel that cannot be opened at all aborts the pass with an error.
func (d *Dispatcher) SendAll(ctx context.Context, ch Channel, imagePath, caption string, recipients []string) (ok, failed int, err error) {
	if len(recipients) == 0 {
		return 0, 0, nil
	}

	if err := ch.Open(ctx); err != nil {
		return 0, 0, fmt.Errorf("open delivery channel: %w", err)
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil {
			d.log.WithError(cerr).Warn("Delivery channel did not close cleanly.")
		}
	}()

	for i, recipient := range recipients {
		d.log.Infof("[%d/%d] Sending to %s...", i+1, len(recipients), recipient)

		if serr := ch.Send(ctx, recipient, imagePath, caption); serr != nil {
			failed++
			d.log.WithError(serr).WithField("recipient", recipient).Error("Delivery failed for recipient.")
		} else {
			ok++
			d.log.WithField("recipient", recipient).Info("Delivered.")
		}

		if i < len(recipients)-1 {
			d.sleep(d.interDelay)
		}
	}

	d.log.Infof("Dispatch pass complete: %d sent, %d failed (of %d).", ok, failed, len(recipients))
	return ok, failed, nil
}
