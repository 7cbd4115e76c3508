// internal/domain/snapshot/provider.go
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrDateNotFound is returned by a Provider when the page rendered fine but
// no plausible cause-list date could be extracted from it. This is an
// expected outcome (the list is not published yet), not an infrastructure
// failure.
var ErrDateNotFound = errors.New("no plausible cause-list date found on page")

// QualityProfile is a named viewport/scale configuration controlling
// snapshot resolution.
type QualityProfile struct {
	Name   string
	Width  int64
	Height int64
	Scale  float64
}

var (
	ProfileLow    = QualityProfile{Name: "low", Width: 800, Height: 600, Scale: 1}
	ProfileMedium = QualityProfile{Name: "medium", Width: 1280, Height: 720, Scale: 1}
	ProfileHigh   = QualityProfile{Name: "high", Width: 1920, Height: 1080, Scale: 2}
)

// ProfileByName maps a configured profile name onto one of the known
// profiles.
func ProfileByName(name string) (QualityProfile, error) {
	switch strings.ToLower(name) {
	case "", ProfileMedium.Name:
		return ProfileMedium, nil
	case ProfileLow.Name:
		return ProfileLow, nil
	case ProfileHigh.Name:
		return ProfileHigh, nil
	default:
		return QualityProfile{}, fmt.Errorf("unknown quality profile %q", name)
	}
}

// Snapshot is one captured image artifact together with the cause-list date
// that justified capturing it. It is owned by the poll cycle that created it
// and must be discarded at the end of that cycle.
type Snapshot struct {
	ListDate    time.Time
	ImagePath   string
	ContentType string
	CapturedAt  time.Time
}

// Discard deletes the on-disk artifact. Missing files are not an error, so a
// cycle can discard unconditionally.
func (s *Snapshot) Discard() error {
	if s == nil || s.ImagePath == "" {
		return nil
	}
	err := os.Remove(s.ImagePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Provider captures a visual snapshot of the target page. Implementations
// must run date extraction against the page representation and return
// ErrDateNotFound instead of an artifact when no plausible date is present.
// Providers never retry internally; retry policy belongs to the scheduler.
type Provider interface {
	Capture(ctx context.Context, targetURL string, profile QualityProfile) (*Snapshot, error)
}
