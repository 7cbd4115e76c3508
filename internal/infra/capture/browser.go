// internal/infra/capture/browser.go
package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"causelist_notification_bot/internal/domain/causelist"
	"causelist_notification_bot/internal/domain/snapshot"
	"causelist_notification_bot/internal/infra/statestore"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// BrowserProvider captures snapshots with a local headless browser instead
// of the render API. The browser lives only for the duration of one Capture
// call; the session-persisting browser belongs to the delivery side, not
// here.
type BrowserProvider struct {
	layout   statestore.Layout
	ex       *causelist.Extractor
	headless bool
	timeout  time.Duration
	log      *logrus.Entry
}

func NewBrowserProvider(layout statestore.Layout, ex *causelist.Extractor, headless bool, timeout time.Duration, log *logrus.Entry) *BrowserProvider {
	return &BrowserProvider{
		layout:   layout,
		ex:       ex,
		headless: headless,
		timeout:  timeout,
		log:      log,
	}
}

// Capture renders the target page, extracts the cause-list date from the
// live DOM and writes a full-page PNG. The PNG is captured in the same
// browser pass but only written to disk when a plausible date was found.
func (p *BrowserProvider) Capture(ctx context.Context, targetURL string, profile snapshot.QualityProfile) (*snapshot.Snapshot, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, p.timeout)
	defer cancelRun()

	var html string
	var shot []byte
	err := chromedp.Run(runCtx,
		chromedp.EmulateViewport(profile.Width, profile.Height, chromedp.EmulateScale(profile.Scale)),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.FullScreenshot(&shot, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("render target page: %w", err)
	}

	listDate, found := p.ex.ExtractFromHTML(html)
	if !found {
		return nil, snapshot.ErrDateNotFound
	}

	if err := os.WriteFile(p.layout.Screenshot(), shot, 0o644); err != nil {
		return nil, fmt.Errorf("write screenshot: %w", err)
	}

	return &snapshot.Snapshot{
		ListDate:    listDate,
		ImagePath:   p.layout.Screenshot(),
		ContentType: "image/png",
		CapturedAt:  time.Now(),
	}, nil
}
