// internal/infra/whatsapp/web.go
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"causelist_notification_bot/internal/infra/pairing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

const webClientURL = "https://web.whatsapp.com/"

// controlPollInterval paces the bounded wait loops for UI controls.
const controlPollInterval = 500 * time.Millisecond

// ErrPairingTimeout signals that the QR code was never scanned within the
// configured retry budget.
var ErrPairingTimeout = errors.New("pairing did not complete within the retry budget")

// WebChannelConfig carries the session channel's knobs.
type WebChannelConfig struct {
	SessionPath  string
	Controls     ControlSet
	Headless     bool
	PollAttempts int
	PollInterval time.Duration
	StepTimeout  time.Duration
	Settle       time.Duration
}

// WebChannel delivers through the WhatsApp Web client driven by a headless
// browser. One authenticated browser context is held across a whole dispatch
// pass (Open..Close); it is not safe for concurrent sends and the dispatcher
// never attempts them.
//
// Authentication state lives in a persisted cookie blob. The blob is
// discarded only when the client positively shows its pairing code, meaning
// the restored session was rejected; then a fresh pairing flow runs: the QR
// code is published to the pairing board for a human to scan, polled up to
// PollAttempts times at PollInterval, and the new session is persisted on
// success.
type WebChannel struct {
	cfg   WebChannelConfig
	board *pairing.Board
	log   *logrus.Entry

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	// Browser-backed steps, swapped out in tests.
	sleep   func(time.Duration)
	probe   func(sel string) bool
	grabQR  func() ([]byte, error)
	persist func() error
}

func NewWebChannel(cfg WebChannelConfig, board *pairing.Board, log *logrus.Entry) *WebChannel {
	if cfg.Controls.LoggedIn == "" {
		cfg.Controls = DefaultControls()
	}
	if cfg.Settle == 0 {
		cfg.Settle = 3 * time.Second
	}
	w := &WebChannel{
		cfg:   cfg,
		board: board,
		log:   log,
		sleep: time.Sleep,
	}
	w.probe = func(sel string) bool { return present(w.tabCtx, sel) }
	w.grabQR = w.captureQR
	w.persist = w.persistCookies
	return w
}

// Open starts the browser, restores any persisted session and navigates to
// the web client. Authentication is verified lazily by the first Send so a
// pairing failure counts against recipients, not the whole pass.
func (w *WebChannel) Open(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", w.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	// The allocator outlives the caller's ctx: it is torn down by Close at
	// the end of the dispatch pass.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	w.allocCancel = allocCancel
	w.tabCtx, w.tabCancel = chromedp.NewContext(allocCtx)

	if st, err := loadSession(w.cfg.SessionPath); err == nil {
		if rerr := w.restoreCookies(st.Cookies); rerr != nil {
			w.log.WithError(rerr).Warn("Could not restore persisted session; continuing unauthenticated.")
		} else {
			w.log.Infof("Restored session saved at %s.", st.SavedAt.Format(time.RFC3339))
		}
	} else if !errors.Is(err, ErrNoSession) {
		w.log.WithError(err).Warn("Discarding unreadable session blob.")
		_ = clearSession(w.cfg.SessionPath)
	}

	stepCtx, cancel := w.stepContext(ctx)
	defer cancel()
	if err := chromedp.Run(stepCtx,
		chromedp.Navigate(webClientURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		w.Close()
		return fmt.Errorf("open web client: %w", err)
	}
	return nil
}

// Close tears the browser down. Safe to call after a failed Open.
func (w *WebChannel) Close() error {
	if w.tabCancel != nil {
		w.tabCancel()
		w.tabCancel = nil
	}
	if w.allocCancel != nil {
		w.allocCancel()
		w.allocCancel = nil
	}
	return nil
}

// Send delivers one image with caption to one recipient. Each failure point
// reports a distinct reason and nothing is retried here; the caller decides
// whether the recipient gets another attempt on a later cycle.
func (w *WebChannel) Send(ctx context.Context, recipient, imagePath, caption string) error {
	if w.tabCtx == nil {
		return fmt.Errorf("channel is not open")
	}

	if err := w.ensureAuthenticated(ctx); err != nil {
		return err
	}
	if err := w.openChat(ctx, recipient); err != nil {
		return err
	}
	if err := w.attachImage(ctx, imagePath); err != nil {
		return err
	}
	if caption != "" {
		if err := w.enterCaption(ctx, caption); err != nil {
			return err
		}
	}
	return w.triggerSend(ctx)
}

// clientState is what the web client is showing once its JS has rendered:
// the authenticated chat list, or the pairing code.
type clientState int

const (
	clientLoggedIn clientState = iota
	clientPairing
)

// awaitClientState polls until the client shows either the authenticated
// chat list or the pairing code. Right after navigation neither is rendered
// yet, so absence of the logged-in indicator alone proves nothing about the
// restored session.
func (w *WebChannel) awaitClientState(ctx context.Context) (clientState, error) {
	attempts := int(w.cfg.StepTimeout / controlPollInterval)
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return clientPairing, err
		}
		if w.probe(w.cfg.Controls.LoggedIn) {
			return clientLoggedIn, nil
		}
		if w.probe(w.cfg.Controls.QRCode) {
			return clientPairing, nil
		}
		w.sleep(controlPollInterval)
	}
	return clientPairing, fmt.Errorf("web client showed neither the chat list nor a pairing code within %s", w.cfg.StepTimeout)
}

// ensureAuthenticated runs the pairing sub-flow when the client positively
// shows its pairing code: publish the current QR code, wait, re-check, up to
// the bounded retry budget.
func (w *WebChannel) ensureAuthenticated(ctx context.Context) error {
	state, err := w.awaitClientState(ctx)
	if err != nil {
		return fmt.Errorf("authentication check: %w", err)
	}
	if state == clientLoggedIn {
		return nil
	}

	// Pairing code on screen: the client rejected whatever session blob we
	// restored. Drop it so the next start pairs from scratch even if this
	// attempt is interrupted.
	if err := clearSession(w.cfg.SessionPath); err != nil {
		w.log.WithError(err).Warn("Could not discard stale session blob.")
	}

	w.log.Infof("Not authenticated; starting pairing flow (%d attempts at %s).",
		w.cfg.PollAttempts, w.cfg.PollInterval)

	for attempt := 1; attempt <= w.cfg.PollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			w.board.Clear()
			return fmt.Errorf("pairing interrupted: %w", err)
		}

		if png, err := w.grabQR(); err == nil {
			w.board.Publish(png)
		} else {
			w.log.WithError(err).Debugf("Pairing attempt %d: QR code not captured.", attempt)
		}

		w.sleep(w.cfg.PollInterval)

		if w.probe(w.cfg.Controls.LoggedIn) {
			w.board.Clear()
			if err := w.persist(); err != nil {
				w.log.WithError(err).Warn("Paired but could not persist session; next run will pair again.")
			} else {
				w.log.Info("Pairing complete; session persisted.")
			}
			return nil
		}
	}

	w.board.Clear()
	return fmt.Errorf("%w (%d attempts)", ErrPairingTimeout, w.cfg.PollAttempts)
}

func (w *WebChannel) captureQR() ([]byte, error) {
	stepCtx, cancel := context.WithTimeout(w.tabCtx, w.cfg.StepTimeout)
	defer cancel()

	var png []byte
	err := chromedp.Run(stepCtx,
		chromedp.Screenshot(w.cfg.Controls.QRCode, &png, chromedp.ByQuery))
	if err != nil {
		return nil, fmt.Errorf("capture pairing code: %w", err)
	}
	return png, nil
}

func (w *WebChannel) openChat(ctx context.Context, recipient string) error {
	stepCtx, cancel := w.stepContext(ctx)
	defer cancel()

	err := chromedp.Run(stepCtx,
		chromedp.Navigate(webClientURL+"send?phone="+sanitizePhone(recipient)),
		chromedp.WaitVisible(w.cfg.Controls.ChatReady, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("chat context for %s did not load: %w", recipient, err)
	}
	return nil
}

// attachImage triggers the attachment flow and injects the file. When no
// attachment trigger can be located the flow falls back to feeding the file
// input directly, which most client builds keep in the DOM.
func (w *WebChannel) attachImage(ctx context.Context, imagePath string) error {
	if st, nodes, ok := findFirst(w.tabCtx, w.cfg.Controls.Attachment); ok {
		stepCtx, cancel := w.stepContext(ctx)
		err := chromedp.Run(stepCtx, chromedp.MouseClickNode(nodes[0]))
		cancel()
		if err != nil {
			return fmt.Errorf("attachment trigger (%s) not clickable: %w", st.Name, err)
		}
	} else {
		w.log.Warn("No attachment trigger found; falling back to the file input directly.")
	}

	st, _, err := w.waitForControl(ctx, w.cfg.Controls.FileInput, w.cfg.StepTimeout)
	if err != nil {
		return fmt.Errorf("attachment file input not found: %w", err)
	}

	stepCtx, cancel := w.stepContext(ctx)
	defer cancel()
	if err := chromedp.Run(stepCtx,
		chromedp.SetUploadFiles(st.Selector, []string{imagePath}, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("inject image into %s: %w", st.Name, err)
	}

	// The preview stage is ready once its send control exists.
	if _, _, err := w.waitForControl(ctx, w.cfg.Controls.SendControl, w.cfg.StepTimeout); err != nil {
		return fmt.Errorf("attachment preview did not appear: %w", err)
	}
	return nil
}

// enterCaption focuses the preview's caption input and types the caption,
// translating embedded newlines into the client's line-break gesture
// (shift+enter) so they don't fire the send.
func (w *WebChannel) enterCaption(ctx context.Context, caption string) error {
	_, nodes, err := w.waitForControl(ctx, w.cfg.Controls.CaptionInput, w.cfg.StepTimeout)
	if err != nil {
		return fmt.Errorf("caption input not found: %w", err)
	}
	node := pickCaptionNode(nodes)

	actions := []chromedp.Action{chromedp.MouseClickNode(node)}
	for i, line := range strings.Split(caption, "\n") {
		if i > 0 {
			actions = append(actions,
				chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierShift)))
		}
		if line != "" {
			actions = append(actions, chromedp.KeyEvent(line))
		}
	}

	stepCtx, cancel := w.stepContext(ctx)
	defer cancel()
	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return fmt.Errorf("enter caption: %w", err)
	}
	return nil
}

// triggerSend fires the send control, waits a settle period and then tries
// to spot the delivery tick in the transcript. Failing to verify is only a
// warning: the message may well have gone out.
func (w *WebChannel) triggerSend(ctx context.Context) error {
	st, nodes, err := w.waitForControl(ctx, w.cfg.Controls.SendControl, w.cfg.StepTimeout)
	if err != nil {
		return fmt.Errorf("send control not found: %w", err)
	}

	stepCtx, cancel := w.stepContext(ctx)
	defer cancel()
	if err := chromedp.Run(stepCtx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return fmt.Errorf("send control (%s) not clickable: %w", st.Name, err)
	}

	w.sleep(w.cfg.Settle)

	if !w.probe(w.cfg.Controls.SentTick) {
		w.log.Warn("Could not verify the message in the transcript; the send may still have succeeded.")
	}
	return nil
}

// waitForControl polls the strategy list until one matches, the timeout
// budget is exhausted, or the caller's ctx ends.
func (w *WebChannel) waitForControl(ctx context.Context, strategies []ControlStrategy, timeout time.Duration) (ControlStrategy, []*cdp.Node, error) {
	attempts := int(timeout / controlPollInterval)
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return ControlStrategy{}, nil, err
		}
		if st, nodes, ok := findFirst(w.tabCtx, strategies); ok {
			return st, nodes, nil
		}
		w.sleep(controlPollInterval)
	}
	return ControlStrategy{}, nil, fmt.Errorf("no strategy matched within %s", timeout)
}

// stepContext bounds one browser step by both the step timeout and the
// caller's ctx. Browser actions must run on a context descended from tabCtx,
// so the caller's deadline is propagated through AfterFunc instead of by
// deriving from it directly.
func (w *WebChannel) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithTimeout(w.tabCtx, w.cfg.StepTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

func (w *WebChannel) restoreCookies(cookies []*network.CookieParam) error {
	return chromedp.Run(w.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(cookies).Do(ctx)
	}))
}

func (w *WebChannel) persistCookies() error {
	var cookies []*network.Cookie
	err := chromedp.Run(w.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	return saveSession(w.cfg.SessionPath, cookies)
}

// sanitizePhone strips everything but digits; the web client's send URL
// wants a bare international number.
func sanitizePhone(recipient string) string {
	var b strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
