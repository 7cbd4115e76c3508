// internal/infra/whatsapp/controls.go
package whatsapp

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ControlStrategy is one way of locating a UI control on the page. The web
// client's markup shifts between releases, so every control is looked up
// through an ordered list of strategies tried in sequence.
type ControlStrategy struct {
	Name     string
	Selector string
}

// ControlSet carries the structural heuristics for every control the send
// flow touches. The state machine in WebChannel only ever talks to this set;
// the concrete selectors are a deployment concern.
type ControlSet struct {
	// Probes. LoggedIn present means an authenticated session; QRCode present
	// means the web client is showing the pairing code.
	LoggedIn string
	QRCode   string

	// ChatReady is the conversation composer, the signal that the recipient's
	// chat context finished loading.
	ChatReady string

	Attachment   []ControlStrategy
	FileInput    []ControlStrategy
	CaptionInput []ControlStrategy
	SendControl  []ControlStrategy

	// SentTick is the delivery check mark used for best-effort verification.
	SentTick string
}

// DefaultControls matches the WhatsApp Web markup observed at the time of
// writing, newest variants first.
func DefaultControls() ControlSet {
	return ControlSet{
		LoggedIn:  `#side`,
		QRCode:    `div[data-ref] canvas, canvas[aria-label]`,
		ChatReady: `footer div[contenteditable="true"]`,
		Attachment: []ControlStrategy{
			{Name: "plus-rounded icon", Selector: `span[data-icon="plus-rounded"]`},
			{Name: "plus icon", Selector: `span[data-icon="plus"]`},
			{Name: "clip icon", Selector: `span[data-icon="clip"]`},
			{Name: "attach button", Selector: `button[aria-label="Attach"], div[title="Attach"]`},
		},
		FileInput: []ControlStrategy{
			{Name: "image file input", Selector: `input[type="file"][accept*="image"]`},
			{Name: "any file input", Selector: `input[type="file"]`},
		},
		CaptionInput: []ControlStrategy{
			{Name: "caption box", Selector: `div[aria-label="Add a caption"]`},
			{Name: "preview editable", Selector: `div[contenteditable="true"][data-tab="10"]`},
			{Name: "any editable", Selector: `div[contenteditable="true"]`},
		},
		SendControl: []ControlStrategy{
			{Name: "send icon", Selector: `span[data-icon="send"]`},
			{Name: "wds send icon", Selector: `span[data-icon="wds-ic-send-filled"]`},
			{Name: "send button", Selector: `div[aria-label="Send"], button[aria-label="Send"]`},
		},
		SentTick: `span[data-icon="msg-check"], span[data-icon="msg-dblcheck"]`,
	}
}

// findFirst probes the strategies in order and returns the first one that
// matches at least one node right now. AtLeast(0) keeps the probe from
// blocking on selectors that are simply absent.
func findFirst(ctx context.Context, strategies []ControlStrategy) (ControlStrategy, []*cdp.Node, bool) {
	for _, st := range strategies {
		var nodes []*cdp.Node
		err := chromedp.Run(ctx,
			chromedp.Nodes(st.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
		if err != nil || len(nodes) == 0 {
			continue
		}
		return st, nodes, true
	}
	return ControlStrategy{}, nil, false
}

// present reports whether sel matches anything right now.
func present(ctx context.Context, sel string) bool {
	var nodes []*cdp.Node
	err := chromedp.Run(ctx,
		chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return err == nil && len(nodes) > 0
}

// pickCaptionNode disambiguates between the preview's caption input and the
// main composer when a loose strategy matches both: the preview overlay is
// rendered after the composer, so the last match in document order is the
// one attached to the pending image.
func pickCaptionNode(nodes []*cdp.Node) *cdp.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}
