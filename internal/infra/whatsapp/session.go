// internal/infra/whatsapp/session.go
package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// ErrNoSession signals that no persisted session exists yet; the channel
// must run the pairing flow before it can send.
var ErrNoSession = errors.New("no persisted session")

// sessionState is the serialized authentication blob written after a
// successful pairing and restored at browser start.
type sessionState struct {
	SavedAt time.Time              `json:"saved_at"`
	Cookies []*network.CookieParam `json:"cookies"`
}

func loadSession(path string) (*sessionState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}

	var st sessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("malformed session %s: %w", path, err)
	}
	if len(st.Cookies) == 0 {
		return nil, ErrNoSession
	}
	return &st, nil
}

func saveSession(path string, cookies []*network.Cookie) error {
	st := sessionState{
		SavedAt: time.Now(),
		Cookies: cookieParams(cookies),
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// clearSession discards an invalidated session blob. A missing file is fine;
// the point is that the next send starts from a clean pairing flow.
func clearSession(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session %s: %w", path, err)
	}
	return nil
}

func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}
