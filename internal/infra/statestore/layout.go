// internal/infra/statestore/layout.go
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout maps the cache directory consumed and produced by the watcher:
// the transient screenshot, its metadata sidecar, the one-line sent-date
// marker and the serialized session blob.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout { return Layout{Root: root} }

// Ensure creates the cache directory if missing.
func (l Layout) Ensure() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", l.Root, err)
	}
	return nil
}

func (l Layout) Screenshot() string { return filepath.Join(l.Root, "screenshot.png") }
func (l Layout) Meta() string       { return filepath.Join(l.Root, "meta.json") }
func (l Layout) Marker() string     { return filepath.Join(l.Root, "last_sent") }
func (l Layout) Session() string    { return filepath.Join(l.Root, "session.json") }
