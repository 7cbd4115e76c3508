// internal/infra/pairing/board.go
package pairing

import (
	"sync"
	"time"
)

// Board holds the current pairing artifact (the QR code PNG) so the status
// server can serve it to a human while the session channel waits for the
// scan. The channel publishes, the HTTP handler only reads.
type Board struct {
	mu        sync.RWMutex
	png       []byte
	updatedAt time.Time
}

func NewBoard() *Board { return &Board{} }

// Publish replaces the current artifact.
func (b *Board) Publish(png []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.png = append(b.png[:0], png...)
	b.updatedAt = time.Now()
}

// Current returns a copy of the artifact, its publish time, and whether one
// is available at all.
func (b *Board) Current() ([]byte, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.png) == 0 {
		return nil, time.Time{}, false
	}
	out := make([]byte, len(b.png))
	copy(out, b.png)
	return out, b.updatedAt, true
}

// Clear drops the artifact, called once pairing completes.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.png = nil
	b.updatedAt = time.Time{}
}
