// internal/domain/delivery/channel.go
package delivery

import "context"

// Channel delivers one image artifact with a caption to one recipient.
// This decouples the dispatch logic from the concrete messaging backend;
// the two implementations live in internal/infra/whatsapp.
//
// Open prepares whatever long-lived state the channel needs for a dispatch
// pass (the session-backed channel starts its browser here); stateless
// channels implement it as a no-op. A channel is used by one pass at a time,
// never concurrently.
type Channel interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, recipient, imagePath, caption string) error
	Close() error
}

// Outcome is the per-recipient result of one send attempt.
type Outcome struct {
	Recipient string
	Err       error
}

// Failed reports whether the attempt failed.
func (o Outcome) Failed() bool { return o.Err != nil }
