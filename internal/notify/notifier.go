// Package notify delivers alerts through the user's configured channels
// with bounded retry and at-least-once semantics.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/safebase-monitor/internal/types"
)

// AlertPayload contains everything a channel needs to render an alert.
type AlertPayload struct {
	UserID    string
	Address   string
	AddrShort string // shortened for display
	Message   string
	Verdict   types.Verdict
	Score     float64
	Flags     []string
	CreatedAt time.Time
}

// NewAlertPayload builds a payload from an alert's fields.
func NewAlertPayload(userID, address, message string, snap types.Snapshot, createdAt time.Time) *AlertPayload {
	return &AlertPayload{
		UserID:    userID,
		Address:   address,
		AddrShort: shortenAddress(address),
		Message:   message,
		Verdict:   snap.Verdict,
		Score:     snap.Score,
		Flags:     snap.Flags,
		CreatedAt: createdAt,
	}
}

// Sender delivers an alert on one channel. The target is the user's
// channel-specific destination (email address, telegram chat id).
type Sender interface {
	Channel() types.Channel
	Send(ctx context.Context, target string, payload *AlertPayload) error
}

func shortenAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return fmt.Sprintf("%s…%s", address[:6], address[len(address)-4:])
}
