// Package models provides data models for the monitoring system.
package models

import (
	"time"

	"github.com/safebase-monitor/internal/types"
)

// WatchedAddress represents one address on a user's watchlist.
// It is owned exclusively by that user's watchlist entry and destroyed on removal.
type WatchedAddress struct {
	Address      string          `json:"address" db:"address"`
	UserID       string          `json:"userId" db:"user_id"`
	AddedAt      time.Time       `json:"addedAt" db:"added_at"`
	LastSnapshot *types.Snapshot `json:"lastSnapshot,omitempty" db:"last_snapshot"`
	Alerts       []AlertRecord   `json:"alerts,omitempty"`
}

// AlertRecord represents one notification-worthy state transition for a
// watched address. Records are append-only; they are never mutated, only
// trimmed to a bounded tail.
type AlertRecord struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"userId" db:"user_id"`
	Address   string         `json:"address" db:"address"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	Message   string         `json:"message" db:"message"`
	Snapshot  types.Snapshot `json:"snapshot" db:"snapshot"`
}

// NotificationPreferences holds a user's delivery channel configuration.
// One per user; settings updates are last-write-wins.
type NotificationPreferences struct {
	UserID          string    `json:"userId" db:"user_id"`
	EmailEnabled    bool      `json:"emailEnabled" db:"email_enabled"`
	TelegramEnabled bool      `json:"telegramEnabled" db:"telegram_enabled"`
	Email           string    `json:"email,omitempty" db:"email"`
	TelegramID      string    `json:"telegramId,omitempty" db:"telegram_id"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// NotificationsEnabled reports whether at least one channel is active.
func (p *NotificationPreferences) NotificationsEnabled() bool {
	return p.EmailEnabled || p.TelegramEnabled
}

// EnabledChannels returns the channels the user has switched on.
func (p *NotificationPreferences) EnabledChannels() []types.Channel {
	var channels []types.Channel
	if p.EmailEnabled {
		channels = append(channels, types.ChannelEmail)
	}
	if p.TelegramEnabled {
		channels = append(channels, types.ChannelTelegram)
	}
	return channels
}
