package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/retry"
	"github.com/safebase-monitor/internal/storage"
	"github.com/safebase-monitor/internal/types"
)

// markerTTL bounds how long delivery dedup markers live in Redis. Redelivery
// of the same alert after this window is acceptable (at-least-once).
const markerTTL = 7 * 24 * time.Hour

// Dispatcher fans an alert out to the user's enabled channels. Each channel
// is attempted independently: a failing channel never blocks the others, and
// a per-channel dedup marker keeps redeliveries from repeating channels that
// already succeeded.
type Dispatcher struct {
	senders  map[types.Channel]Sender
	cache    *storage.RedisCache
	retryCfg *retry.Config
	logger   *logging.Logger
}

func NewDispatcher(cfg config.NotifyConfig, cache *storage.RedisCache, logger *logging.Logger, senders ...Sender) *Dispatcher {
	byChannel := make(map[types.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		senders: byChannel,
		cache:   cache,
		retryCfg: &retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.Backoff,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		logger: logger,
	}
}

// Dispatch delivers the alert on every channel the preferences enable, plus
// the log channel. Returns the outcome per channel.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.AlertRecord, prefs *models.NotificationPreferences) map[types.Channel]types.DeliveryOutcome {
	payload := NewAlertPayload(alert.UserID, alert.Address, alert.Message, alert.Snapshot, alert.CreatedAt)

	targets := map[types.Channel]string{
		types.ChannelLog: "",
	}
	if prefs != nil {
		if prefs.EmailEnabled && prefs.Email != "" {
			targets[types.ChannelEmail] = prefs.Email
		}
		if prefs.TelegramEnabled && prefs.TelegramID != "" {
			targets[types.ChannelTelegram] = prefs.TelegramID
		}
	}

	outcomes := make(map[types.Channel]types.DeliveryOutcome, len(targets))
	for channel, target := range targets {
		outcomes[channel] = d.deliver(ctx, channel, target, payload)
	}
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, channel types.Channel, target string, payload *AlertPayload) types.DeliveryOutcome {
	sender, ok := d.senders[channel]
	if !ok {
		d.logger.WithField("channel", string(channel)).Warn("No sender registered for channel")
		return types.DeliveryFailed
	}

	marker := d.markerKey(channel, payload)
	if _, err := d.cache.Get(ctx, marker); err == nil {
		return types.DeliveryDeferred
	} else if !errors.Is(err, redis.Nil) {
		// Marker store unreachable: deliver anyway, duplicates beat silence.
		d.logger.WithError(err).Warn("Dedup marker check failed, delivering without it")
	}

	result := retry.WithExponentialBackoff(ctx, d.retryCfg, func(ctx context.Context, _ int) error {
		return sender.Send(ctx, target, payload)
	})
	if result.Success {
		// The marker is written only once the send lands. A crash between
		// send and marker redelivers the alert on that channel later, which
		// beats suppressing it for the marker's whole lifetime.
		if setErr := d.cache.Set(ctx, marker, time.Now().UTC().Format(time.RFC3339), markerTTL); setErr != nil {
			d.logger.WithError(setErr).Warn("Failed to record delivery marker")
		}
		return types.DeliveryDelivered
	}

	d.logger.WithFields(map[string]interface{}{
		"channel":  string(channel),
		"user_id":  payload.UserID,
		"address":  payload.Address,
		"attempts": result.Attempts,
	}).WithError(result.LastError).Error("Alert delivery failed on channel")
	return types.DeliveryFailed
}

func (d *Dispatcher) markerKey(channel types.Channel, payload *AlertPayload) string {
	return fmt.Sprintf("alert:sent:%s:%s:%d:%s",
		payload.UserID, payload.Address, payload.CreatedAt.UnixMilli(), channel)
}
