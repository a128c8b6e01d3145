package notify

import (
	"context"

	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/types"
)

// LogSender writes alerts to the structured log. It is always enabled so
// every alert leaves an operational trace even when the user has no
// delivery channels configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Channel() types.Channel {
	return types.ChannelLog
}

func (s *LogSender) Send(_ context.Context, _ string, payload *AlertPayload) error {
	s.logger.WithFields(map[string]interface{}{
		"user_id": payload.UserID,
		"address": payload.Address,
		"verdict": string(payload.Verdict),
		"score":   payload.Score,
	}).Warn("monitoring alert: " + payload.Message)
	return nil
}
