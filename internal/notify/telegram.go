package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/types"
)

// TelegramSender delivers alerts via the Telegram Bot API sendMessage call.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramSender{
		token:   cfg.BotToken,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TelegramSender) Channel() types.Channel {
	return types.ChannelTelegram
}

func (s *TelegramSender) Send(ctx context.Context, target string, payload *AlertPayload) error {
	if s.token == "" {
		return errors.NewDeliveryError(string(types.ChannelTelegram), fmt.Errorf("bot token not configured"))
	}
	if target == "" {
		return errors.NewDeliveryError(string(types.ChannelTelegram), fmt.Errorf("no chat id configured"))
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":    target,
		"text":       s.buildText(payload),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return errors.NewDeliveryError(string(types.ChannelTelegram), err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.NewDeliveryError(string(types.ChannelTelegram), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.NewDeliveryError(string(types.ChannelTelegram), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewDeliveryError(string(types.ChannelTelegram),
			fmt.Errorf("sendMessage returned %d: %s", resp.StatusCode, string(respBody)))
	}
	return nil
}

func (s *TelegramSender) buildText(payload *AlertPayload) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("⚠️ *Risk alert* for `%s`\n\n", payload.Address))
	b.WriteString(payload.Message)
	b.WriteString(fmt.Sprintf("\n\nVerdict: *%s* (score %.0f)", payload.Verdict, payload.Score))
	if len(payload.Flags) > 0 {
		b.WriteString(fmt.Sprintf("\nFlags: %s", strings.Join(payload.Flags, ", ")))
	}
	return b.String()
}
