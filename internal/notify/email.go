package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/types"
)

// EmailSender delivers alerts over SMTP.
type EmailSender struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{
		host: cfg.Host,
		port: cfg.Port,
		user: cfg.User,
		pass: cfg.Password,
		from: cfg.From,
	}
}

func (s *EmailSender) Channel() types.Channel {
	return types.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, target string, payload *AlertPayload) error {
	if target == "" {
		return errors.NewDeliveryError(string(types.ChannelEmail), fmt.Errorf("no email address configured"))
	}

	subject := fmt.Sprintf("Risk alert for %s", payload.AddrShort)
	body := s.buildBody(payload)

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", target))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	// net/smtp has no context support, so deliver in a goroutine and
	// respect cancellation from the caller side.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.from, []string{target}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewDeliveryError(string(types.ChannelEmail), err)
		}
		return nil
	case <-ctx.Done():
		return errors.NewDeliveryError(string(types.ChannelEmail), ctx.Err())
	}
}

func (s *EmailSender) buildBody(payload *AlertPayload) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("Address %s triggered a monitoring alert.\r\n\r\n", payload.Address))
	b.WriteString(fmt.Sprintf("%s\r\n\r\n", payload.Message))
	b.WriteString(fmt.Sprintf("Current verdict: %s (score %.0f)\r\n", payload.Verdict, payload.Score))
	if len(payload.Flags) > 0 {
		b.WriteString(fmt.Sprintf("Flags: %s\r\n", strings.Join(payload.Flags, ", ")))
	}
	b.WriteString(fmt.Sprintf("Detected at: %s\r\n", payload.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	return b.String()
}
