// Package types provides common type definitions for the monitoring system.
package types

import "time"

// UserTier represents the service tier level
type UserTier string

const (
	// TierFree represents the free service tier with a daily analysis quota
	TierFree UserTier = "free"
	// TierPaid represents the paid service tier with full features
	TierPaid UserTier = "paid"
)

// Verdict represents the risk category assigned to an address or URL.
// The scorer may emit richer labels ("Suspicious", "Likely Scam"); those are
// normalized onto these three categories at the client boundary.
type Verdict string

const (
	// VerdictSafe represents no significant risk indicators
	VerdictSafe Verdict = "Safe"
	// VerdictRisky represents elevated risk indicators
	VerdictRisky Verdict = "Risky"
	// VerdictScam represents strong scam indicators
	VerdictScam Verdict = "Scam"
)

// Rank returns the escalation order of a verdict. Higher is worse.
// Unknown verdicts rank below Safe so they never register as an escalation.
func (v Verdict) Rank() int {
	switch v {
	case VerdictSafe:
		return 1
	case VerdictRisky:
		return 2
	case VerdictScam:
		return 3
	default:
		return 0
	}
}

// Valid reports whether v is one of the three known categories.
func (v Verdict) Valid() bool {
	return v.Rank() > 0
}

// NormalizeVerdict maps scorer labels onto the three-category enum.
// The upstream scorer emits "Suspicious" and "Likely Scam" in one variant.
func NormalizeVerdict(label string) Verdict {
	switch label {
	case "Safe", "safe":
		return VerdictSafe
	case "Risky", "risky", "Suspicious", "suspicious":
		return VerdictRisky
	case "Scam", "scam", "Likely Scam", "likely scam":
		return VerdictScam
	default:
		return VerdictRisky
	}
}

// Snapshot is a single point-in-time risk evaluation result for an address.
// Snapshots are immutable once created.
type Snapshot struct {
	TakenAt time.Time `json:"takenAt"`
	Verdict Verdict   `json:"verdict"`
	Score   float64   `json:"score"` // 0-100
	Flags   []string  `json:"flags,omitempty"`
}

// HasFlag reports whether the snapshot carries the given flag.
func (s *Snapshot) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Channel represents one notification delivery mechanism.
type Channel string

const (
	// ChannelEmail delivers alerts over SMTP
	ChannelEmail Channel = "email"
	// ChannelTelegram delivers alerts through the Telegram Bot API
	ChannelTelegram Channel = "telegram"
	// ChannelLog writes alerts to the structured log
	ChannelLog Channel = "log"
)

// DeliveryOutcome represents the result of an alert delivery attempt on one channel.
type DeliveryOutcome string

const (
	// DeliveryDelivered means the channel accepted the alert
	DeliveryDelivered DeliveryOutcome = "delivered"
	// DeliveryDeferred means the alert was already delivered on this channel earlier
	DeliveryDeferred DeliveryOutcome = "deferred"
	// DeliveryFailed means delivery failed after the retry budget was exhausted
	DeliveryFailed DeliveryOutcome = "failed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
