package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/safebase-monitor/internal/types"
)

func snap(verdict types.Verdict, score float64, flags ...string) *types.Snapshot {
	return &types.Snapshot{
		TakenAt: time.Now().UTC(),
		Verdict: verdict,
		Score:   score,
		Flags:   flags,
	}
}

func TestDetect_NoPreviousIsBaselineOnly(t *testing.T) {
	d := New(20)

	msg, ok := d.Detect(nil, snap(types.VerdictScam, 95, "honeypot"))
	if ok {
		t.Errorf("first observation must not alert, got %q", msg)
	}
}

func TestDetect_VerdictEscalation(t *testing.T) {
	d := New(20)

	tests := []struct {
		name string
		prev *types.Snapshot
		cur  *types.Snapshot
		want bool
	}{
		{"safe to risky", snap(types.VerdictSafe, 10), snap(types.VerdictRisky, 40), true},
		{"safe to scam", snap(types.VerdictSafe, 10), snap(types.VerdictScam, 90), true},
		{"risky to scam", snap(types.VerdictRisky, 40), snap(types.VerdictScam, 90), true},
		{"scam to risky is not escalation", snap(types.VerdictScam, 90), snap(types.VerdictRisky, 40), false},
		{"risky to safe is not escalation", snap(types.VerdictRisky, 40), snap(types.VerdictSafe, 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := d.Detect(tt.prev, tt.cur)
			if ok != tt.want {
				t.Errorf("Detect() alert = %v, want %v", ok, tt.want)
			}
			if tt.want {
				if !strings.Contains(msg, string(tt.prev.Verdict)) || !strings.Contains(msg, string(tt.cur.Verdict)) {
					t.Errorf("escalation message %q should name both verdicts", msg)
				}
			}
		})
	}
}

func TestDetect_ScoreDelta(t *testing.T) {
	d := New(20)

	// Below threshold: no alert
	if msg, ok := d.Detect(snap(types.VerdictRisky, 40), snap(types.VerdictRisky, 59)); ok {
		t.Errorf("delta below threshold must not alert, got %q", msg)
	}

	// At threshold: alert
	if _, ok := d.Detect(snap(types.VerdictRisky, 40), snap(types.VerdictRisky, 60)); !ok {
		t.Error("delta at threshold must alert")
	}

	// Score decrease: no alert
	if msg, ok := d.Detect(snap(types.VerdictRisky, 60), snap(types.VerdictRisky, 10)); ok {
		t.Errorf("score decrease must not alert, got %q", msg)
	}
}

func TestDetect_NewFlags(t *testing.T) {
	d := New(20)

	msg, ok := d.Detect(
		snap(types.VerdictRisky, 40, "unverified"),
		snap(types.VerdictRisky, 42, "unverified", "delegatecall", "selfdestruct"),
	)
	if !ok {
		t.Fatal("new flags must alert")
	}
	if !strings.Contains(msg, "delegatecall") || !strings.Contains(msg, "selfdestruct") {
		t.Errorf("flag message %q should list the new flags", msg)
	}
	if strings.Contains(msg, "unverified") {
		t.Errorf("flag message %q should not list pre-existing flags", msg)
	}

	// Removed flags are not alert-worthy
	if msg, ok := d.Detect(snap(types.VerdictRisky, 40, "a", "b"), snap(types.VerdictRisky, 40, "a")); ok {
		t.Errorf("removed flag must not alert, got %q", msg)
	}
}

func TestDetect_HighestPriorityRuleWins(t *testing.T) {
	d := New(20)

	// Escalation + score jump + new flag at once: exactly one alert,
	// with the escalation message.
	msg, ok := d.Detect(
		snap(types.VerdictSafe, 10),
		snap(types.VerdictScam, 95, "honeypot"),
	)
	if !ok {
		t.Fatal("expected an alert")
	}
	if !strings.Contains(msg, "escalated") {
		t.Errorf("message %q should come from the escalation rule", msg)
	}
	if strings.Contains(msg, "honeypot") {
		t.Errorf("message %q should not mix in lower-priority rules", msg)
	}
}

func TestDetect_NoChangeNoAlert(t *testing.T) {
	d := New(20)

	if msg, ok := d.Detect(snap(types.VerdictSafe, 15, "x"), snap(types.VerdictSafe, 15, "x")); ok {
		t.Errorf("identical snapshots must not alert, got %q", msg)
	}
}
