package types

import (
	"testing"
)

func TestVerdictRank(t *testing.T) {
	tests := []struct {
		verdict Verdict
		rank    int
	}{
		{VerdictSafe, 1},
		{VerdictRisky, 2},
		{VerdictScam, 3},
		{Verdict("Unknown"), 0},
		{Verdict(""), 0},
	}

	for _, tt := range tests {
		if got := tt.verdict.Rank(); got != tt.rank {
			t.Errorf("Rank(%q) = %d, want %d", tt.verdict, got, tt.rank)
		}
	}
}

func TestNormalizeVerdict(t *testing.T) {
	tests := []struct {
		label string
		want  Verdict
	}{
		{"Safe", VerdictSafe},
		{"safe", VerdictSafe},
		{"Risky", VerdictRisky},
		{"Suspicious", VerdictRisky},
		{"Scam", VerdictScam},
		{"Likely Scam", VerdictScam},
		{"likely scam", VerdictScam},
		// Unknown labels default to Risky rather than Safe
		{"garbage", VerdictRisky},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := NormalizeVerdict(tt.label); got != tt.want {
				t.Errorf("NormalizeVerdict(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestSnapshotHasFlag(t *testing.T) {
	s := &Snapshot{Flags: []string{"delegatecall", "unverified"}}

	if !s.HasFlag("delegatecall") {
		t.Error("expected HasFlag(delegatecall) to be true")
	}
	if s.HasFlag("selfdestruct") {
		t.Error("expected HasFlag(selfdestruct) to be false")
	}

	empty := &Snapshot{}
	if empty.HasFlag("anything") {
		t.Error("empty snapshot should have no flags")
	}
}
