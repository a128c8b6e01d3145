// Package detector decides whether the change between two risk snapshots
// of the same address is worth alerting on.
package detector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/safebase-monitor/internal/types"
)

// DefaultScoreDelta is the score increase that triggers an alert when the
// verdict itself has not changed.
const DefaultScoreDelta = 20.0

// Detector compares consecutive snapshots of an address. It is a pure
// value type; Detect has no side effects.
type Detector struct {
	scoreDelta float64
}

// New creates a detector with the given score delta threshold
func New(scoreDelta float64) *Detector {
	if scoreDelta <= 0 {
		scoreDelta = DefaultScoreDelta
	}
	return &Detector{scoreDelta: scoreDelta}
}

// Detect compares the previous snapshot with the current one and returns an
// alert message when the transition warrants one. Rules in priority order:
//
//  1. no previous snapshot: the first observation only establishes a baseline
//  2. verdict escalation (Safe->Risky, Safe->Scam, Risky->Scam)
//  3. same verdict, score increased by at least the configured delta
//  4. a flag appears that the previous snapshot did not carry
//
// At most one message is produced per evaluation, from the highest-priority
// matching rule, so alert volume tracks meaningful change rather than
// polling frequency.
func (d *Detector) Detect(previous *types.Snapshot, current *types.Snapshot) (string, bool) {
	if previous == nil {
		return "", false
	}

	if current.Verdict.Rank() > previous.Verdict.Rank() {
		return fmt.Sprintf("verdict escalated from %s to %s (score %.0f)",
			previous.Verdict, current.Verdict, current.Score), true
	}

	if current.Verdict == previous.Verdict && current.Score-previous.Score >= d.scoreDelta {
		return fmt.Sprintf("risk score jumped from %.0f to %.0f while verdict stayed %s",
			previous.Score, current.Score, current.Verdict), true
	}

	if newFlags := diffFlags(previous.Flags, current.Flags); len(newFlags) > 0 {
		return fmt.Sprintf("new risk flags detected: %s", strings.Join(newFlags, ", ")), true
	}

	return "", false
}

// diffFlags returns the flags in current that previous does not carry,
// sorted for stable messages.
func diffFlags(previous, current []string) []string {
	seen := make(map[string]struct{}, len(previous))
	for _, f := range previous {
		seen[f] = struct{}{}
	}

	var added []string
	for _, f := range current {
		if _, ok := seen[f]; !ok {
			added = append(added, f)
		}
	}

	sort.Strings(added)
	return added
}
