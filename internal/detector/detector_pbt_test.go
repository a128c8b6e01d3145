package detector

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/safebase-monitor/internal/types"
)

func genVerdict() gopter.Gen {
	return gen.OneConstOf(types.VerdictSafe, types.VerdictRisky, types.VerdictScam)
}

func genScore() gopter.Gen {
	return gen.Float64Range(0, 100)
}

func genFlags() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf("unverified", "delegatecall", "selfdestruct", "honeypot", "proxy"))
}

func TestDetectProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	d := New(20)

	properties.Property("escalation from Safe to Scam always alerts", prop.ForAll(
		func(prevScore, curScore float64, prevFlags, curFlags []string) bool {
			_, ok := d.Detect(
				&types.Snapshot{Verdict: types.VerdictSafe, Score: prevScore, Flags: prevFlags},
				&types.Snapshot{Verdict: types.VerdictScam, Score: curScore, Flags: curFlags},
			)
			return ok
		},
		genScore(), genScore(), genFlags(), genFlags(),
	))

	properties.Property("same verdict, same flags, delta below threshold never alerts", prop.ForAll(
		func(verdict types.Verdict, base, delta float64, flags []string) bool {
			_, ok := d.Detect(
				&types.Snapshot{Verdict: verdict, Score: base, Flags: flags},
				&types.Snapshot{Verdict: verdict, Score: base + delta, Flags: flags},
			)
			return !ok
		},
		genVerdict(), gen.Float64Range(0, 80), gen.Float64Range(0, 19.9), genFlags(),
	))

	properties.Property("nil previous never alerts", prop.ForAll(
		func(verdict types.Verdict, score float64, flags []string) bool {
			_, ok := d.Detect(nil, &types.Snapshot{Verdict: verdict, Score: score, Flags: flags})
			return !ok
		},
		genVerdict(), genScore(), genFlags(),
	))

	properties.Property("alerting is monotone in verdict rank", prop.ForAll(
		func(prev, cur types.Verdict, score float64) bool {
			_, ok := d.Detect(
				&types.Snapshot{Verdict: prev, Score: score},
				&types.Snapshot{Verdict: cur, Score: score},
			)
			// With equal scores and no flags, an alert fires exactly
			// when the verdict rank increased.
			return ok == (cur.Rank() > prev.Rank())
		},
		genVerdict(), genVerdict(), genScore(),
	))

	properties.TestingRun(t)
}
