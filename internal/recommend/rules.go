// Package recommend produces ordered testing recommendations from a
// risk-annotated function. The rules are plain lookups: output is a
// stable function of the input so result rows stay diffable.
package recommend

import (
	"strings"

	"github.com/risklab/covrisk/internal/model"
)

// Metric thresholds above which a function earns extra structural
// recommendations. Shared with the extraction pipeline defaults.
const (
	CCThreshold   = 10
	LLOCThreshold = 30
	DiffThreshold = 20.0
)

// Input is the contract the aggregator supplies. Metric fields
// default to zero when the extractor did not report them.
type Input struct {
	RiskCategory   string
	CoverageBucket string
	CC             int
	LLOC           int
	Difficulty     float64
}

// Recommend returns the ordered recommendation list for one function:
// category base rules first, then metric-conditional additions in a
// fixed order.
func Recommend(in Input) []string {
	recs := baseRules(in.RiskCategory, in.CoverageBucket)

	if in.CC > CCThreshold {
		recs = append(recs, "Break branches into smaller units; cover each decision path separately")
	}
	if in.LLOC > LLOCThreshold {
		recs = append(recs, "Extract helper functions before testing; the span is too long to cover atomically")
	}
	if in.Difficulty > DiffThreshold {
		recs = append(recs, "Add property-based or table-driven tests; high Halstead difficulty signals many operand interactions")
	}

	return recs
}

// baseRules returns the per-category recommendations. Unknown
// categories get a neutral fallback rather than nothing, keeping the
// output total.
func baseRules(category, bucket string) []string {
	zero := strings.EqualFold(bucket, string(model.BucketZero))

	switch model.RiskCategory(category) {
	case model.HiddenRisk:
		recs := []string{"Write unit tests for this function first; it is complex and effectively untested"}
		if zero {
			recs = append(recs, "Start with a smoke test that executes the happy path end to end")
		}
		return recs
	case model.RefactorCandidate:
		return []string{"Refactor under the protection of the existing tests, then re-run the analysis"}
	case model.LowValue:
		return []string{"Low priority: add a regression test only if this code is on a critical path"}
	case model.SafeZone:
		return []string{"No action needed; keep coverage above the current bucket when changing this code"}
	default:
		return []string{"Review manually; the function did not classify into a known risk category"}
	}
}
