package aggregate

import (
	"sort"

	"github.com/risklab/covrisk/internal/model"
)

// TopK derives the hidden-risk shortlist: HIGH-smell rows sorted
// descending by classifier confidence, then by lloc, truncated to k.
// Rows without a confidence sort below every row that has one. The
// sort is stable, so remaining ties keep input order. The input slice
// is not modified.
func TopK(rows []model.ResultRow, k int) []model.ResultRow {
	if k <= 0 {
		return nil
	}

	var high []model.ResultRow
	for _, row := range rows {
		if row.Smell == model.SmellHigh {
			high = append(high, row)
		}
	}

	sort.SliceStable(high, func(i, j int) bool {
		ci, cj := high[i].Confidence, high[j].Confidence
		switch {
		case ci != nil && cj == nil:
			return true
		case ci == nil && cj != nil:
			return false
		case ci != nil && cj != nil && *ci != *cj:
			return *ci > *cj
		}
		return high[i].LLOC > high[j].LLOC
	})

	if len(high) > k {
		high = high[:k]
	}
	return high
}
