package coverage

import (
	"math"

	"github.com/risklab/covrisk/internal/model"
)

// Bucket boundaries in percent. Upper bounds are inclusive: exactly
// 30.0 is LOW and exactly 70.0 is MEDIUM. Repositories cluster near
// these boundaries in practice, so the closed upper side must hold
// exactly.
const (
	lowMax    = 30.0
	mediumMax = 70.0
)

// Attribute computes the coverage percent and bucket for one function
// span against the index.
//
// Malformed spans (missing start/end or start > end) degrade to
// (0, ZERO) rather than erroring. Callers cannot distinguish that
// from a measured span with no executed lines.
func Attribute(fn model.FunctionRecord, idx *Index) (float64, model.CoverageBucket) {
	if !fn.SpanValid() {
		return 0, model.BucketZero
	}

	total := fn.EndLine - fn.StartLine + 1
	if total <= 0 {
		return 0, model.BucketZero
	}

	executed := idx.ExecutedLines(fn.FilePath)
	covered := 0
	for line := fn.StartLine; line <= fn.EndLine; line++ {
		if executed[line] {
			covered++
		}
	}

	percent := round2(100 * float64(covered) / float64(total))
	return percent, Discretize(percent)
}

// Discretize maps a coverage percent in [0,100] to its bucket:
// 0 -> ZERO, (0,30] -> LOW, (30,70] -> MEDIUM, (70,100] -> HIGH.
func Discretize(percent float64) model.CoverageBucket {
	switch {
	case percent == 0:
		return model.BucketZero
	case percent <= lowMax:
		return model.BucketLow
	case percent <= mediumMax:
		return model.BucketMedium
	default:
		return model.BucketHigh
	}
}

// round2 rounds to two decimals, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
