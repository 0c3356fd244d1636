// Package risk classifies functions by joining their smell label with
// their coverage bucket.
package risk

import (
	"strings"

	"github.com/risklab/covrisk/internal/model"
)

// Classify maps (smell label, coverage bucket) to a risk category.
// Case-insensitive on both inputs; total for smell in {HIGH, LOW}:
//
//	HIGH + {ZERO, LOW}    -> Hidden Risk
//	HIGH + {MEDIUM, HIGH} -> Refactor Candidate
//	LOW  + {ZERO, LOW}    -> Low Value
//	LOW  + {MEDIUM, HIGH} -> Safe Zone
//
// Smell validation happens at ingestion; Classify assumes the label
// invariant holds and treats any non-HIGH label as LOW.
func Classify(smell, bucket string) model.RiskCategory {
	smellUp := strings.ToUpper(smell)
	bucketUp := strings.ToUpper(bucket)

	sparse := bucketUp == string(model.BucketZero) || bucketUp == string(model.BucketLow)

	if smellUp == string(model.SmellHigh) {
		if sparse {
			return model.HiddenRisk
		}
		return model.RefactorCandidate
	}
	if sparse {
		return model.LowValue
	}
	return model.SafeZone
}
