package coverage

import (
	"fmt"
	"sort"

	"golang.org/x/tools/cover"

	"github.com/risklab/covrisk/internal/model"
)

// FromProfile converts a Go cover profile into a raw coverage report.
// Every line inside a block executed at least once counts as an
// executed line. Profile file names are import-path relative
// ("github.com/user/pkg/file.go"); they work unchanged as report keys
// because record paths match them by suffix.
func FromProfile(profilePath string) (*model.RawCoverageReport, error) {
	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, fmt.Errorf("parsing cover profile: %w", err)
	}

	report := &model.RawCoverageReport{
		Files: make(map[string]model.FileCoverage, len(profiles)),
		Keys:  make([]string, 0, len(profiles)),
	}

	for _, profile := range profiles {
		lines := make(map[int]bool)
		for _, b := range profile.Blocks {
			if b.Count == 0 {
				continue
			}
			for line := b.StartLine; line <= b.EndLine; line++ {
				lines[line] = true
			}
		}

		executed := make([]int, 0, len(lines))
		for line := range lines {
			executed = append(executed, line)
		}
		sort.Ints(executed)

		report.Files[profile.FileName] = model.FileCoverage{ExecutedLines: executed}
		report.Keys = append(report.Keys, profile.FileName)
	}

	return report, nil
}
