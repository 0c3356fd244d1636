package store

import "github.com/risklab/covrisk/internal/model"

// Change records a function whose risk category or coverage percent
// moved between two runs.
type Change struct {
	FilePath    string             `json:"file_path"`
	MethodName  string             `json:"method_name"`
	StartLine   int                `json:"start_line"`
	From        model.RiskCategory `json:"from"`
	To          model.RiskCategory `json:"to"`
	FromPercent float64            `json:"from_percent"`
	ToPercent   float64            `json:"to_percent"`
}

// RunDiff is the function-level difference between two runs of the
// same repository.
type RunDiff struct {
	Added   []model.ResultRow `json:"added"`
	Removed []model.ResultRow `json:"removed"`
	Changed []Change          `json:"changed"`
}

// Empty reports whether the two runs agreed on every function.
func (d RunDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// rowKey identifies a function across runs. Renaming a method or
// moving its span reads as a removal plus an addition.
type rowKey struct {
	file   string
	method string
	start  int
}

func keyOf(row model.ResultRow) rowKey {
	return rowKey{file: row.FilePath, method: row.MethodName, start: row.StartLine}
}

// Diff compares two result sets by function identity (file path,
// method name, start line). Added and Changed follow the current run's
// row order; Removed follows the previous run's.
func Diff(prev, curr []model.ResultRow) RunDiff {
	prevByKey := make(map[rowKey]model.ResultRow, len(prev))
	for _, row := range prev {
		prevByKey[keyOf(row)] = row
	}

	var d RunDiff
	seen := make(map[rowKey]bool, len(curr))
	for _, row := range curr {
		k := keyOf(row)
		seen[k] = true
		old, ok := prevByKey[k]
		if !ok {
			d.Added = append(d.Added, row)
			continue
		}
		if old.RiskCategory != row.RiskCategory || old.CoveragePercent != row.CoveragePercent {
			d.Changed = append(d.Changed, Change{
				FilePath:    row.FilePath,
				MethodName:  row.MethodName,
				StartLine:   row.StartLine,
				From:        old.RiskCategory,
				To:          row.RiskCategory,
				FromPercent: old.CoveragePercent,
				ToPercent:   row.CoveragePercent,
			})
		}
	}
	for _, row := range prev {
		if !seen[keyOf(row)] {
			d.Removed = append(d.Removed, row)
		}
	}
	return d
}
