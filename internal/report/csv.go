package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/risklab/covrisk/internal/aggregate"
	"github.com/risklab/covrisk/internal/model"
)

// Header is the column set of the result tables, in output order.
var Header = []string{
	"repo_name", "file_path", "method_name", "start_line", "end_line",
	"cc", "lloc", "difficulty", "smell_label", "coverage_percent",
	"coverage_bucket", "risk_category", "recommendations",
}

// WriteCSV writes result rows in the order given, one row per
// function under the fixed column set.
func WriteCSV(w io.Writer, rows []model.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTopKCSV writes the hidden-risk shortlists of all repositories
// under the same schema as WriteCSV, keeping each repository's
// shortlist order.
func WriteTopKCSV(w io.Writer, results []aggregate.RepoResult) error {
	var rows []model.ResultRow
	for _, res := range results {
		rows = append(rows, res.TopK...)
	}
	return WriteCSV(w, rows)
}

// Flatten concatenates per-repository rows in result order, forming
// the global result table.
func Flatten(results []aggregate.RepoResult) []model.ResultRow {
	var rows []model.ResultRow
	for _, res := range results {
		rows = append(rows, res.Rows...)
	}
	return rows
}

func csvRecord(row model.ResultRow) []string {
	return []string{
		row.RepoName,
		row.FilePath,
		row.MethodName,
		strconv.Itoa(row.StartLine),
		strconv.Itoa(row.EndLine),
		strconv.Itoa(row.CC),
		strconv.Itoa(row.LLOC),
		formatFloat(row.Difficulty),
		string(row.Smell),
		formatFloat(row.CoveragePercent),
		string(row.CoverageBucket),
		string(row.RiskCategory),
		strings.Join(row.Recommendations, "; "),
	}
}

// formatFloat renders floats with the fewest digits that round-trip,
// so reruns of identical inputs stay byte-identical.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
