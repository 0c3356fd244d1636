package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/risklab/covrisk/internal/aggregate"
	"github.com/risklab/covrisk/internal/model"
)

// WriteText writes results as human-readable styled text. Output uses
// lipgloss for color when attached to a TTY and degrades to plain
// text for pipes and CI.
func WriteText(w io.Writer, results []aggregate.RepoResult, failures []aggregate.RepoFailure) error {
	s := DefaultStyles()

	if len(results) == 0 && len(failures) == 0 {
		fmt.Fprintln(w, s.Muted.Render("No repositories analyzed."))
		return nil
	}

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeRepo(w, res, s)
	}

	for _, f := range failures {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n",
			s.Fail.Render(fmt.Sprintf("=== %s FAILED ===", f.Repo)), f.Err)
	}

	hidden, total := 0, 0
	for _, res := range results {
		total += len(res.Rows)
		for _, row := range res.Rows {
			if row.RiskCategory == model.HiddenRisk {
				hidden++
			}
		}
	}
	fmt.Fprintf(w, "\n%s\n", s.Header.Render(fmt.Sprintf(
		"%d repository(ies) analyzed, %d function(s), %d hidden risk",
		len(results), total, hidden)))

	return nil
}

func writeRepo(w io.Writer, res aggregate.RepoResult, s Styles) {
	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", res.Repo)))

	if len(res.Rows) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    No functions in dataset."))
		return
	}

	const maxMethod, maxFile = 20, 22
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, []string{
			string(r.RiskCategory),
			formatFloat(r.CoveragePercent) + "%",
			truncate(r.MethodName, maxMethod),
			truncate(shortPath(r.FilePath), maxFile),
		})
	}

	t := table.New().
		Width(78).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			// Color the risk column by category.
			if col == 0 && row >= 0 && row < len(rows) {
				return s.RiskStyle(rows[row][0])
			}
			return s.TableCell
		}).
		Headers("RISK", "COVERAGE", "FUNCTION", "FILE").
		Rows(rows...)

	fmt.Fprintln(w, t)

	counts := make(map[model.RiskCategory]int)
	for _, r := range res.Rows {
		counts[r.RiskCategory]++
	}
	var parts []string
	for _, cat := range []model.RiskCategory{
		model.HiddenRisk, model.RefactorCandidate,
		model.LowValue, model.SafeZone,
	} {
		if c, ok := counts[cat]; ok {
			parts = append(parts, s.RiskStyle(string(cat)).Render(fmt.Sprintf("%s: %d", cat, c)))
		}
	}
	fmt.Fprintf(w, "    Summary: %s\n", strings.Join(parts, ", "))

	if res.Ambiguous > 0 {
		fmt.Fprintln(w, s.Muted.Render(fmt.Sprintf(
			"    %d ambiguous coverage path match(es); first report entry wins.", res.Ambiguous)))
	}

	if len(res.TopK) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.Header.Render(
			fmt.Sprintf("--- Hidden Risk Shortlist (top %d) ---", len(res.TopK))))
		for i, r := range res.TopK {
			score := "-"
			if r.Confidence != nil {
				score = formatFloat(*r.Confidence)
			}
			fmt.Fprintf(w, "  %d. %s  %s  %s\n",
				i+1, score, r.MethodName,
				s.Muted.Render(fmt.Sprintf("(%s:%d)", shortPath(r.FilePath), r.StartLine)))
		}
	}
}

// shortPath keeps the last three path components so table cells stay
// narrow.
func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
