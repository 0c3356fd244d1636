package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklab/covrisk/internal/model"
)

func diffRow(file, method string, start int, category model.RiskCategory, percent float64) model.ResultRow {
	return model.ResultRow{
		FunctionRecord: model.FunctionRecord{
			RepoName:   "flask",
			FilePath:   file,
			MethodName: method,
			StartLine:  start,
			EndLine:    start + 10,
			Smell:      model.SmellHigh,
		},
		CoveragePercent: percent,
		CoverageBucket:  model.BucketLow,
		RiskCategory:    category,
	}
}

func TestDiff_AddedRemovedChanged(t *testing.T) {
	prev := []model.ResultRow{
		diffRow("src/app.py", "dispatch", 10, model.HiddenRisk, 5),
		diffRow("src/app.py", "teardown", 80, model.SafeZone, 92),
	}
	curr := []model.ResultRow{
		diffRow("src/app.py", "dispatch", 10, model.RefactorCandidate, 64),
		diffRow("src/cli.py", "main", 5, model.HiddenRisk, 0),
	}

	d := Diff(prev, curr)

	require.Len(t, d.Added, 1)
	assert.Equal(t, "main", d.Added[0].MethodName)

	require.Len(t, d.Removed, 1)
	assert.Equal(t, "teardown", d.Removed[0].MethodName)

	require.Len(t, d.Changed, 1)
	ch := d.Changed[0]
	assert.Equal(t, "dispatch", ch.MethodName)
	assert.Equal(t, model.HiddenRisk, ch.From)
	assert.Equal(t, model.RefactorCandidate, ch.To)
	assert.Equal(t, 5.0, ch.FromPercent)
	assert.Equal(t, 64.0, ch.ToPercent)
}

func TestDiff_IdenticalRunsAreEmpty(t *testing.T) {
	rows := []model.ResultRow{
		diffRow("src/app.py", "dispatch", 10, model.HiddenRisk, 5),
		diffRow("src/app.py", "teardown", 80, model.SafeZone, 92),
	}

	d := Diff(rows, rows)
	assert.True(t, d.Empty())
}

func TestDiff_PercentMoveWithinCategory(t *testing.T) {
	prev := []model.ResultRow{diffRow("src/app.py", "dispatch", 10, model.HiddenRisk, 5)}
	curr := []model.ResultRow{diffRow("src/app.py", "dispatch", 10, model.HiddenRisk, 12.5)}

	d := Diff(prev, curr)

	require.Len(t, d.Changed, 1)
	assert.Equal(t, model.HiddenRisk, d.Changed[0].From)
	assert.Equal(t, model.HiddenRisk, d.Changed[0].To)
	assert.Equal(t, 12.5, d.Changed[0].ToPercent)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

func TestDiff_MovedSpanReadsAsAddAndRemove(t *testing.T) {
	prev := []model.ResultRow{diffRow("src/app.py", "dispatch", 10, model.HiddenRisk, 5)}
	curr := []model.ResultRow{diffRow("src/app.py", "dispatch", 31, model.HiddenRisk, 5)}

	d := Diff(prev, curr)

	require.Len(t, d.Added, 1)
	require.Len(t, d.Removed, 1)
	assert.Empty(t, d.Changed)
}

func TestDiff_OrderFollowsInput(t *testing.T) {
	curr := []model.ResultRow{
		diffRow("src/z.py", "zz", 1, model.HiddenRisk, 0),
		diffRow("src/a.py", "aa", 1, model.HiddenRisk, 0),
	}

	d := Diff(nil, curr)

	require.Len(t, d.Added, 2)
	assert.Equal(t, "zz", d.Added[0].MethodName)
	assert.Equal(t, "aa", d.Added[1].MethodName)
}
