// Package report renders aggregation results: the CSV artifacts the
// pipeline publishes, a versioned JSON document with an embedded
// schema, and styled terminal text.
package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/risklab/covrisk/internal/aggregate"
	"github.com/risklab/covrisk/internal/model"
)

// SchemaVersion identifies the JSON report structure.
const SchemaVersion = "1.0.0"

// JSONReport is the top-level JSON output structure.
type JSONReport struct {
	SchemaVersion string         `json:"schema_version"`
	GeneratedBy   string         `json:"generated_by"`
	Run           *model.RunMeta `json:"run,omitempty"`
	Repositories  []RepoReport   `json:"repositories"`
}

// RepoReport is one repository's slice of the JSON report. A failed
// repository carries its failure message and empty row sets.
type RepoReport struct {
	Repo    string            `json:"repo"`
	Rows    []model.ResultRow `json:"rows"`
	TopK    []model.ResultRow `json:"top_k"`
	Failure string            `json:"failure,omitempty"`
}

// WriteJSON writes results and failures as formatted JSON, one entry
// per repository in name order.
func WriteJSON(w io.Writer, results []aggregate.RepoResult, failures []aggregate.RepoFailure, run *model.RunMeta) error {
	repos := make([]RepoReport, 0, len(results)+len(failures))
	for _, res := range results {
		rows, topK := res.Rows, res.TopK
		if rows == nil {
			rows = []model.ResultRow{}
		}
		if topK == nil {
			topK = []model.ResultRow{}
		}
		repos = append(repos, RepoReport{Repo: res.Repo, Rows: rows, TopK: topK})
	}
	for _, f := range failures {
		repos = append(repos, RepoReport{
			Repo:    f.Repo,
			Rows:    []model.ResultRow{},
			TopK:    []model.ResultRow{},
			Failure: f.Err.Error(),
		})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Repo < repos[j].Repo })

	doc := JSONReport{
		SchemaVersion: SchemaVersion,
		GeneratedBy:   "covrisk",
		Run:           run,
		Repositories:  repos,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
