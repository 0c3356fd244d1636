// Package aggregate joins smell predictions with line coverage and
// emits risk-annotated result rows, one repository at a time. A
// session validates its input, collects coverage exactly once per
// repository, attributes it onto every function span, and derives the
// hidden-risk shortlist. Repositories are isolated: a failure in one
// never affects another, and a failed repository produces no rows.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/risklab/covrisk/internal/config"
	"github.com/risklab/covrisk/internal/coverage"
	"github.com/risklab/covrisk/internal/model"
	"github.com/risklab/covrisk/internal/recommend"
	"github.com/risklab/covrisk/internal/risk"
)

// Session runs the aggregation pipeline for one or more repositories
// with a fixed configuration and collector.
type Session struct {
	cfg       *config.Config
	collector Collector
}

// NewSession builds a session. The collector is injected so tests and
// CI wiring control how coverage is produced.
func NewSession(cfg *config.Config, collector Collector) *Session {
	return &Session{cfg: cfg, collector: collector}
}

// RepoResult is the outcome of one repository session.
type RepoResult struct {
	// Repo is the repository name.
	Repo string

	// Rows holds one result row per input record, in input order.
	Rows []model.ResultRow

	// TopK is the hidden-risk shortlist derived from Rows.
	TopK []model.ResultRow

	// Ambiguous counts coverage keys that matched a record path the
	// index had already resolved to an earlier key.
	Ambiguous int
}

// RepoFailure names a repository that produced no result and why.
type RepoFailure struct {
	Repo string
	Err  error
}

// ProcessRepo runs the full pipeline for one repository: validate
// smell labels, collect coverage once, attribute it per record,
// classify, and recommend. Rows come back in input order; the input
// slice is never modified. The returned error is a *ValidationError
// or *CollectError.
func (s *Session) ProcessRepo(ctx context.Context, repo string, fns []model.FunctionRecord) (*RepoResult, error) {
	records := make([]model.FunctionRecord, len(fns))
	copy(records, fns)

	// Validate before collecting: a label violation must not cost a
	// test-suite run.
	for i := range records {
		norm := model.NormalizeSmell(string(records[i].Smell))
		if !norm.Valid() {
			return nil, &ValidationError{
				Repo: repo,
				Reason: fmt.Sprintf("smell label %q at record %d (%s): must be HIGH or LOW",
					records[i].Smell, i+1, records[i].MethodName),
			}
		}
		records[i].Smell = norm
	}

	report, err := s.collector.Collect(ctx, s.cfg.Repo(repo))
	if err != nil {
		var ve *ValidationError
		var ce *CollectError
		if errors.As(err, &ve) || errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CollectError{Repo: repo, Err: err}
	}
	if report == nil {
		return nil, &CollectError{Repo: repo, Err: fmt.Errorf("collector produced no report")}
	}

	idx := coverage.BuildIndex(report)

	rows := make([]model.ResultRow, 0, len(records))
	for _, fn := range records {
		pct, bucket := coverage.Attribute(fn, idx)
		category := risk.Classify(string(fn.Smell), string(bucket))
		recs := recommend.Recommend(recommend.Input{
			RiskCategory:   string(category),
			CoverageBucket: string(bucket),
			CC:             fn.CC,
			LLOC:           fn.LLOC,
			Difficulty:     fn.Difficulty,
		})
		rows = append(rows, model.ResultRow{
			FunctionRecord:  fn,
			CoveragePercent: pct,
			CoverageBucket:  bucket,
			RiskCategory:    category,
			Recommendations: recs,
		})
	}

	return &RepoResult{
		Repo:      repo,
		Rows:      rows,
		TopK:      TopK(rows, s.cfg.Analysis.TopK),
		Ambiguous: idx.AmbiguousMatches(),
	}, nil
}

// ProcessAll runs every repository session in sorted name order.
// Failures are collected per repository; the remaining repositories
// still run.
func (s *Session) ProcessAll(ctx context.Context, repos map[string][]model.FunctionRecord) ([]RepoResult, []RepoFailure) {
	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []RepoResult
	var failures []RepoFailure
	for _, name := range names {
		res, err := s.ProcessRepo(ctx, name, repos[name])
		if err != nil {
			failures = append(failures, RepoFailure{Repo: name, Err: err})
			continue
		}
		results = append(results, *res)
	}
	return results, failures
}
