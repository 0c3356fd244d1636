// Package model defines the record types, enums, and coverage report
// structures shared across the covrisk pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SmellLabel is the externally-produced classification of a function
// as HIGH or LOW complexity/maintainability risk.
type SmellLabel string

// Canonical smell labels. Anything else fails input validation.
const (
	SmellHigh SmellLabel = "HIGH"
	SmellLow  SmellLabel = "LOW"
)

// NormalizeSmell upper-cases a raw label. It does not validate;
// validation happens at aggregation time so the error can name the
// offending record.
func NormalizeSmell(raw string) SmellLabel {
	return SmellLabel(strings.ToUpper(strings.TrimSpace(raw)))
}

// Valid reports whether the label is one of the canonical values.
func (s SmellLabel) Valid() bool {
	return s == SmellHigh || s == SmellLow
}

// CoverageBucket is the discretized tier of test-line coverage for a
// function span.
type CoverageBucket string

// Coverage bucket constants, ordered from no coverage to high.
const (
	BucketZero   CoverageBucket = "ZERO"
	BucketLow    CoverageBucket = "LOW"
	BucketMedium CoverageBucket = "MEDIUM"
	BucketHigh   CoverageBucket = "HIGH"
)

// RiskCategory is the joint classification of a smell label and a
// coverage bucket.
type RiskCategory string

// Risk category constants. HiddenRisk is the primary actionable
// output: complex functions the test suite barely touches.
const (
	HiddenRisk        RiskCategory = "Hidden Risk"
	RefactorCandidate RiskCategory = "Refactor Candidate"
	LowValue          RiskCategory = "Low Value"
	SafeZone          RiskCategory = "Safe Zone"
)

// FunctionRecord is the unit of attribution: one function span plus
// its static metrics and smell label.
type FunctionRecord struct {
	// RepoName is the owning repository, derived by splitting the
	// dataset path on the workspace marker directory.
	RepoName string `json:"repo_name"`

	// FilePath is the repository-relative path, forward-slash
	// normalized. Together with MethodName and StartLine it
	// identifies the function.
	FilePath string `json:"file_path"`

	// MethodName is the function or method name as reported by the
	// metrics extractor.
	MethodName string `json:"method_name"`

	// StartLine and EndLine delimit the 1-based inclusive source
	// span. Zero means the extractor did not report the field;
	// spans with StartLine > EndLine degrade to zero coverage.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// CC is cyclomatic complexity. Advisory only: consumed by the
	// recommendation rules, never by risk classification.
	CC int `json:"cc"`

	// LLOC is the logical lines of code count.
	LLOC int `json:"lloc"`

	// Difficulty is the Halstead difficulty metric. Zero when the
	// extractor does not compute it.
	Difficulty float64 `json:"difficulty"`

	// Smell is the externally-produced label. Validated against the
	// canonical set at aggregation time.
	Smell SmellLabel `json:"smell_label"`

	// Confidence is the classifier confidence in [0,1]. Nil when
	// the predictions dataset carries no confidence column.
	Confidence *float64 `json:"confidence,omitempty"`
}

// SpanValid reports whether the record has a usable line span.
func (f FunctionRecord) SpanValid() bool {
	return f.StartLine > 0 && f.EndLine > 0 && f.StartLine <= f.EndLine
}

// ResultRow is a FunctionRecord enriched with coverage attribution,
// risk classification, and test recommendations.
type ResultRow struct {
	FunctionRecord

	// CoveragePercent is the share of span lines executed by tests,
	// rounded to two decimals, in [0,100].
	CoveragePercent float64 `json:"coverage_percent"`

	// CoverageBucket is the discretized coverage tier.
	CoverageBucket CoverageBucket `json:"coverage_bucket"`

	// RiskCategory is the joint smell/coverage classification.
	RiskCategory RiskCategory `json:"risk_category"`

	// Recommendations is the ordered list of suggested testing
	// actions. Serialized as a single "; "-joined string in CSV.
	Recommendations []string `json:"recommendations"`
}

// FileCoverage is the per-file entry of a raw coverage report.
type FileCoverage struct {
	// ExecutedLines holds the 1-based line numbers executed at
	// least once while the test suite ran. Order is not
	// significant.
	ExecutedLines []int `json:"executed_lines"`
}

// RawCoverageReport is the report produced by a coverage collector:
// a mapping from reported file key to executed lines. File keys may
// be absolute, repo-relative, or tool-relative; consumers match them
// by suffix.
//
// Keys preserves the order in which file keys appeared in the source
// document. Suffix-match ambiguity is resolved by first match in that
// order, so the order must survive decoding; Go map iteration alone
// would randomize it between runs.
type RawCoverageReport struct {
	Files map[string]FileCoverage
	Keys  []string
}

// UnmarshalJSON decodes a coverage-JSON document while recording the
// document order of the file keys.
func (r *RawCoverageReport) UnmarshalJSON(data []byte) error {
	var doc struct {
		Files json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Files == nil {
		return fmt.Errorf("coverage report has no \"files\" mapping")
	}

	keys, err := objectKeys(doc.Files)
	if err != nil {
		return fmt.Errorf("coverage report files mapping: %w", err)
	}

	files := make(map[string]FileCoverage, len(keys))
	if err := json.Unmarshal(doc.Files, &files); err != nil {
		return fmt.Errorf("coverage report files mapping: %w", err)
	}

	r.Files = files
	r.Keys = keys
	return nil
}

// MarshalJSON encodes the report back into the coverage-JSON shape.
// Key order is not preserved on encode; decoding re-establishes it.
func (r RawCoverageReport) MarshalJSON() ([]byte, error) {
	files := r.Files
	if files == nil {
		files = map[string]FileCoverage{}
	}
	return json.Marshal(struct {
		Files map[string]FileCoverage `json:"files"`
	}{Files: files})
}

// objectKeys walks the top level of a JSON object and returns its
// keys in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)

		// Skip the value.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// RunMeta holds metadata for one pipeline run.
type RunMeta struct {
	ToolVersion  string        `json:"tool_version"`
	Repositories int           `json:"repositories"`
	Timestamp    time.Time     `json:"-"`
	Duration     time.Duration `json:"-"`
}

// MarshalJSON encodes the duration as milliseconds and the timestamp
// as RFC 3339. The timestamp is omitted when zero so reports built
// from identical inputs stay byte-comparable in tests.
func (m RunMeta) MarshalJSON() ([]byte, error) {
	type Alias RunMeta
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, so run records stored
// as JSON round-trip.
func (m *RunMeta) UnmarshalJSON(data []byte) error {
	type Alias RunMeta
	aux := &struct {
		*Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp"`
	}{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	m.Duration = time.Duration(aux.DurationMS) * time.Millisecond
	if aux.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("run timestamp: %w", err)
		}
		m.Timestamp = ts
	}
	return nil
}
