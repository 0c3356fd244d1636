// Package dataset reads and writes the CSV artifacts that flow
// between pipeline stages: metrics datasets produced by extractors
// and smell predictions produced by the classifier.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/risklab/covrisk/internal/model"
)

// Predictions is a parsed smell-predictions dataset.
type Predictions struct {
	// Records holds one entry per dataset row, in file order.
	Records []model.FunctionRecord

	// HasConfidence reports whether the dataset carried an
	// ml_confidence column. Top-K sorting uses confidence as the
	// primary key only when present.
	HasConfidence bool
}

// Column aliases as emitted by the extraction stage. Headers are
// matched case-insensitively after alias normalization.
var headerAliases = map[string]string{
	"file_path":   "file_path",
	"method_name": "method_name",
	"cc":          "cc",
}

// ReadPredictions parses a predictions CSV. Required columns:
// file_path (File_Path), method_name (Method_Name), start_line,
// end_line, smell_label. Optional: cc (CC), lloc, difficulty,
// ml_confidence. Unknown columns are ignored. Smell labels are
// upper-cased here; membership validation happens at aggregation so
// the error can fail the owning repository.
func ReadPredictions(r io.Reader) (*Predictions, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("predictions dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeHeader(name)] = i
	}

	for _, required := range []string{"file_path", "method_name", "start_line", "end_line", "smell_label"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("predictions dataset missing required column %q", required)
		}
	}

	_, hasConfidence := cols["ml_confidence"]

	preds := &Predictions{HasConfidence: hasConfidence}
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum+1, err)
		}
		rowNum++

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		start, err := parseIntField(field("start_line"), "start_line", rowNum)
		if err != nil {
			return nil, err
		}
		end, err := parseIntField(field("end_line"), "end_line", rowNum)
		if err != nil {
			return nil, err
		}

		rec := model.FunctionRecord{
			FilePath:   field("file_path"),
			MethodName: field("method_name"),
			StartLine:  start,
			EndLine:    end,
			Smell:      model.NormalizeSmell(field("smell_label")),
		}

		// Optional metrics default to zero when absent or blank.
		rec.CC, _ = strconv.Atoi(field("cc"))
		rec.LLOC, _ = strconv.Atoi(field("lloc"))
		rec.Difficulty, _ = strconv.ParseFloat(field("difficulty"), 64)

		if hasConfidence {
			if s := field("ml_confidence"); s != "" {
				conf, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: ml_confidence %q is not a number", rowNum, s)
				}
				rec.Confidence = &conf
			}
		}

		preds.Records = append(preds.Records, rec)
	}

	return preds, nil
}

// parseIntField parses a required integer column. Blank values stay
// zero so degenerate spans flow through as the documented
// degrade-to-zero case rather than a parse failure.
func parseIntField(s, name string, row int) (int, error) {
	if s == "" {
		return 0, nil
	}
	// Extractors sometimes emit line numbers as floats ("12.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), nil
	}
	return 0, fmt.Errorf("row %d: %s %q is not a number", row, name, s)
}

// normalizeHeader lower-cases a header cell and applies the known
// aliases (File_Path, Method_Name, CC).
func normalizeHeader(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := headerAliases[lower]; ok {
		return canonical
	}
	return lower
}
