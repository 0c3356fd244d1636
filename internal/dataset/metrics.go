package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/risklab/covrisk/internal/model"
)

// metricsHeader is the column set extractors emit. It is a readable
// subset of the classifier's training schema; ReadPredictions
// understands the same aliases.
var metricsHeader = []string{
	"File_Path", "Method_Name", "start_line", "end_line",
	"CC", "lloc", "scloc", "difficulty",
}

// MetricsRecord is one extracted function plus its source-line count.
type MetricsRecord struct {
	model.FunctionRecord

	// SCLOC is the physical source-line count of the span.
	SCLOC int
}

// WriteMetricsCSV writes extractor output in the dataset schema. Rows
// keep their input order.
func WriteMetricsCSV(w io.Writer, records []MetricsRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricsHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.FilePath,
			rec.MethodName,
			strconv.Itoa(rec.StartLine),
			strconv.Itoa(rec.EndLine),
			strconv.Itoa(rec.CC),
			strconv.Itoa(rec.LLOC),
			strconv.Itoa(rec.SCLOC),
			strconv.FormatFloat(rec.Difficulty, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row for %s: %w", rec.MethodName, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
