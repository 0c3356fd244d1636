package aggregate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/risklab/covrisk/internal/config"
	"github.com/risklab/covrisk/internal/model"
)

// fakeCollector returns a fixed report and counts invocations.
type fakeCollector struct {
	report *model.RawCoverageReport
	err    error
	calls  int
}

func (f *fakeCollector) Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

// flakyCollector fails for one named repository and succeeds for the
// rest.
type flakyCollector struct {
	bad    string
	report *model.RawCoverageReport
}

func (f *flakyCollector) Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error) {
	if repo.Name == f.bad {
		return nil, fmt.Errorf("suite did not start")
	}
	return f.report, nil
}

func singleFileReport(key string, lines ...int) *model.RawCoverageReport {
	return &model.RawCoverageReport{
		Files: map[string]model.FileCoverage{key: {ExecutedLines: lines}},
		Keys:  []string{key},
	}
}

func fn(file, method string, start, end int, smell model.SmellLabel) model.FunctionRecord {
	return model.FunctionRecord{
		RepoName:   "demo",
		FilePath:   file,
		MethodName: method,
		StartLine:  start,
		EndLine:    end,
		Smell:      smell,
	}
}

func highRow(method string, lloc int, confidence *float64) model.ResultRow {
	return model.ResultRow{FunctionRecord: model.FunctionRecord{
		MethodName: method,
		LLOC:       lloc,
		Smell:      model.SmellHigh,
		Confidence: confidence,
	}}
}

func conf(v float64) *float64 { return &v }

func TestProcessRepo_Rows(t *testing.T) {
	collector := &fakeCollector{report: singleFileReport("/work/demo/src/app.py", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	s := NewSession(config.Default(), collector)

	fns := []model.FunctionRecord{
		fn("src/app.py", "handler", 1, 10, model.SmellHigh),
		fn("src/app.py", "helper", 11, 20, model.SmellLow),
	}
	res, err := s.ProcessRepo(context.Background(), "demo", fns)
	if err != nil {
		t.Fatalf("ProcessRepo() error: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}

	first := res.Rows[0]
	if first.MethodName != "handler" {
		t.Errorf("row order changed: first row is %q", first.MethodName)
	}
	if first.CoveragePercent != 100 || first.CoverageBucket != model.BucketHigh {
		t.Errorf("handler coverage = (%v, %v), want (100, HIGH)", first.CoveragePercent, first.CoverageBucket)
	}
	if first.RiskCategory != model.RefactorCandidate {
		t.Errorf("handler risk = %v, want Refactor Candidate", first.RiskCategory)
	}

	second := res.Rows[1]
	if second.CoveragePercent != 0 || second.CoverageBucket != model.BucketZero {
		t.Errorf("helper coverage = (%v, %v), want (0, ZERO)", second.CoveragePercent, second.CoverageBucket)
	}
	if second.RiskCategory != model.LowValue {
		t.Errorf("helper risk = %v, want Low Value", second.RiskCategory)
	}
	if len(second.Recommendations) == 0 {
		t.Error("every row should carry at least one recommendation")
	}
}

func TestProcessRepo_CollectsOnce(t *testing.T) {
	collector := &fakeCollector{report: singleFileReport("src/app.py", 1, 2, 3)}
	s := NewSession(config.Default(), collector)

	fns := []model.FunctionRecord{
		fn("src/app.py", "a", 1, 3, model.SmellHigh),
		fn("src/app.py", "b", 4, 6, model.SmellHigh),
		fn("src/other.py", "c", 1, 9, model.SmellLow),
	}
	if _, err := s.ProcessRepo(context.Background(), "demo", fns); err != nil {
		t.Fatalf("ProcessRepo() error: %v", err)
	}
	if collector.calls != 1 {
		t.Errorf("collector invoked %d times, want exactly 1", collector.calls)
	}
}

func TestProcessRepo_ValidationFailsBeforeCollect(t *testing.T) {
	collector := &fakeCollector{report: singleFileReport("src/app.py", 1)}
	s := NewSession(config.Default(), collector)

	fns := []model.FunctionRecord{
		fn("src/app.py", "ok", 1, 2, model.SmellHigh),
		fn("src/app.py", "broken", 3, 4, model.SmellLabel("MEDIUM")),
	}
	_, err := s.ProcessRepo(context.Background(), "demo", fns)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if !strings.Contains(err.Error(), `"MEDIUM"`) {
		t.Errorf("error = %v, want the offending label named", err)
	}
	if collector.calls != 0 {
		t.Errorf("collector invoked %d times before validation, want 0", collector.calls)
	}
}

func TestProcessRepo_WrapsCollectorError(t *testing.T) {
	errBoom := errors.New("boom")
	s := NewSession(config.Default(), &fakeCollector{err: errBoom})

	_, err := s.ProcessRepo(context.Background(), "demo", []model.FunctionRecord{
		fn("src/app.py", "a", 1, 2, model.SmellHigh),
	})
	var ce *CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *CollectError", err)
	}
	if ce.Repo != "demo" {
		t.Errorf("CollectError.Repo = %q, want demo", ce.Repo)
	}
	if !errors.Is(err, errBoom) {
		t.Error("cause should be reachable through the wrap chain")
	}
}

func TestProcessRepo_TypedCollectorErrorPassesThrough(t *testing.T) {
	orig := &ValidationError{Repo: "demo", Reason: "report has no files mapping"}
	s := NewSession(config.Default(), &fakeCollector{err: orig})

	_, err := s.ProcessRepo(context.Background(), "demo", []model.FunctionRecord{
		fn("src/app.py", "a", 1, 2, model.SmellHigh),
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	var ce *CollectError
	if errors.As(err, &ce) {
		t.Error("validation errors must not be rewrapped as collect errors")
	}
}

func TestProcessRepo_NilReport(t *testing.T) {
	s := NewSession(config.Default(), &fakeCollector{})

	_, err := s.ProcessRepo(context.Background(), "demo", []model.FunctionRecord{
		fn("src/app.py", "a", 1, 2, model.SmellHigh),
	})
	var ce *CollectError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *CollectError", err)
	}
	if !strings.Contains(err.Error(), "no report") {
		t.Errorf("error = %v, want mention of missing report", err)
	}
}

func TestProcessRepo_Idempotent(t *testing.T) {
	fns := []model.FunctionRecord{
		fn("src/app.py", "a", 1, 3, model.SmellHigh),
		fn("src/app.py", "b", 4, 9, model.SmellHigh),
		fn("src/util.py", "c", 1, 4, model.SmellLow),
	}

	run := func() *RepoResult {
		collector := &fakeCollector{report: singleFileReport("/w/demo/src/app.py", 1, 2, 5, 6)}
		s := NewSession(config.Default(), collector)
		res, err := s.ProcessRepo(context.Background(), "demo", fns)
		if err != nil {
			t.Fatalf("ProcessRepo() error: %v", err)
		}
		return res
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Error("identical inputs must yield identical rows")
	}
	if !reflect.DeepEqual(first.TopK, second.TopK) {
		t.Error("identical inputs must yield identical top-K selection")
	}
}

func TestProcessRepo_InputSliceUntouched(t *testing.T) {
	collector := &fakeCollector{report: singleFileReport("src/app.py", 1, 2)}
	s := NewSession(config.Default(), collector)

	fns := []model.FunctionRecord{fn("src/app.py", "a", 1, 2, model.SmellLabel("high"))}
	res, err := s.ProcessRepo(context.Background(), "demo", fns)
	if err != nil {
		t.Fatalf("ProcessRepo() error: %v", err)
	}
	if fns[0].Smell != "high" {
		t.Errorf("caller slice modified: smell = %q", fns[0].Smell)
	}
	if res.Rows[0].Smell != model.SmellHigh {
		t.Errorf("result smell = %q, want normalized HIGH", res.Rows[0].Smell)
	}
}

func TestProcessRepo_AmbiguityCounted(t *testing.T) {
	report := &model.RawCoverageReport{
		Files: map[string]model.FileCoverage{
			"/a/util.py": {ExecutedLines: []int{1}},
			"/b/util.py": {ExecutedLines: []int{2}},
		},
		Keys: []string{"/a/util.py", "/b/util.py"},
	}
	s := NewSession(config.Default(), &fakeCollector{report: report})

	res, err := s.ProcessRepo(context.Background(), "demo", []model.FunctionRecord{
		fn("util.py", "a", 1, 2, model.SmellHigh),
	})
	if err != nil {
		t.Fatalf("ProcessRepo() error: %v", err)
	}
	if res.Ambiguous != 1 {
		t.Errorf("Ambiguous = %d, want 1", res.Ambiguous)
	}
}

func TestTopK_LargestLLOC(t *testing.T) {
	var rows []model.ResultRow
	for i := 1; i <= 50; i++ {
		rows = append(rows, highRow(fmt.Sprintf("f%02d", i), i, nil))
	}

	top := TopK(rows, 30)
	if len(top) != 30 {
		t.Fatalf("got %d rows, want 30", len(top))
	}
	if top[0].LLOC != 50 || top[29].LLOC != 21 {
		t.Errorf("range = [%d, %d], want [50, 21]", top[0].LLOC, top[29].LLOC)
	}
	for i := 1; i < len(top); i++ {
		if top[i].LLOC > top[i-1].LLOC {
			t.Fatalf("not descending at %d: %d > %d", i, top[i].LLOC, top[i-1].LLOC)
		}
	}
}

func TestTopK_ConfidenceBeforeLLOC(t *testing.T) {
	rows := []model.ResultRow{
		highRow("mid", 100, conf(0.2)),
		highRow("best", 1, conf(0.9)),
		highRow("unscored", 500, nil),
	}

	top := TopK(rows, 30)
	got := []string{top[0].MethodName, top[1].MethodName, top[2].MethodName}
	want := []string{"best", "mid", "unscored"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTopK_FiltersToHighSmell(t *testing.T) {
	rows := []model.ResultRow{
		highRow("keep", 10, nil),
		{FunctionRecord: model.FunctionRecord{MethodName: "drop", LLOC: 99, Smell: model.SmellLow}},
	}

	top := TopK(rows, 30)
	if len(top) != 1 || top[0].MethodName != "keep" {
		t.Errorf("top = %v, want only the HIGH row", top)
	}
}

func TestTopK_TiesKeepInputOrder(t *testing.T) {
	rows := []model.ResultRow{
		highRow("a", 10, conf(0.5)),
		highRow("b", 10, conf(0.5)),
		highRow("c", 10, conf(0.5)),
	}

	top := TopK(rows, 2)
	if top[0].MethodName != "a" || top[1].MethodName != "b" {
		t.Errorf("tie order = [%s %s], want [a b]", top[0].MethodName, top[1].MethodName)
	}
}

func TestTopK_InputUnmodified(t *testing.T) {
	rows := []model.ResultRow{
		highRow("a", 1, nil),
		highRow("b", 2, nil),
		highRow("c", 3, nil),
	}

	TopK(rows, 30)
	if rows[0].MethodName != "a" || rows[2].MethodName != "c" {
		t.Error("TopK reordered its input slice")
	}
}

func TestProcessAll_SortedAndIsolated(t *testing.T) {
	repos := map[string][]model.FunctionRecord{
		"zeta":  {fn("src/z.py", "z", 1, 2, model.SmellHigh)},
		"alpha": {fn("src/a.py", "a", 1, 2, model.SmellLow)},
		"mid":   {fn("src/m.py", "m", 1, 2, model.SmellHigh)},
	}
	collector := &flakyCollector{bad: "mid", report: singleFileReport("src/x.py", 1)}
	s := NewSession(config.Default(), collector)

	results, failures := s.ProcessAll(context.Background(), repos)

	var names []string
	for _, r := range results {
		names = append(names, r.Repo)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Errorf("result order = %v, want [alpha zeta]", names)
	}

	if len(failures) != 1 || failures[0].Repo != "mid" {
		t.Fatalf("failures = %v, want exactly mid", failures)
	}
	var ce *CollectError
	if !errors.As(failures[0].Err, &ce) {
		t.Errorf("failure error type = %T, want *CollectError", failures[0].Err)
	}
}
