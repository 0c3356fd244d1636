package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/risklab/covrisk/internal/aggregate"
	"github.com/risklab/covrisk/internal/config"
	"github.com/risklab/covrisk/internal/dataset"
	"github.com/risklab/covrisk/internal/extract"
	"github.com/risklab/covrisk/internal/model"
	"github.com/risklab/covrisk/internal/report"
	"github.com/risklab/covrisk/internal/store"
	"github.com/risklab/covrisk/internal/watch"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	var (
		cfgPath string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "covrisk",
		Short: "covrisk attributes test coverage onto smell predictions",
		Long: `covrisk joins machine-learned code smell predictions with test
line coverage and classifies every function into a risk category.
Complex functions the test suite barely touches surface as Hidden
Risk, ranked per repository in a fixed-size shortlist.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(charmlog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "",
		"config file (default: .covrisk.yaml in the working directory)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(newAnalyzeCmd(&cfgPath))
	root.AddCommand(newCollectCmd(&cfgPath))
	root.AddCommand(newExtractCmd(&cfgPath))
	root.AddCommand(newWatchCmd(&cfgPath))
	root.AddCommand(newRunsCmd(&cfgPath))
	root.AddCommand(newSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// analyzeParams holds the parsed flags for the analyze command.
type analyzeParams struct {
	cfg           *config.Config
	repos         []string
	predictions   string
	format        string
	interactive   bool
	save          bool
	maxHiddenRisk int
	stdout        io.Writer
	stderr        io.Writer
}

// runAnalyze is the extracted, testable body of the analyze command.
func runAnalyze(ctx context.Context, p analyzeParams) error {
	if p.format != "text" && p.format != "json" && p.format != "csv" {
		return fmt.Errorf("invalid format %q: must be 'text', 'json', or 'csv'", p.format)
	}

	groups, order, err := loadDataset(p.cfg, p.predictions)
	if err != nil {
		return err
	}

	if len(p.repos) > 0 {
		groups, err = subsetRepos(groups, order, p.repos)
		if err != nil {
			return err
		}
	}

	collector, err := aggregate.NewCollector(p.cfg)
	if err != nil {
		return err
	}

	logger.Info("analyzing repositories", "count", len(groups), "collector", p.cfg.Collector.Kind)

	start := time.Now()
	session := aggregate.NewSession(p.cfg, collector)
	results, failures := session.ProcessAll(ctx, groups)

	for _, res := range results {
		logger.Info("repository analyzed",
			"repo", res.Repo,
			"functions", len(res.Rows),
			"hidden_risk", hiddenRiskCount(res.Rows))
		if res.Ambiguous > 0 {
			logger.Warn("ambiguous coverage path matches; first report entry wins",
				"repo", res.Repo, "count", res.Ambiguous)
		}
	}
	for _, f := range failures {
		logger.Error("repository failed", "repo", f.Repo, "err", f.Err)
	}

	meta := model.RunMeta{
		ToolVersion:  version,
		Repositories: len(results),
		Timestamp:    start,
		Duration:     time.Since(start),
	}

	if err := writeArtifacts(p.cfg, results); err != nil {
		return err
	}

	if p.save {
		if err := saveResults(p.cfg, meta, results); err != nil {
			return err
		}
	}

	if p.interactive {
		return runInteractiveResults(results, failures)
	}

	switch p.format {
	case "json":
		if err := report.WriteJSON(p.stdout, results, failures, &meta); err != nil {
			return err
		}
	case "csv":
		if err := report.WriteCSV(p.stdout, report.Flatten(results)); err != nil {
			return err
		}
	default:
		if err := report.WriteText(p.stdout, results, failures); err != nil {
			return err
		}
	}

	printCISummary(p.stderr, results, p.maxHiddenRisk)

	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for _, f := range failures {
			names = append(names, f.Repo)
		}
		return fmt.Errorf("analysis failed for %d repository(ies): %s",
			len(failures), strings.Join(names, ", "))
	}

	return checkCIThreshold(results, p.maxHiddenRisk)
}

// loadDataset reads the predictions CSV, resolves repository names from
// dataset paths, and groups records per repository.
func loadDataset(cfg *config.Config, path string) (map[string][]model.FunctionRecord, []string, error) {
	if path == "" {
		path = cfg.PredictionsPath()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening predictions dataset: %w", err)
	}
	defer f.Close()

	preds, err := dataset.ReadPredictions(f)
	if err != nil {
		return nil, nil, fmt.Errorf("predictions dataset %s: %w", path, err)
	}
	if err := dataset.AssignRepos(preds.Records, cfg.Workspace.Marker); err != nil {
		return nil, nil, fmt.Errorf("predictions dataset %s: %w", path, err)
	}

	groups, order := dataset.GroupByRepo(preds.Records)
	logger.Debug("dataset loaded", "path", path, "records", len(preds.Records),
		"repositories", len(order), "confidence", preds.HasConfidence)
	return groups, order, nil
}

// subsetRepos narrows the grouped dataset to the named repositories.
// Unknown names fail with the available set, in dataset order.
func subsetRepos(groups map[string][]model.FunctionRecord, order, names []string) (map[string][]model.FunctionRecord, error) {
	subset := make(map[string][]model.FunctionRecord, len(names))
	for _, name := range names {
		fns, ok := groups[name]
		if !ok {
			return nil, fmt.Errorf("repository %q not found in dataset (available: %s)",
				name, strings.Join(order, ", "))
		}
		subset[name] = fns
	}
	return subset, nil
}

// writeArtifacts persists the result table and the shortlist to the
// processed-data directory.
func writeArtifacts(cfg *config.Config, results []aggregate.RepoResult) error {
	if err := os.MkdirAll(cfg.ProcessedDir(), 0755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	resultsFile, err := os.Create(cfg.ResultsPath())
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer resultsFile.Close()
	if err := report.WriteCSV(resultsFile, report.Flatten(results)); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.ResultsPath(), err)
	}

	topkFile, err := os.Create(cfg.TopKPath())
	if err != nil {
		return fmt.Errorf("creating shortlist file: %w", err)
	}
	defer topkFile.Close()
	if err := report.WriteTopKCSV(topkFile, results); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.TopKPath(), err)
	}

	logger.Info("artifacts written", "results", cfg.ResultsPath(), "topk", cfg.TopKPath())
	return nil
}

// saveResults archives each repository's run in the history store.
func saveResults(cfg *config.Config, meta model.RunMeta, results []aggregate.RepoResult) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path not configured: set store.path in the config file or COVRISK_STORE")
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, res := range results {
		seq, err := s.SaveRun(res.Repo, meta, res.Rows, res.TopK)
		if err != nil {
			return err
		}
		logger.Info("run archived", "repo", res.Repo, "sequence", seq)
	}
	return nil
}

// hiddenRiskCount counts rows classified as Hidden Risk.
func hiddenRiskCount(rows []model.ResultRow) int {
	n := 0
	for _, row := range rows {
		if row.RiskCategory == model.HiddenRisk {
			n++
		}
	}
	return n
}

func totalHiddenRisk(results []aggregate.RepoResult) int {
	n := 0
	for _, res := range results {
		n += hiddenRiskCount(res.Rows)
	}
	return n
}

// printCISummary prints a one-line CI summary to stderr when the
// threshold flag is set.
func printCISummary(w io.Writer, results []aggregate.RepoResult, maxHiddenRisk int) {
	if maxHiddenRisk <= 0 {
		return
	}

	var parts []string
	total := totalHiddenRisk(results)
	status := "PASS"
	if total > maxHiddenRisk {
		status = "FAIL"
	}
	parts = append(parts, fmt.Sprintf("Hidden Risk: %d/%d (%s)", total, maxHiddenRisk, status))
	fmt.Fprintln(w, strings.Join(parts, " | "))
}

// checkCIThreshold returns an error if the hidden-risk gate is exceeded.
func checkCIThreshold(results []aggregate.RepoResult, maxHiddenRisk int) error {
	if maxHiddenRisk <= 0 {
		return nil
	}
	if total := totalHiddenRisk(results); total > maxHiddenRisk {
		return fmt.Errorf("hidden-risk count %d exceeds maximum %d", total, maxHiddenRisk)
	}
	return nil
}

func newAnalyzeCmd(cfgPath *string) *cobra.Command {
	var (
		predictions   string
		format        string
		interactive   bool
		save          bool
		maxHiddenRisk int
	)

	cmd := &cobra.Command{
		Use:   "analyze [repos...]",
		Short: "Attribute coverage onto smell predictions and classify risk",
		Long: `Analyze joins the smell-predictions dataset with per-repository
line coverage, classifies every function into a risk category, and
writes the result table plus the hidden-risk shortlist.

With no arguments every repository in the dataset is analyzed;
naming repositories restricts the run to those.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), analyzeParams{
				cfg:           cfg,
				repos:         args,
				predictions:   predictions,
				format:        format,
				interactive:   interactive,
				save:          save,
				maxHiddenRisk: maxHiddenRisk,
				stdout:        os.Stdout,
				stderr:        os.Stderr,
			})
		},
	}

	cmd.Flags().StringVar(&predictions, "predictions", "",
		"predictions dataset (default: <data>/processed/ml_smell_predictions.csv)")
	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text, json, or csv")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing results")
	cmd.Flags().BoolVar(&save, "save", false,
		"archive this run in the history store")
	cmd.Flags().IntVar(&maxHiddenRisk, "max-hidden-risk", 0,
		"fail if the hidden-risk count exceeds this (0 = no limit)")

	return cmd
}

// collectParams holds the parsed flags for the collect command.
type collectParams struct {
	cfg    *config.Config
	repo   string
	stdout io.Writer
	stderr io.Writer
}

// runCollect is the extracted, testable body of the collect command.
func runCollect(ctx context.Context, p collectParams) error {
	collector, err := aggregate.NewCollector(p.cfg)
	if err != nil {
		return err
	}

	logger.Info("collecting coverage", "repo", p.repo, "kind", p.cfg.Collector.Kind)

	rep, err := collector.Collect(ctx, p.cfg.Repo(p.repo))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.cfg.Data.Dir, 0755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding coverage report: %w", err)
	}
	path := p.cfg.CoveragePath(p.repo)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing coverage report: %w", err)
	}

	logger.Info("coverage written", "path", path, "files", len(rep.Files))
	return nil
}

func newCollectCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect <repo>",
		Short: "Collect line coverage for one repository",
		Long: `Collect runs the configured coverage collector for a repository
and stores the normalized report under the data directory, where
analyze picks it up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return runCollect(cmd.Context(), collectParams{
				cfg:    cfg,
				repo:   args[0],
				stdout: os.Stdout,
				stderr: os.Stderr,
			})
		},
	}
}

// extractParams holds the parsed flags for the extract command.
type extractParams struct {
	cfg    *config.Config
	root   string
	out    string
	stdout io.Writer
	stderr io.Writer
}

// runExtract is the extracted, testable body of the extract command.
func runExtract(p extractParams) error {
	res, err := extract.Scan(p.root, p.cfg.ExcludePatterns())
	if err != nil {
		return err
	}
	for _, skipped := range res.Skipped {
		logger.Warn("skipped unparseable file", "path", skipped)
	}

	w := p.stdout
	if p.out != "" {
		f, err := os.Create(p.out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := dataset.WriteMetricsCSV(w, res.Records); err != nil {
		return err
	}

	logger.Info("functions extracted", "count", len(res.Records), "skipped", len(res.Skipped))
	return nil
}

func newExtractCmd(cfgPath *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "extract <path>",
		Short: "Extract function metrics from a source tree",
		Long: `Extract walks a source tree, measures every function (span,
complexity, logical lines), and emits the metrics dataset the
classifier consumes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return runExtract(extractParams{
				cfg:    cfg,
				root:   args[0],
				out:    out,
				stdout: os.Stdout,
				stderr: os.Stderr,
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "",
		"output file (default: stdout)")

	return cmd
}

// runWatch re-runs the analysis whenever an input file under the data
// directory changes, until ctx is canceled.
func runWatch(ctx context.Context, p analyzeParams) error {
	if _, err := os.Stat(p.cfg.Data.Dir); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}

	w, err := watch.New()
	if err != nil {
		return err
	}
	defer w.Stop()

	// Coalesce bursts: one pending re-run at a time.
	changes := make(chan string, 1)
	if err := w.Watch(p.cfg.Data.Dir, func(path string) {
		select {
		case changes <- path:
		default:
		}
	}); err != nil {
		return err
	}

	logger.Info("watching for input changes", "dir", p.cfg.Data.Dir)

	if err := runAnalyze(ctx, p); err != nil {
		logger.Error("analysis failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-changes:
			logger.Info("inputs changed", "path", path)
			if err := runAnalyze(ctx, p); err != nil {
				logger.Error("analysis failed", "err", err)
			}
		}
	}
}

func newWatchCmd(cfgPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the analysis whenever inputs change",
		Long: `Watch monitors the data directory and re-runs the analysis each
time a coverage report or dataset changes. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runWatch(ctx, analyzeParams{
				cfg:    cfg,
				format: format,
				stdout: os.Stdout,
				stderr: os.Stderr,
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text, json, or csv")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for analysis output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of covrisk analyze --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}
