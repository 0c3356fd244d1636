package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/risklab/covrisk/internal/config"
	"github.com/risklab/covrisk/internal/coverage"
	"github.com/risklab/covrisk/internal/model"
)

// Collector produces one raw line-coverage report for a repository.
// Implementations own the mechanics (subprocesses, file reads); the
// session guarantees a single invocation per repository per run.
type Collector interface {
	Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error)
}

// NewCollector builds the collector selected by the configuration.
func NewCollector(cfg *config.Config) (Collector, error) {
	switch cfg.Collector.Kind {
	case "file":
		return &FileCollector{Dir: cfg.Data.Dir}, nil
	case "pytest":
		return &PytestCollector{Timeout: cfg.Collector.Timeout}, nil
	case "gotest":
		return &GoTestCollector{Timeout: cfg.Collector.Timeout}, nil
	default:
		return nil, fmt.Errorf("collector kind %q: must be 'file', 'pytest', or 'gotest'", cfg.Collector.Kind)
	}
}

// FileCollector reads a pre-collected <repo>_coverage.json from the
// data directory. CI pipelines produce the report in an earlier step,
// so this collector never runs a test suite.
type FileCollector struct {
	// Dir holds the <repo>_coverage.json files.
	Dir string
}

func (c *FileCollector) Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error) {
	path := filepath.Join(c.Dir, repo.Name+"_coverage.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CollectError{Repo: repo.Name, Err: err}
	}
	var report model.RawCoverageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ValidationError{Repo: repo.Name, Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	return &report, nil
}

// PytestCollector runs a repository's test suite under coverage.py
// and parses the exported JSON report. It invokes the repository's
// own virtualenv interpreter so collected coverage reflects the
// project's dependency set.
type PytestCollector struct {
	// Timeout bounds the whole collection. Zero means no limit.
	Timeout time.Duration
}

func (c *PytestCollector) Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	for _, tool := range []string{"pytest", "coverage"} {
		if out, err := c.python(ctx, repo, "-m", tool, "--version"); err != nil {
			return nil, &CollectError{
				Repo: repo.Name,
				Err:  fmt.Errorf("%s not available under %s: %s\n%s", tool, repo.Python, err, out),
			}
		}
	}

	if out, err := c.python(ctx, repo, "-m", "coverage", "run", "-m", "pytest"); err != nil {
		return nil, &CollectError{
			Repo: repo.Name,
			Err:  fmt.Errorf("test run failed: %s\n%s", err, out),
		}
	}

	// Export to a temp file to avoid clobbering a coverage.json the
	// repository may track.
	tmpFile, err := os.CreateTemp("", "covrisk-coverage-*.json")
	if err != nil {
		return nil, &CollectError{Repo: repo.Name, Err: err}
	}
	reportPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(reportPath)

	if out, err := c.python(ctx, repo, "-m", "coverage", "json", "-o", reportPath); err != nil {
		return nil, &CollectError{
			Repo: repo.Name,
			Err:  fmt.Errorf("coverage export failed: %s\n%s", err, out),
		}
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, &CollectError{Repo: repo.Name, Err: err}
	}
	var report model.RawCoverageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &ValidationError{Repo: repo.Name, Reason: err.Error()}
	}
	return &report, nil
}

func (c *PytestCollector) python(ctx context.Context, repo config.RepoConfig, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, repo.Python, args...)
	cmd.Dir = repo.Root
	return cmd.CombinedOutput()
}

// GoTestCollector covers Go repositories: it runs go test with a
// coverage profile and converts the profile into the common report
// shape.
type GoTestCollector struct {
	// Timeout bounds the test run. Zero means no limit.
	Timeout time.Duration
}

func (c *GoTestCollector) Collect(ctx context.Context, repo config.RepoConfig) (*model.RawCoverageReport, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	tmpFile, err := os.CreateTemp("", "covrisk-cover-*.out")
	if err != nil {
		return nil, &CollectError{Repo: repo.Name, Err: err}
	}
	profilePath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(profilePath)

	cmd := exec.CommandContext(ctx, "go", "test", "./...", "-coverprofile="+profilePath)
	cmd.Dir = repo.Root
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &CollectError{
			Repo: repo.Name,
			Err:  fmt.Errorf("go test failed: %s\n%s", err, out),
		}
	}

	report, err := coverage.FromProfile(profilePath)
	if err != nil {
		return nil, &CollectError{Repo: repo.Name, Err: err}
	}
	return report, nil
}
