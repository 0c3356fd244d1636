// Package config holds the explicit pipeline configuration: workspace
// layout, data directories, analysis knobs, and collector selection.
// Everything is carried in one struct passed into the session so tests
// can inject fake paths; nothing is resolved from process-wide state
// at import time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultTopK bounds the hidden-risk shortlist per repository.
const DefaultTopK = 30

// Config is the root configuration structure.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Data      DataConfig      `yaml:"data"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Collector CollectorConfig `yaml:"collector"`
	Store     StoreConfig     `yaml:"store"`
}

// WorkspaceConfig locates the analyzed repositories and their
// virtualenvs.
type WorkspaceConfig struct {
	// Root is the workspace root containing the target-repos and
	// venvs directories.
	Root string `yaml:"root"`

	// TargetRepos is the directory (under Root) holding one
	// subdirectory per analyzed repository.
	TargetRepos string `yaml:"target_repos"`

	// Venvs is the directory (under Root) holding one virtualenv
	// per repository, used by the pytest collector.
	Venvs string `yaml:"venvs"`

	// Marker is the path component dataset paths are split on to
	// recover (repo, relative path). Normally equals TargetRepos.
	Marker string `yaml:"marker"`
}

// DataConfig locates pipeline artifacts.
type DataConfig struct {
	// Dir holds per-repo coverage reports (<repo>_coverage.json).
	Dir string `yaml:"dir"`

	// Processed is the subdirectory (under Dir) for predictions and
	// result CSVs.
	Processed string `yaml:"processed"`
}

// AnalysisConfig holds aggregation knobs.
type AnalysisConfig struct {
	// TopK bounds the hidden-risk shortlist per repository.
	TopK int `yaml:"top_k"`

	// Exclude lists regular expressions for paths the extractor
	// skips (test trees, vendored code).
	Exclude []string `yaml:"exclude"`
}

// CollectorConfig selects and tunes the coverage producer.
type CollectorConfig struct {
	// Kind is one of "file", "pytest", or "gotest".
	Kind string `yaml:"kind"`

	// Timeout bounds one collection subprocess.
	Timeout time.Duration `yaml:"timeout"`

	// Python overrides per-repo virtualenv interpreter resolution.
	Python string `yaml:"python"`
}

// StoreConfig configures the run-history store.
type StoreConfig struct {
	// Path is the bbolt database file. Empty disables history.
	Path string `yaml:"path"`
}

// RepoConfig is the per-repository slice of the configuration handed
// to collectors.
type RepoConfig struct {
	// Name is the repository directory name.
	Name string

	// Root is the absolute repository checkout path.
	Root string

	// Python is the interpreter the pytest collector invokes.
	Python string
}

// Default configures a workspace-relative layout matching the
// research setup: ./target-repos, ./venvs, ./data/processed.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:        ".",
			TargetRepos: "target-repos",
			Venvs:       "venvs",
			Marker:      "target-repos",
		},
		Data: DataConfig{
			Dir:       "data",
			Processed: "processed",
		},
		Analysis: AnalysisConfig{
			TopK: DefaultTopK,
			Exclude: []string{
				`(^|/)tests?(/|$)`,
				`(^|/)testdata(/|$)`,
				`_test\.go$`,
			},
		},
		Collector: CollectorConfig{
			Kind:    "file",
			Timeout: 15 * time.Minute,
		},
		Store: StoreConfig{},
	}
}

// Load builds the configuration: defaults, then a .env file when one
// exists, then the YAML file (explicit path or .covrisk.yaml in the
// working directory), then COVRISK_* environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	filePath := resolvePath(path)
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
		}
	} else if path != "" {
		return nil, fmt.Errorf("config file %q not found", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the config file to read, or "" for defaults
// only. An explicit path must exist; the conventional .covrisk.yaml
// is optional.
func resolvePath(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}
	for _, candidate := range []string{".covrisk.yaml", ".covrisk.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyEnv layers COVRISK_* environment overrides onto the config.
// COVRISK_CI=1 selects the file collector: in CI the coverage step has
// already run and re-running suites here would double the cost.
func (c *Config) applyEnv() {
	if v := os.Getenv("COVRISK_WORKSPACE"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("COVRISK_PYTHON"); v != "" {
		c.Collector.Python = v
	}
	if v := os.Getenv("COVRISK_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("COVRISK_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.Analysis.TopK = k
		}
	}
	if os.Getenv("COVRISK_CI") == "1" {
		c.Collector.Kind = "file"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Analysis.TopK < 1 {
		return fmt.Errorf("analysis.top_k must be at least 1, got %d", c.Analysis.TopK)
	}
	switch c.Collector.Kind {
	case "file", "pytest", "gotest":
	default:
		return fmt.Errorf("collector.kind %q: must be 'file', 'pytest', or 'gotest'", c.Collector.Kind)
	}
	for _, pattern := range c.Analysis.Exclude {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("analysis.exclude pattern %q: %w", pattern, err)
		}
	}
	if c.Workspace.Marker == "" {
		return fmt.Errorf("workspace.marker must not be empty")
	}
	return nil
}

// ExcludePatterns compiles the exclusion regexes. Call Validate
// first; compile errors here mean an unvalidated config.
func (c *Config) ExcludePatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(c.Analysis.Exclude))
	for _, p := range c.Analysis.Exclude {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}
	return patterns
}

// TargetReposDir returns the directory holding repository checkouts.
func (c *Config) TargetReposDir() string {
	return filepath.Join(c.Workspace.Root, c.Workspace.TargetRepos)
}

// VenvsDir returns the directory holding per-repo virtualenvs.
func (c *Config) VenvsDir() string {
	return filepath.Join(c.Workspace.Root, c.Workspace.Venvs)
}

// ProcessedDir returns the directory for predictions and result CSVs.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.Data.Dir, c.Data.Processed)
}

// PredictionsPath returns the default predictions dataset location.
func (c *Config) PredictionsPath() string {
	return filepath.Join(c.ProcessedDir(), "ml_smell_predictions.csv")
}

// ResultsPath returns the full result table location.
func (c *Config) ResultsPath() string {
	return filepath.Join(c.ProcessedDir(), "final_results.csv")
}

// TopKPath returns the hidden-risk shortlist location.
func (c *Config) TopKPath() string {
	return filepath.Join(c.ProcessedDir(), "final_results_topk.csv")
}

// CoveragePath returns the raw coverage report location for a
// repository.
func (c *Config) CoveragePath(repo string) string {
	return filepath.Join(c.Data.Dir, repo+"_coverage.json")
}

// Repo resolves the per-repository configuration: checkout path and
// virtualenv interpreter.
func (c *Config) Repo(name string) RepoConfig {
	return RepoConfig{
		Name:   name,
		Root:   filepath.Join(c.TargetReposDir(), name),
		Python: c.pythonFor(name),
	}
}

// pythonFor resolves the interpreter for a repository: the explicit
// override when set, otherwise the conventional virtualenv location.
func (c *Config) pythonFor(name string) string {
	if c.Collector.Python != "" {
		return c.Collector.Python
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(c.VenvsDir(), name, "Scripts", "python.exe")
	}
	return filepath.Join(c.VenvsDir(), name, "bin", "python")
}
