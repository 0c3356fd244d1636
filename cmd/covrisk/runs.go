package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/risklab/covrisk/internal/config"
	"github.com/risklab/covrisk/internal/store"
)

// runsParams holds the parsed flags for the runs command family.
type runsParams struct {
	cfg    *config.Config
	repo   string
	stdout io.Writer
	stderr io.Writer
}

// openStore opens the configured history store.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("store.path not configured: set store.path in the config file or COVRISK_STORE")
	}
	return store.Open(cfg.Store.Path)
}

// runRunsList prints archived runs: every repository, or one
// repository's full history.
func runRunsList(p runsParams) error {
	s, err := openStore(p.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if p.repo != "" {
		runs, err := s.ListRuns(p.repo)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintf(p.stdout, "No archived runs for %s.\n", p.repo)
			return nil
		}
		fmt.Fprintf(p.stdout, "%s:\n", p.repo)
		for _, run := range runs {
			fmt.Fprintf(p.stdout, "  #%d  %s  %d function(s), %d hidden risk\n",
				run.Sequence, formatRunTime(run.Meta.Timestamp),
				len(run.Rows), hiddenRiskCount(run.Rows))
		}
		return nil
	}

	repos, err := s.Repos()
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		fmt.Fprintln(p.stdout, "No archived runs.")
		return nil
	}
	for _, repo := range repos {
		runs, err := s.ListRuns(repo)
		if err != nil {
			return err
		}
		last := runs[len(runs)-1]
		fmt.Fprintf(p.stdout, "%s: %d run(s), last %s (%d hidden risk)\n",
			repo, len(runs), formatRunTime(last.Meta.Timestamp),
			hiddenRiskCount(last.Rows))
	}
	return nil
}

func formatRunTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

// runRunsDiff compares the last two archived runs of a repository.
func runRunsDiff(p runsParams) error {
	s, err := openStore(p.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(p.repo)
	if err != nil {
		return err
	}
	if len(runs) < 2 {
		return fmt.Errorf("repository %s has %d archived run(s): need at least two to diff",
			p.repo, len(runs))
	}

	prev, curr := runs[len(runs)-2], runs[len(runs)-1]
	d := store.Diff(prev.Rows, curr.Rows)

	fmt.Fprintf(p.stdout, "%s: run #%d -> #%d\n", p.repo, prev.Sequence, curr.Sequence)
	if d.Empty() {
		fmt.Fprintln(p.stdout, "No changes.")
		return nil
	}
	for _, row := range d.Added {
		fmt.Fprintf(p.stdout, "  + %s %s (%s)\n", row.FilePath, row.MethodName, row.RiskCategory)
	}
	for _, row := range d.Removed {
		fmt.Fprintf(p.stdout, "  - %s %s\n", row.FilePath, row.MethodName)
	}
	for _, ch := range d.Changed {
		fmt.Fprintf(p.stdout, "  ~ %s %s: %s (%g%%) -> %s (%g%%)\n",
			ch.FilePath, ch.MethodName,
			ch.From, ch.FromPercent, ch.To, ch.ToPercent)
	}
	return nil
}

// runRunsClear deletes a repository's archived runs.
func runRunsClear(p runsParams) error {
	s, err := openStore(p.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteRepo(p.repo); err != nil {
		return err
	}
	logger.Info("runs cleared", "repo", p.repo)
	return nil
}

func newRunsCmd(cfgPath *string) *cobra.Command {
	load := func() (*config.Config, error) {
		return config.Load(*cfgPath)
	}

	cmd := &cobra.Command{
		Use:   "runs [repo]",
		Short: "List archived analysis runs",
		Long: `Runs lists the history archived with analyze --save: every
repository, or one repository's full run history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			repo := ""
			if len(args) == 1 {
				repo = args[0]
			}
			return runRunsList(runsParams{cfg: cfg, repo: repo, stdout: os.Stdout, stderr: os.Stderr})
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <repo>",
		Short: "Compare the last two archived runs of a repository",
		Long: `Diff reports functions added, removed, or reclassified between
the two most recent archived runs of a repository.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRunsDiff(runsParams{cfg: cfg, repo: args[0], stdout: os.Stdout, stderr: os.Stderr})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <repo>",
		Short: "Delete a repository's archived runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runRunsClear(runsParams{cfg: cfg, repo: args[0], stdout: os.Stdout, stderr: os.Stderr})
		},
	}

	cmd.AddCommand(diffCmd, clearCmd)
	return cmd
}
