package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ember/internal/observ"
	"ember/internal/scenario"
)

var benchCmd = &cobra.Command{
	Use:   "bench [scenario]",
	Short: "Run a scenario repeatedly on independent executors",
	Long: `Boot --runs executors, up to --parallel at a time, each driving the same
scenario. With --fuzz every run gets its own seed (seed, seed+1, ...), so a
failing interleaving can be replayed with "ember run --fuzz --seed N".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBench,
}

func init() {
	addRunFlags(benchCmd)
	benchCmd.Flags().Int("runs", 8, "number of runs")
	benchCmd.Flags().Int("parallel", runtime.GOMAXPROCS(0), "maximum concurrent executors")
	benchCmd.Flags().String("record-dir", "", "write one run report per run into this directory")
	benchCmd.Flags().Bool("each", false, "print every run report, not only the summary")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Scenario.Name = args[0]
	}
	sc, err := scenario.Lookup(cfg.Scenario.Name)
	if err != nil {
		return err
	}

	runs, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return fmt.Errorf("failed to get runs flag: %w", err)
	}
	parallel, err := cmd.Flags().GetInt("parallel")
	if err != nil {
		return fmt.Errorf("failed to get parallel flag: %w", err)
	}
	recordDir, err := cmd.Flags().GetString("record-dir")
	if err != nil {
		return fmt.Errorf("failed to get record-dir flag: %w", err)
	}
	each, err := cmd.Flags().GetBool("each")
	if err != nil {
		return fmt.Errorf("failed to get each flag: %w", err)
	}
	if runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", runs)
	}

	ctx, stopTrace, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer stopTrace()
	stopProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProf()

	reports := make([]*observ.RunReport, runs)
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i := 0; i < runs; i++ {
		runCfg := cfg
		runCfg.Executor.Seed = cfg.Executor.Seed + uint64(i)
		g.Go(func() error {
			started := time.Now()
			res, runErr := scenario.Boot(gctx, runCfg, sc)
			r := newRunReport(runCfg, sc.Name, started, res, runErr)
			r.Executor = fmt.Sprintf("%s#%d", sc.Name, i)
			reports[i] = r
			if recordDir != "" {
				path := filepath.Join(recordDir, fmt.Sprintf("%s-%03d.ember", sc.Name, i))
				if err := observ.WriteRecord(path, r); err != nil {
					return err
				}
			}
			// one failed run should not cancel the others
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if each {
		for _, r := range reports {
			if err := observ.Render(out, r); err != nil {
				return err
			}
		}
	}
	agg := observ.Summarize(reports)
	if err := observ.RenderAggregate(out, agg); err != nil {
		return err
	}
	if agg.Failed > 0 {
		for _, r := range reports {
			if r.Err != "" {
				return fmt.Errorf("%s (seed %d): %s", r.Executor, r.Seed, r.Err)
			}
		}
	}
	return nil
}
