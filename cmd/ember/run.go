package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ember/internal/config"
	"ember/internal/hal"
	"ember/internal/observ"
	"ember/internal/prof"
	"ember/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Boot an executor and drive one scenario to completion",
	Long: `Boot an executor configured from ember.toml and flags, run the named
scenario (or [scenario].name) until its main task completes, and print the
scheduler counters.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScenario,
}

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().String("ui", "auto", "live dashboard (auto|on|off)")
	runCmd.Flags().String("record", "", "write the run report to this file (msgpack)")
	runCmd.Flags().Duration("timeout", 0, "abort the run after this long")
}

func runScenario(cmd *cobra.Command, args []string) error {
	timer := observ.NewTimer()
	phase := timer.Begin("config")
	cfg, cfgPath, err := loadConfig(cmd)
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
	timer.End(phase, cfgPathNote(cfgPath))

	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	recordPath, err := cmd.Flags().GetString("record")
	if err != nil {
		return fmt.Errorf("failed to get record flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
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

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	phase = timer.Begin("run")
	started := time.Now()
	var res *scenario.Result
	var runErr error
	if shouldUseTUI(mode, tracesToStderr(cfg)) {
		res, runErr = runScenarioWithUI(ctx, cfg, sc)
	} else {
		prof.Region(ctx, "scenario:"+sc.Name, func() {
			res, runErr = scenario.Boot(ctx, cfg, sc)
		})
	}
	timer.End(phase, sc.Name)

	report := newRunReport(cfg, sc.Name, started, res, runErr)
	report.Phases = timer.Report()

	if runErr != nil {
		if err := dumpRing(ctx, cmd.ErrOrStderr()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		}
	}
	if !quiet && res != nil {
		if err := observ.Render(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	if recordPath != "" && res != nil {
		if err := observ.WriteRecord(recordPath, report); err != nil {
			return errors.Join(runErr, fmt.Errorf("write record: %w", err))
		}
	}
	if showTimings {
		printTimings(cmd.ErrOrStderr(), timer)
	}
	return runErr
}

// newRunReport converts a boot result into a report. res may be nil when the
// scenario failed before the executor started.
func newRunReport(cfg config.Config, name string, started time.Time, res *scenario.Result, runErr error) *observ.RunReport {
	parker, _ := hal.ParseParkerKind(cfg.Executor.Parker)
	r := &observ.RunReport{
		Schema:   observ.RecordSchema,
		Scenario: name,
		Executor: name,
		Parker:   string(parker),
		Clock:    cfg.Clock.Mode,
		Fuzz:     cfg.Executor.Fuzz,
		Seed:     cfg.Executor.Seed,
		Started:  started,
	}
	if res != nil {
		r.Wall = res.Wall
		r.Counters = observ.CountersFrom(res.Stats)
		r.Metrics = res.Metrics
		if virtual, _ := cfg.TimerVirtual(); virtual {
			r.VirtualMs = res.ClockMs
		}
	}
	if runErr != nil {
		r.Err = runErr.Error()
	}
	return r
}

func cfgPathNote(path string) string {
	if path == "" {
		return "defaults"
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := relPath(wd, path); err == nil {
			return rel
		}
	}
	return path
}
