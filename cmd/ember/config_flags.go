package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ember/internal/config"
)

// addRunFlags registers the flags that override [executor], [clock] and
// [scenario] for commands that boot an executor.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("parker", "", "idle strategy (chan|eventfd|spin)")
	f.String("clock", "", "timer clock (real|virtual)")
	f.Bool("fuzz", false, "shuffle each claimed batch")
	f.Uint64("seed", 0, "seed for --fuzz")
	f.Int("pool-size", 0, "task pool capacity")
	f.Int("tasks", 0, "number of scenario tasks")
	f.Int("producers", 0, "number of producer goroutines or tasks")
	f.Int("wakes", 0, "total wakes or values produced")
	f.Int("presses", 0, "button presses for blinky")
	f.Uint64("period-ms", 0, "ticker period in milliseconds")
	f.Duration("duration", 0, "ticker scenario length")
	f.Duration("press-interval", 0, "delay between button edges")
}

// loadConfig resolves ember.toml (from --config or by searching upwards),
// then applies every flag the user set. The returned path is empty when
// defaults were used.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.Resolve(".")
	}
	if err != nil {
		return config.Config{}, path, err
	}

	if err := applyRunFlags(cmd, &cfg); err != nil {
		return config.Config{}, path, err
	}
	if err := applyTraceFlags(cmd, &cfg); err != nil {
		return config.Config{}, path, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, path, err
	}
	return cfg, path, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var errs []error
	str := func(name string, dst *string) {
		if f.Lookup(name) != nil && f.Changed(name) {
			v, err := f.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if f.Lookup(name) != nil && f.Changed(name) {
			v, err := f.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	u64 := func(name string, dst *uint64) {
		if f.Lookup(name) != nil && f.Changed(name) {
			v, err := f.GetUint64(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	dur := func(name string, dst *config.Duration) {
		if f.Lookup(name) != nil && f.Changed(name) {
			v, err := f.GetDuration(name)
			errs = append(errs, err)
			*dst = config.Duration{Duration: v}
		}
	}

	str("parker", &cfg.Executor.Parker)
	str("clock", &cfg.Clock.Mode)
	if f.Lookup("fuzz") != nil && f.Changed("fuzz") {
		v, err := f.GetBool("fuzz")
		errs = append(errs, err)
		cfg.Executor.Fuzz = v
	}
	u64("seed", &cfg.Executor.Seed)
	num("pool-size", &cfg.Executor.PoolSize)
	num("tasks", &cfg.Scenario.Tasks)
	num("producers", &cfg.Scenario.Producers)
	num("wakes", &cfg.Scenario.Wakes)
	num("presses", &cfg.Scenario.Presses)
	u64("period-ms", &cfg.Scenario.PeriodMs)
	dur("duration", &cfg.Scenario.Duration)
	dur("press-interval", &cfg.Scenario.PressInterval)

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to read flags: %w", err)
		}
	}
	return nil
}
