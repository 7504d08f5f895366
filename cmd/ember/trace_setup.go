package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ember/internal/config"
	"ember/internal/trace"
)

// applyTraceFlags copies any --trace* flag the user set over [trace].
// Naming an output without a level turns tracing on at the loop level.
func applyTraceFlags(cmd *cobra.Command, cfg *config.Config) error {
	pf := cmd.Root().PersistentFlags()

	if pf.Changed("trace") {
		cfg.Trace.Output, _ = pf.GetString("trace")
		if !pf.Changed("trace-level") && cfg.Trace.Level == "off" {
			cfg.Trace.Level = "loop"
		}
	}
	stringFlags := map[string]*string{
		"trace-level":  &cfg.Trace.Level,
		"trace-mode":   &cfg.Trace.Mode,
		"trace-format": &cfg.Trace.Format,
	}
	for name, dst := range stringFlags {
		if !pf.Changed(name) {
			continue
		}
		v, err := pf.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	if pf.Changed("trace-ring-size") {
		n, err := pf.GetInt("trace-ring-size")
		if err != nil {
			return fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		cfg.Trace.RingSize = n
	}
	if pf.Changed("trace-heartbeat") {
		d, err := pf.GetDuration("trace-heartbeat")
		if err != nil {
			return fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		cfg.Trace.Heartbeat = config.Duration{Duration: d}
	}
	return nil
}

// setupTracing creates the tracer described by cfg and attaches it to the
// command context. The cleanup stops the heartbeat, then flushes and closes.
func setupTracing(cmd *cobra.Command, cfg config.Config) (context.Context, func(), error) {
	tcfg, err := cfg.TracerConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace settings: %w", err)
	}
	if tcfg.Level == trace.LevelOff {
		return trace.WithTracer(cmd.Context(), trace.Nop), func() {}, nil
	}

	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)

	var heartbeat *trace.Heartbeat
	if tcfg.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, tcfg.Heartbeat)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return ctx, cleanup, nil
}

// dumpRing writes the retained ring events of the context tracer, if it
// keeps any. Used after a failed run as a flight recorder.
func dumpRing(ctx context.Context, w io.Writer) error {
	var ring *trace.RingTracer
	switch t := trace.FromContext(ctx).(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil || ring.Len() == 0 {
		return nil
	}
	fmt.Fprintf(w, "last %d trace events:\n", ring.Len())
	return ring.Dump(w, trace.FormatText)
}

// tracesToStderr reports whether a stream tracer would write to stderr.
func tracesToStderr(cfg config.Config) bool {
	tcfg, err := cfg.TracerConfig()
	if err != nil || tcfg.Level == trace.LevelOff || tcfg.Mode == trace.ModeRing {
		return false
	}
	return tcfg.OutputPath == "" || tcfg.OutputPath == "-"
}
