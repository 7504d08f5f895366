package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"ember/internal/asyncrt"
	"ember/internal/config"
	"ember/internal/observ"
	"ember/internal/scenario"
)

func TestReadUIMode(t *testing.T) {
	cases := map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff}
	for in, want := range cases {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("readUIMode accepted an invalid value")
	}
	if !shouldUseTUI(uiModeOn, true) || shouldUseTUI(uiModeOff, false) {
		t.Fatal("explicit ui modes not honored")
	}
	if shouldUseTUI(uiModeAuto, true) {
		t.Fatal("auto mode chose the dashboard while tracing to stderr")
	}
}

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "ember"}
	addPersistentFlags(root)
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	root.AddCommand(cmd)
	if err := root.PersistentFlags().Parse(filterPersistent(args, true)); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Parse(filterPersistent(args, false)); err != nil {
		t.Fatal(err)
	}
	return cmd
}

// filterPersistent splits test args between the root and command flag sets.
func filterPersistent(args []string, persistent bool) []string {
	var out []string
	for _, a := range args {
		if strings.HasPrefix(a, "--trace") == persistent {
			out = append(out, a)
		}
	}
	return out
}

func TestApplyRunFlags(t *testing.T) {
	cmd := newFlagCommand(t, "--parker=spin", "--tasks=3", "--duration=250ms", "--fuzz", "--seed=9", "--clock=virtual")
	cfg := config.Default()
	if err := applyRunFlags(cmd, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Executor.Parker != "spin" || !cfg.Executor.Fuzz || cfg.Executor.Seed != 9 {
		t.Fatalf("executor = %+v", cfg.Executor)
	}
	if cfg.Scenario.Tasks != 3 || cfg.Scenario.Duration.Duration != 250*time.Millisecond {
		t.Fatalf("scenario = %+v", cfg.Scenario)
	}
	if cfg.Clock.Mode != "virtual" {
		t.Fatalf("clock = %q", cfg.Clock.Mode)
	}
	if cfg.Scenario.Producers != config.Default().Scenario.Producers {
		t.Fatal("unset flag overrode the file value")
	}
}

func TestApplyTraceFlags(t *testing.T) {
	cmd := newFlagCommand(t, "--trace=-", "--trace-mode=both", "--trace-heartbeat=1s")
	cfg := config.Default()
	if err := applyTraceFlags(cmd, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Trace.Level != "loop" {
		t.Fatalf("level = %q, want loop when only --trace is given", cfg.Trace.Level)
	}
	if cfg.Trace.Mode != "both" || cfg.Trace.Heartbeat.Duration != time.Second {
		t.Fatalf("trace = %+v", cfg.Trace)
	}
	if !tracesToStderr(cfg) {
		t.Fatal("stream to - should count as stderr")
	}
}

func TestNewRunReport(t *testing.T) {
	cfg := config.Default()
	cfg.Clock.Mode = "virtual"
	res := &scenario.Result{
		Scenario: "ticker",
		Stats:    asyncrt.Stats{Spawns: 3, Completions: 3, Polls: 30},
		ClockMs:  500,
		Wall:     time.Millisecond,
		Metrics:  map[string]uint64{"ticks": 12},
	}
	r := newRunReport(cfg, "ticker", time.Now(), res, errors.New("boom"))
	if r.VirtualMs != 500 || r.Counters.Polls != 30 || r.Metrics["ticks"] != 12 {
		t.Fatalf("report = %+v", r)
	}
	if r.Err != "boom" || r.Parker != "chan" || r.Schema != observ.RecordSchema {
		t.Fatalf("report header = %+v", r)
	}
	if nilRes := newRunReport(cfg, "ticker", time.Now(), nil, nil); nilRes.Counters.Polls != 0 {
		t.Fatal("nil result produced counters")
	}
}

func TestRenderVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "1.2.3", GitCommit: "abc123"}
	if err := renderVersionJSON(&buf, info, versionOptions{showHash: true, showDate: true}); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Tool != "ember" || payload.GitCommit != "abc123" || payload.BuildDate != "unknown" || payload.GitMessage != "" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	cmd.Flags().Bool("force", false, "")
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runConfigInit(cmd, []string{dir}); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("load written file: %v", err)
	}
	if cfg.Scenario.Name != config.Default().Scenario.Name {
		t.Fatalf("scenario = %q", cfg.Scenario.Name)
	}
	if err := runConfigInit(cmd, []string{dir}); err == nil {
		t.Fatal("second init overwrote the file without --force")
	}
}

func TestDumpRingWithoutRing(t *testing.T) {
	var buf bytes.Buffer
	if err := dumpRing(context.Background(), &buf); err != nil || buf.Len() != 0 {
		t.Fatalf("dumpRing = %q, %v", buf.String(), err)
	}
}

func TestRelPath(t *testing.T) {
	base := t.TempDir()
	inside := filepath.Join(base, "sub", config.FileName)
	if got, _ := relPath(base, inside); got != filepath.Join("sub", config.FileName) {
		t.Fatalf("relPath inside = %q", got)
	}
	outside := filepath.Join(os.TempDir(), "elsewhere.toml")
	if got, _ := relPath(base, outside); got != outside {
		t.Fatalf("relPath outside = %q, want absolute", got)
	}
}
