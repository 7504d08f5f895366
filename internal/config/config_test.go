package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[executor]
pool_size = 4
parker = "spin"
fuzz = true
seed = 9

[clock]
mode = "virtual"

[trace]
level = "claim"
heartbeat = "250ms"

[scenario]
name = "stress"
duration = "1s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Executor.PoolSize != 4 || cfg.Executor.Parker != "spin" || !cfg.Executor.Fuzz || cfg.Executor.Seed != 9 {
		t.Fatalf("executor = %+v", cfg.Executor)
	}
	if virtual, _ := cfg.TimerVirtual(); !virtual {
		t.Fatalf("clock mode not virtual")
	}
	if cfg.Trace.Heartbeat.Duration != 250*time.Millisecond {
		t.Fatalf("heartbeat = %v", cfg.Trace.Heartbeat)
	}
	if cfg.Scenario.Name != "stress" || cfg.Scenario.Duration.Duration != time.Second {
		t.Fatalf("scenario = %+v", cfg.Scenario)
	}
	// untouched keys keep defaults
	if cfg.Scenario.Tasks != Default().Scenario.Tasks {
		t.Fatalf("tasks = %d", cfg.Scenario.Tasks)
	}
	tc, err := cfg.TracerConfig()
	if err != nil || tc.Heartbeat != 250*time.Millisecond {
		t.Fatalf("tracer config = %+v, %v", tc, err)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[executor]\npool_sise = 3\n",
		"bad parker":   "[executor]\nparker = \"wfi\"\n",
		"bad level":    "[trace]\nlevel = \"loud\"\n",
		"zero pool":    "[executor]\npool_size = 0\n",
		"empty name":   "[scenario]\nname = \"\"\n",
		"bad duration": "[scenario]\nduration = \"soon\"\n",
		"bad clock":    "[clock]\nmode = \"lunar\"\n",
	}
	for name, body := range cases {
		path := writeFile(t, t.TempDir(), body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: load accepted %q", name, body)
		}
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeFile(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("find = %q, want %q", got, want)
	}

	cfg, path, err := Resolve(nested)
	if err != nil || path != want || cfg.Executor.PoolSize != Default().Executor.PoolSize {
		t.Fatalf("resolve = %+v %q %v", cfg.Executor, path, err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Scenario.Name = "ticker"
	cfg.Trace.Heartbeat = Duration{time.Second}
	path := filepath.Join(t.TempDir(), FileName)
	if err := cfg.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back != cfg {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, cfg)
	}

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(buf.String(), `heartbeat = "1s"`) {
		t.Fatalf("encoded heartbeat missing:\n%s", buf.String())
	}
}
