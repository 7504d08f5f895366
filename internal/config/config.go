// Package config loads ember.toml, the run settings shared by the CLI
// commands. Flags override values from the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ember/internal/hal"
	"ember/internal/trace"
)

// FileName is the manifest name searched for by Find.
const FileName = "ember.toml"

// Config mirrors ember.toml.
type Config struct {
	Executor ExecutorConfig `toml:"executor"`
	Clock    ClockConfig    `toml:"clock"`
	Trace    TraceConfig    `toml:"trace"`
	Scenario ScenarioConfig `toml:"scenario"`
}

type ExecutorConfig struct {
	PoolSize int    `toml:"pool_size"`
	Parker   string `toml:"parker"`
	Fuzz     bool   `toml:"fuzz"`
	Seed     uint64 `toml:"seed"`
}

type ClockConfig struct {
	Mode string `toml:"mode"`
}

type TraceConfig struct {
	Level     string   `toml:"level"`
	Mode      string   `toml:"mode"`
	Format    string   `toml:"format"`
	Output    string   `toml:"output"`
	RingSize  int      `toml:"ring_size"`
	Heartbeat Duration `toml:"heartbeat"`
}

// ScenarioConfig sizes the demo workloads. Unused fields are ignored by
// scenarios that do not need them.
type ScenarioConfig struct {
	Name          string   `toml:"name"`
	Tasks         int      `toml:"tasks"`
	Producers     int      `toml:"producers"`
	Wakes         int      `toml:"wakes"`
	Presses       int      `toml:"presses"`
	PeriodMs      uint64   `toml:"period_ms"`
	Duration      Duration `toml:"duration"`
	PressInterval Duration `toml:"press_interval"`
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the settings used when no ember.toml exists.
func Default() Config {
	return Config{
		Executor: ExecutorConfig{PoolSize: 16, Parker: string(hal.ParkerChan)},
		Clock:    ClockConfig{Mode: "real"},
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			Output:   "-",
			RingSize: 4096,
		},
		Scenario: ScenarioConfig{
			Name:          "blinky",
			Tasks:         8,
			Producers:     4,
			Wakes:         10000,
			Presses:       6,
			PeriodMs:      100,
			Duration:      Duration{2 * time.Second},
			PressInterval: Duration{50 * time.Millisecond},
		},
	}
}

// Find walks up from startDir to locate ember.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over Default and validates the result. Keys that do not
// map to a field are rejected so typos do not pass silently.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("scenario", "name") && strings.TrimSpace(cfg.Scenario.Name) == "" {
		return Config{}, fmt.Errorf("%s: [scenario].name is empty", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the ember.toml found from startDir, or Default when none
// exists. The returned path is empty in the latter case.
func Resolve(startDir string) (Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, path, err
	}
	return cfg, path, nil
}

// Validate checks value ranges and enum fields.
func (c Config) Validate() error {
	var errs []error
	if c.Executor.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("[executor].pool_size must be at least 1, got %d", c.Executor.PoolSize))
	}
	if _, err := hal.ParseParkerKind(c.Executor.Parker); err != nil {
		errs = append(errs, fmt.Errorf("[executor].parker: %w", err))
	}
	if _, err := c.TimerVirtual(); err != nil {
		errs = append(errs, err)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("[trace].level: %w", err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("[trace].mode: %w", err))
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("[trace].format: %w", err))
	}
	if c.Trace.RingSize < 0 {
		errs = append(errs, errors.New("[trace].ring_size must not be negative"))
	}
	s := c.Scenario
	if s.Tasks < 1 || s.Producers < 1 || s.Wakes < 0 || s.Presses < 0 {
		errs = append(errs, fmt.Errorf("[scenario] counts out of range (tasks=%d producers=%d wakes=%d presses=%d)",
			s.Tasks, s.Producers, s.Wakes, s.Presses))
	}
	if s.PeriodMs == 0 {
		errs = append(errs, errors.New("[scenario].period_ms must be positive"))
	}
	if s.Duration.Duration < 0 || s.PressInterval.Duration < 0 {
		errs = append(errs, errors.New("[scenario] durations must not be negative"))
	}
	return errors.Join(errs...)
}

// TimerVirtual reports whether [clock].mode selects the virtual clock.
func (c Config) TimerVirtual() (bool, error) {
	switch strings.ToLower(c.Clock.Mode) {
	case "", "real":
		return false, nil
	case "virtual":
		return true, nil
	default:
		return false, fmt.Errorf("[clock].mode: invalid value %q (expected: real|virtual)", c.Clock.Mode)
	}
}

// TracerConfig converts [trace] into a trace.Config.
func (c Config) TracerConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  c.Trace.Heartbeat.Duration,
	}, nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile writes c to path, keeping the mode of an existing file.
func (c Config) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
