package scenario

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"testing"
	"time"

	"ember/internal/asyncrt"
	"ember/internal/config"
	"ember/internal/testkit"
)

func testConfig(name string) config.Config {
	cfg := config.Default()
	cfg.Scenario.Name = name
	cfg.Scenario.PressInterval = config.Duration{}
	return cfg
}

func boot(t *testing.T, cfg config.Config, opts ...BootOption) *Result {
	t.Helper()
	sc, err := Lookup(cfg.Scenario.Name)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := Boot(ctx, cfg, sc, opts...)
	if err != nil {
		t.Fatalf("Boot(%s): %v", sc.Name, err)
	}
	if err := testkit.CheckStats(res.Stats); err != nil {
		t.Fatalf("stats invariant: %v (%+v)", err, res.Stats)
	}
	return res
}

func TestRegistry(t *testing.T) {
	names := Names()
	for _, want := range []string{"blinky", "pipeline", "stress", "ticker"} {
		if !slices.Contains(names, want) {
			t.Fatalf("Names() = %v, missing %q", names, want)
		}
	}
	if !slices.IsSorted(names) {
		t.Fatalf("Names() not sorted: %v", names)
	}
	if _, err := Lookup("nope"); err == nil {
		t.Fatal("Lookup(nope) succeeded")
	}
}

func TestTickerVirtualClockIsExact(t *testing.T) {
	cfg := testConfig("ticker")
	cfg.Clock.Mode = "virtual"
	cfg.Scenario.Tasks = 3
	cfg.Scenario.PeriodMs = 10
	cfg.Scenario.Duration = config.Duration{Duration: 100 * time.Millisecond}

	res := boot(t, cfg)
	want := map[string]uint64{"ticks_0": 10, "ticks_1": 5, "ticks_2": 3, "ticks": 18}
	for k, v := range want {
		if got := res.Metrics[k]; got != v {
			t.Errorf("%s = %d, want %d", k, got, v)
		}
	}
	if res.ClockMs != 100 {
		t.Fatalf("virtual clock = %d ms, want 100", res.ClockMs)
	}
	if res.Stats.Completions != 4 || res.Stats.Live != 0 {
		t.Fatalf("completions/live = %d/%d, want 4/0", res.Stats.Completions, res.Stats.Live)
	}
	if res.Stats.Parks != 0 {
		t.Fatalf("virtual run parked %d times", res.Stats.Parks)
	}
}

func TestBlinkyFollowsButton(t *testing.T) {
	cfg := testConfig("blinky")
	cfg.Scenario.Presses = 5
	cfg.Scenario.PeriodMs = 60_000

	res := boot(t, cfg)
	if res.Metrics["edges"] != 10 {
		t.Fatalf("edges = %d, want 10", res.Metrics["edges"])
	}
	if res.Metrics["irq_fired"] != 10 {
		t.Fatalf("irq fired = %d, want 10", res.Metrics["irq_fired"])
	}
	if toggles := res.Metrics["led_toggles"]; toggles%2 != 0 || toggles > 10 {
		t.Fatalf("led toggles = %d, want an even count <= 10", toggles)
	}
}

func TestStressNoLostWakeups(t *testing.T) {
	parkers := []string{"chan", "spin"}
	if runtime.GOOS == "linux" {
		parkers = append(parkers, "eventfd")
	}
	for _, parker := range parkers {
		t.Run(parker, func(t *testing.T) {
			cfg := testConfig("stress")
			cfg.Executor.Parker = parker
			cfg.Scenario.Tasks = 6
			cfg.Scenario.Producers = 3
			cfg.Scenario.Wakes = 3000

			res := boot(t, cfg)
			if res.Stats.Completions != 7 || res.Stats.Live != 0 {
				t.Fatalf("completions/live = %d/%d, want 7/0", res.Stats.Completions, res.Stats.Live)
			}
			if res.Metrics["resumes"] < 6 {
				t.Fatalf("resumes = %d, want at least one per sink", res.Metrics["resumes"])
			}
			if res.Metrics["irq_fired"] != 6*1000 {
				t.Fatalf("irq fired = %d, want 6000", res.Metrics["irq_fired"])
			}
		})
	}
}

func TestStressFuzzed(t *testing.T) {
	cfg := testConfig("stress")
	cfg.Executor.Fuzz = true
	cfg.Executor.Seed = 7
	cfg.Scenario.Tasks = 8
	cfg.Scenario.Wakes = 2000

	res := boot(t, cfg)
	if res.Stats.Live != 0 {
		t.Fatalf("live = %d after fuzzed run", res.Stats.Live)
	}
}

func TestPipelineDeliversEveryValue(t *testing.T) {
	cfg := testConfig("pipeline")
	cfg.Scenario.Producers = 3
	cfg.Scenario.Wakes = 400

	res := boot(t, cfg)
	if res.Metrics["received"] != 400 {
		t.Fatalf("received = %d, want 400", res.Metrics["received"])
	}
	if res.Metrics["sum"] != 400*401/2 {
		t.Fatalf("sum = %d, want %d", res.Metrics["sum"], 400*401/2)
	}
}

func TestPoolCapacityIsReported(t *testing.T) {
	cfg := testConfig("stress")
	cfg.Executor.PoolSize = 2
	cfg.Scenario.Tasks = 3

	sc, _ := Lookup("stress")
	_, err := Boot(context.Background(), cfg, sc)
	if !errors.Is(err, asyncrt.ErrCapacity) {
		t.Fatalf("Boot err = %v, want ErrCapacity", err)
	}
}

func TestBootStopsOnCancel(t *testing.T) {
	cfg := testConfig("blinky")
	cfg.Scenario.PressInterval = config.Duration{Duration: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc, _ := Lookup("blinky")
	res, err := Boot(ctx, cfg, sc, OnStart(func(*asyncrt.Executor) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Boot err = %v, want context.Canceled", err)
	}
	if res == nil || res.Metrics["edges"] != 0 {
		t.Fatalf("result = %+v, want an empty run", res)
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	exec := asyncrt.New(asyncrt.Config{Name: "watched"})
	ctx, cancel := context.WithCancel(context.Background())
	ch := Watch(ctx, exec, time.Millisecond)
	if _, ok := <-ch; !ok {
		t.Fatal("channel closed before the first sample")
	}
	cancel()
	for range ch {
	}
}
