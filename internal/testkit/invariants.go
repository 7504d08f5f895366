package testkit

import (
	"fmt"

	"ember/internal/asyncrt"
)

// CheckStats runs the counter invariants that hold after any run:
// 1) every completion was preceded by a spawn and a poll
// 2) live tasks equal spawns minus completions
// 3) no claim is empty and the largest batch fits in the polls made
func CheckStats(s asyncrt.Stats) error {
	if s.Completions > s.Spawns {
		return fmt.Errorf("completions %d exceed spawns %d", s.Completions, s.Spawns)
	}
	if s.Completions > s.Polls {
		return fmt.Errorf("completions %d exceed polls %d", s.Completions, s.Polls)
	}
	if s.Live < 0 {
		return fmt.Errorf("negative live count %d", s.Live)
	}
	if want := int64(s.Spawns - s.Completions); s.Live != want { //nolint:gosec // completions <= spawns checked above
		return fmt.Errorf("live %d, want spawns-completions %d", s.Live, want)
	}
	if s.Claims > s.Polls {
		return fmt.Errorf("claims %d exceed polls %d; a claim was empty", s.Claims, s.Polls)
	}
	if s.MaxBatch > s.Polls {
		return fmt.Errorf("max batch %d exceeds polls %d", s.MaxBatch, s.Polls)
	}
	return nil
}

// CheckQuiescent verifies a drained executor: stats invariants hold and
// nothing is left alive.
func CheckQuiescent(e *asyncrt.Executor) error {
	s := e.Stats()
	if err := CheckStats(s); err != nil {
		return err
	}
	if s.Live != 0 {
		return fmt.Errorf("%d tasks still live after drain", s.Live)
	}
	return nil
}

// CheckPolledOnce verifies that every probe in the set was polled exactly
// want times.
func CheckPolledOnce(want int64, probes ...*Probe) error {
	for i, p := range probes {
		if got := p.Polls(); got != want {
			return fmt.Errorf("probe %d (%s) polled %d times, want %d", i, p.Name, got, want)
		}
	}
	return nil
}
