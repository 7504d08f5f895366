package scenario

import (
	"context"
	"time"

	"ember/internal/asyncrt"
)

// Snapshot is one sample of executor counters.
type Snapshot struct {
	Elapsed time.Duration
	Stats   asyncrt.Stats
}

// Watch samples exec every interval until ctx ends, then closes the
// channel. A slow reader misses samples instead of stalling the sampler.
func Watch(ctx context.Context, exec *asyncrt.Executor, interval time.Duration) <-chan Snapshot {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		start := time.Now()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				snap := Snapshot{Elapsed: now.Sub(start), Stats: exec.Stats()}
				select {
				case out <- snap:
				default:
				}
			}
		}
	}()
	return out
}
