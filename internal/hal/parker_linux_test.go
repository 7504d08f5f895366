//go:build linux

package hal

import (
	"testing"
	"time"
)

func TestEventfdParker(t *testing.T) {
	p, err := NewEventfdParker()
	if err != nil {
		t.Skipf("eventfd unavailable: %v", err)
	}
	defer p.Close()

	p.Unpark()
	p.Unpark()
	start := time.Now()
	p.Park(-1)
	if time.Since(start) > time.Second {
		t.Fatalf("park with pending counter blocked")
	}

	start = time.Now()
	p.Park(10 * time.Millisecond)
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("counter was not drained by the previous park")
	}

	go func() {
		time.Sleep(2 * time.Millisecond)
		p.Unpark()
	}()
	p.Park(5 * time.Second)
}

func TestDurationToPollMs(t *testing.T) {
	cases := map[time.Duration]int{
		0:                    0,
		time.Microsecond:     1,
		3 * time.Millisecond: 3,
		1 << 62:              1<<31 - 1,
	}
	for in, want := range cases {
		if got := durationToPollMs(in); got != want {
			t.Fatalf("durationToPollMs(%v) = %d, want %d", in, got, want)
		}
	}
}
