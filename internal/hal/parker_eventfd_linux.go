//go:build linux

package hal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// EventfdParker parks on a non-blocking eventfd. The kernel counter is the
// sticky wake token: Unpark adds one, Park polls for readability and drains.
type EventfdParker struct {
	fd int
}

// NewEventfdParker opens the eventfd. Callers must Close it.
func NewEventfdParker() (*EventfdParker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &EventfdParker{fd: fd}, nil
}

// Park waits for an Unpark or the timeout. Negative timeout waits forever.
func (p *EventfdParker) Park(timeout time.Duration) {
	ms := -1
	if timeout >= 0 {
		ms = durationToPollMs(timeout)
	}
	pfd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}} //nolint:gosec // eventfd descriptors are small
	for {
		_, err := unix.Poll(pfd, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		break
	}
	p.drain()
}

func (p *EventfdParker) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return
	}
}

// Unpark bumps the eventfd counter. Safe from any goroutine and never blocks.
func (p *EventfdParker) Unpark() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(p.fd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		// EAGAIN means the counter is saturated, which still wakes Park.
		return
	}
}

// Close releases the descriptor.
func (p *EventfdParker) Close() error {
	return unix.Close(p.fd)
}

func durationToPollMs(d time.Duration) int {
	ms := d.Milliseconds()
	if d > 0 && ms == 0 {
		ms = 1
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
