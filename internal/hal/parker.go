package hal

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"ember/internal/asyncrt"
)

// ErrParkerUnsupported is returned when a parker kind cannot run on this OS.
var ErrParkerUnsupported = errors.New("parker not supported on this platform")

// ParkerKind selects the low-power wait implementation.
type ParkerKind string

const (
	ParkerChan    ParkerKind = "chan"
	ParkerEventfd ParkerKind = "eventfd"
	ParkerSpin    ParkerKind = "spin"
)

// ParseParkerKind validates a configured parker name.
func ParseParkerKind(s string) (ParkerKind, error) {
	switch k := ParkerKind(s); k {
	case ParkerChan, ParkerEventfd, ParkerSpin:
		return k, nil
	case "":
		return ParkerChan, nil
	default:
		return "", fmt.Errorf("invalid parker %q (expected: chan|eventfd|spin)", s)
	}
}

// NewParker builds a parker. The returned closer releases OS resources and
// is never nil.
func NewParker(kind ParkerKind) (asyncrt.Parker, io.Closer, error) {
	switch kind {
	case ParkerChan, "":
		return asyncrt.NewChanParker(), nopCloser{}, nil
	case ParkerSpin:
		return NewSpinParker(), nopCloser{}, nil
	case ParkerEventfd:
		p, err := NewEventfdParker()
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("invalid parker %q", kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SpinParker never sleeps in the kernel: Park yields the processor until the
// token appears. Useful when measuring wake latency without scheduler noise.
type SpinParker struct {
	token atomic.Bool
	spins atomic.Uint64
}

// NewSpinParker returns a parker with no pending token.
func NewSpinParker() *SpinParker {
	return &SpinParker{}
}

func (p *SpinParker) Park(timeout time.Duration) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for !p.token.Swap(false) {
		if timeout >= 0 && !time.Now().Before(deadline) {
			return
		}
		p.spins.Add(1)
		runtime.Gosched()
	}
}

func (p *SpinParker) Unpark() {
	p.token.Store(true)
}

// Spins returns how many times Park yielded.
func (p *SpinParker) Spins() uint64 { return p.spins.Load() }
