//go:build !linux

package hal

import (
	"errors"
	"time"
)

// EventfdParker is only available on Linux.
type EventfdParker struct{}

// NewEventfdParker reports ErrParkerUnsupported off Linux.
func NewEventfdParker() (*EventfdParker, error) {
	return nil, ErrParkerUnsupported
}

func (*EventfdParker) Park(time.Duration) {}
func (*EventfdParker) Unpark()            {}
func (*EventfdParker) Close() error       { return errors.ErrUnsupported }
