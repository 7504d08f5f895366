package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff   Level = iota // no tracing
	LevelError              // only invariant failures
	LevelLoop               // run boundaries + park/unpark
	LevelClaim              // every run queue claim
	LevelDebug              // everything including per-task polls
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelLoop:
		return "loop"
	case LevelClaim:
		return "claim"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "loop":
		return LevelLoop, nil
	case "claim":
		return LevelClaim, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|loop|claim|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return false // invariant failures go through Fatal
	case LevelLoop:
		return scope <= ScopeLoop
	case LevelClaim:
		return scope <= ScopeClaim
	case LevelDebug:
		return true
	}
	return false
}
