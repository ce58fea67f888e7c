// Package state holds the target selection state of the filesystem:
// the index of candidate files and the selector that publishes one of them.
package state

import (
	"errors"
	"time"
)

// NoTarget is published as the link target while no file is tracked.
const NoTarget = "/dev/null"

// ErrSelectionExhausted is returned when a rejection loop exceeds its
// iteration cap, which only happens with a broken random source.
var ErrSelectionExhausted = errors.New("selection draw limit exceeded")

// Mode is the selector state, derived from the number of tracked files.
type Mode int

const (
	// ModeActive means at least one file is tracked.
	ModeActive Mode = iota
	// ModeDegraded means the index is empty and NoTarget is published.
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeDegraded {
		return "degraded"
	}
	return "active"
}

// Snapshot is a consistent copy of the selection state.
// Zero timestamps mean the event has not happened yet.
type Snapshot struct {
	Current      string
	Previous     string
	LastResolved time.Time
	LastRerolled time.Time
	Files        int
	Mode         Mode
}

// Rand is the random source used for draws and shuffles.
type Rand interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}
