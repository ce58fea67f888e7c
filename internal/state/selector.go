package state

import (
	"sync"
	"time"

	"ritsufs/internal/logging"
)

var (
	selectorLogger = logging.GetLogger().WithPrefix("selector")
)

// Options configures a Selector.
type Options struct {
	// Timeout is the debounce window. Resolutions closer together than
	// or exactly Timeout apart return the same target.
	Timeout time.Duration
	// PreventRepeats forbids publishing the same file twice in a row.
	PreventRepeats bool
}

// Selector publishes one file of its index as the current target and
// decides on every resolution whether to keep it or reroll.
//
// A single mutex guards the index and the selection state. Resolution
// requests and directory change notifications both go through it.
// Nothing that may block, logging included, runs while it is held: the
// locked sections record what changed and the caller logs after
// unlocking.
type Selector struct {
	mu             sync.Mutex
	index          *FileIndex
	timeout        time.Duration
	preventRepeats bool

	current      string
	previous     string
	lastResolved time.Time
	lastRerolled time.Time
}

// NewSelector creates a selector over index. Nothing is selected until
// the first resolution.
func NewSelector(index *FileIndex, opts Options) *Selector {
	selectorLogger.Debug("Creating selector (timeout=%v, preventRepeats=%v)",
		opts.Timeout, opts.PreventRepeats)
	return &Selector{
		index:          index,
		timeout:        opts.Timeout,
		preventRepeats: opts.PreventRepeats,
		current:        NoTarget,
		previous:       NoTarget,
	}
}

// Resolve returns the published target, rerolling first if this is the
// first resolution or more than the timeout has passed since the last one.
func (s *Selector) Resolve(now time.Time) (string, error) {
	s.mu.Lock()
	var r rerolled
	var err error
	if s.lastResolved.IsZero() || now.Sub(s.lastResolved) > s.timeout {
		r, err = s.reroll(now)
	}
	if err == nil {
		s.lastResolved = now
	}
	current := s.current
	s.mu.Unlock()

	if err != nil {
		logRerollFailure(err)
		return "", err
	}
	if r.happened {
		r.log()
	} else {
		selectorLogger.Trace("Within debounce window, keeping %q", current)
	}
	return current, nil
}

// ForceReroll selects a new target regardless of the debounce window.
func (s *Selector) ForceReroll(now time.Time) error {
	s.mu.Lock()
	r, err := s.reroll(now)
	s.mu.Unlock()

	if err != nil {
		logRerollFailure(err)
		return err
	}
	r.log()
	return nil
}

// Retarget replaces the published target without any other state change.
// It is used when the current file was renamed.
func (s *Selector) Retarget(newPath string) {
	s.mu.Lock()
	old := s.current
	s.current = newPath
	s.mu.Unlock()

	selectorLogger.Debug("Retargeted %q -> %q", old, newPath)
}

// FileAdded tracks a file that appeared in the watched directory.
func (s *Selector) FileAdded(path string, now time.Time) error {
	s.mu.Lock()
	added := s.index.Add(path)
	files := s.index.Len()
	// leave the degraded state as soon as a file exists again
	recovering := added && s.current == NoTarget && !s.lastRerolled.IsZero()
	var r rerolled
	var err error
	if recovering {
		r, err = s.reroll(now)
	}
	s.mu.Unlock()

	if !added {
		selectorLogger.Trace("Already tracking %q", path)
		return nil
	}
	selectorLogger.Debug("Added %q (%d files)", path, files)
	if recovering {
		selectorLogger.Info("File %q appeared, leaving degraded state", path)
	}
	if err != nil {
		logRerollFailure(err)
		return err
	}
	r.log()
	return nil
}

// FileRemoved stops tracking a file and rerolls immediately if it was
// the published target.
func (s *Selector) FileRemoved(path string, now time.Time) error {
	s.mu.Lock()
	removed := s.index.Remove(path)
	files := s.index.Len()
	wasCurrent := removed && path == s.current
	var r rerolled
	var err error
	if wasCurrent {
		r, err = s.reroll(now)
	}
	s.mu.Unlock()

	if !removed {
		selectorLogger.Debug("Ignoring removal of untracked %q", path)
		return nil
	}
	selectorLogger.Debug("Removed %q (%d files)", path, files)
	if wasCurrent {
		selectorLogger.Info("Published target %q was removed, rerolling", path)
	}
	if err != nil {
		logRerollFailure(err)
		return err
	}
	r.log()
	return nil
}

// FileRenamed follows a rename in the watched directory. If the renamed
// file is the published target, the target follows the new name and no
// reroll happens.
func (s *Selector) FileRenamed(oldPath, newPath string, now time.Time) error {
	s.mu.Lock()
	wasCurrent := oldPath == s.current
	wasDegraded := s.current == NoTarget && !s.lastRerolled.IsZero()
	s.index.Rename(oldPath, newPath)
	files := s.index.Len()
	var r rerolled
	var err error
	switch {
	case wasCurrent:
		s.current = newPath
	case wasDegraded:
		r, err = s.reroll(now)
	}
	s.mu.Unlock()

	selectorLogger.Debug("Renamed %q -> %q (%d files)", oldPath, newPath, files)
	if wasCurrent {
		selectorLogger.Debug("Retargeted %q -> %q", oldPath, newPath)
	}
	if err != nil {
		logRerollFailure(err)
		return err
	}
	r.log()
	return nil
}

// Mode reports whether any file is tracked.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode()
}

// Snapshot returns a copy of the selection state. Before the first
// resolution Current is NoTarget even when files are tracked, since
// nothing has been selected yet.
func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Current:      s.current,
		Previous:     s.previous,
		LastResolved: s.lastResolved,
		LastRerolled: s.lastRerolled,
		Files:        s.index.Len(),
		Mode:         s.mode(),
	}
}

func (s *Selector) mode() Mode {
	if s.index.Len() == 0 {
		return ModeDegraded
	}
	return ModeActive
}

// rerolled records a target change made under the lock.
type rerolled struct {
	happened bool
	from, to string
}

func (r rerolled) log() {
	if !r.happened {
		return
	}
	selectorLogger.Debug("Rerolled %q -> %q", r.from, r.to)
}

func logRerollFailure(err error) {
	selectorLogger.Error("Failed to select next target: %v", err)
}

// reroll must be called with s.mu held.
func (s *Selector) reroll(now time.Time) (rerolled, error) {
	next, err := s.index.Next(s.current, !s.preventRepeats)
	if err != nil {
		return rerolled{}, err
	}

	s.previous = s.current
	s.current = next
	s.lastRerolled = now
	return rerolled{happened: true, from: s.previous, to: next}, nil
}
