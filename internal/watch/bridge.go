// Package watch forwards changes of the source directory to the selector.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"ritsufs/internal/logging"
	"ritsufs/internal/state"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DefaultRenamePairWindow is how long a rename waits for the matching
// create of the new name before it is treated as a removal.
//
// Pairing is by arrival order only. A file moved out of the directory
// followed inside the window by an unrelated new file is reported as a
// rename of the first into the second: the published target stays a
// tracked file, but it follows the new file instead of being rerolled.
// fsnotify does not expose the inotify cookie that would tell the two
// cases apart.
const DefaultRenamePairWindow = 50 * time.Millisecond

var (
	logger = logging.GetLogger().WithPrefix("watch")
)

// Sink receives the translated directory changes.
type Sink interface {
	FileAdded(path string, now time.Time) error
	FileRemoved(path string, now time.Time) error
	FileRenamed(oldPath, newPath string, now time.Time) error
}

var _ Sink = (*state.Selector)(nil)

// Options controls bridge behavior.
type Options struct {
	// Fs is used to stat created entries. Defaults to the OS filesystem.
	Fs afero.Fs
	// RenamePairWindow defaults to DefaultRenamePairWindow.
	RenamePairWindow time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Metrics reports bridge counters.
type Metrics struct {
	EventsDelivered uint64
	Errors          uint64
}

// Bridge watches one directory and forwards create, remove and rename
// notifications to a Sink.
type Bridge struct {
	dir     string
	watcher *fsnotify.Watcher
	fs      afero.Fs
	window  time.Duration
	now     func() time.Time

	// pendingRename is only touched by the run goroutine
	pendingRename string

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	eventsDelivered atomic.Uint64
	errorCount      atomic.Uint64
}

// New starts watching dir. Events are queued until Start is called, so
// the initial scan can happen in between without losing changes.
func New(dir string, opts Options) (*Bridge, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	b := newBridge(dir, opts)
	b.watcher = w
	logger.Info("Watching %s", dir)
	return b, nil
}

func newBridge(dir string, opts Options) *Bridge {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.RenamePairWindow <= 0 {
		opts.RenamePairWindow = DefaultRenamePairWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bridge{
		dir:    filepath.Clean(dir),
		fs:     opts.Fs,
		window: opts.RenamePairWindow,
		now:    opts.Now,
		done:   make(chan struct{}),
	}
}

// Start delivers events to sink on a background goroutine until Close.
func (b *Bridge) Start(sink Sink) {
	b.wg.Add(1)
	go b.run(sink)
}

// Close stops the watcher and waits for the event goroutine to exit.
// It is safe to call more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		if b.watcher != nil {
			b.closeErr = b.watcher.Close()
		}
		b.wg.Wait()
		logger.Info("Stopped watching %s", b.dir)
	})
	return b.closeErr
}

// Metrics returns a copy of the bridge counters.
func (b *Bridge) Metrics() Metrics {
	return Metrics{
		EventsDelivered: b.eventsDelivered.Load(),
		Errors:          b.errorCount.Load(),
	}
}

func (b *Bridge) run(sink Sink) {
	defer b.wg.Done()

	timer := time.NewTimer(b.window)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				b.flushRename(sink)
				return
			}
			if b.handle(sink, event) {
				timer.Reset(b.window)
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.errorCount.Add(1)
			// the index keeps its last known state
			logger.Error("Watch error on %s: %v", b.dir, err)
		case <-timer.C:
			b.flushRename(sink)
		case <-b.done:
			return
		}
	}
}

// handle translates one fsnotify event. It reports whether a rename is
// now waiting for its pair.
func (b *Bridge) handle(sink Sink, event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	if filepath.Dir(path) != b.dir {
		logger.Trace("Ignoring event outside %s: %v", b.dir, event)
		return false
	}
	logger.Trace("Event: %v", event)

	switch {
	case event.Has(fsnotify.Create):
		regular := state.IsRegular(b.fs, path, nil)
		if old := b.pendingRename; old != "" {
			b.pendingRename = ""
			if regular {
				b.deliver("rename", sink.FileRenamed(old, path, b.now()))
				return false
			}
			b.deliver("remove", sink.FileRemoved(old, b.now()))
		}
		if !regular {
			logger.Debug("Ignoring non-regular entry %q", path)
			return false
		}
		b.deliver("add", sink.FileAdded(path, b.now()))
	case event.Has(fsnotify.Remove):
		b.flushRename(sink)
		b.deliver("remove", sink.FileRemoved(path, b.now()))
	case event.Has(fsnotify.Rename):
		b.flushRename(sink)
		b.pendingRename = path
		return true
	}
	return false
}

// flushRename turns an unpaired rename into a removal.
func (b *Bridge) flushRename(sink Sink) {
	if b.pendingRename == "" {
		return
	}
	old := b.pendingRename
	b.pendingRename = ""
	logger.Debug("%q was moved out of %s", old, b.dir)
	b.deliver("remove", sink.FileRemoved(old, b.now()))
}

func (b *Bridge) deliver(kind string, err error) {
	b.eventsDelivered.Add(1)
	if err != nil {
		b.errorCount.Add(1)
		logger.Error("Failed to apply %s event: %v", kind, err)
	}
}
