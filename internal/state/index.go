package state

import (
	"fmt"
	"math/rand/v2"
	"time"

	"ritsufs/internal/logging"

	"github.com/samber/lo"
)

// maxDraws caps every rejection loop. With n >= 2 files a draw succeeds
// with probability at least 1/2, so reaching the cap means the random
// source is broken.
const maxDraws = 1000

var (
	indexLogger = logging.GetLogger().WithPrefix("index")
)

// FileIndex tracks the candidate files and, in queue mode, the files
// still pending in the current cycle. Every pending path is also tracked.
//
// FileIndex is not safe for concurrent use; the Selector owning it
// serializes all access. Its methods run under the selector lock and
// therefore never log or touch the filesystem.
type FileIndex struct {
	files    []string
	tracked  map[string]struct{}
	queue    []string
	useQueue bool
	rnd      Rand
}

// NewFileIndex creates an index over the given paths. Duplicates are
// dropped. A nil rnd selects a clock-seeded PCG source.
func NewFileIndex(paths []string, useQueue bool, rnd Rand) *FileIndex {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	idx := &FileIndex{
		tracked:  make(map[string]struct{}, len(paths)),
		useQueue: useQueue,
		rnd:      rnd,
	}
	for _, p := range lo.Uniq(paths) {
		idx.files = append(idx.files, p)
		idx.tracked[p] = struct{}{}
	}
	if useQueue {
		idx.queue = idx.permutation(idx.files)
	}

	indexLogger.Debug("Created index with %d files (queue=%v)", len(idx.files), useQueue)
	return idx
}

// Len returns the number of tracked files.
func (idx *FileIndex) Len() int {
	return len(idx.files)
}

// Contains reports whether path is tracked.
func (idx *FileIndex) Contains(path string) bool {
	_, ok := idx.tracked[path]
	return ok
}

// Files returns a copy of the tracked paths in insertion order.
func (idx *FileIndex) Files() []string {
	return append([]string(nil), idx.files...)
}

// Pending returns a copy of the pending queue, head first.
func (idx *FileIndex) Pending() []string {
	return append([]string(nil), idx.queue...)
}

// Add tracks path. In queue mode the pending queue is rebuilt as a fresh
// permutation of the remaining items plus path. It returns false if path
// was already tracked.
func (idx *FileIndex) Add(path string) bool {
	if idx.Contains(path) {
		return false
	}

	idx.files = append(idx.files, path)
	idx.tracked[path] = struct{}{}
	if idx.useQueue {
		idx.queue = idx.permutation(append(idx.queue, path))
	}

	return true
}

// Remove stops tracking path. In queue mode the path is dropped from the
// pending queue without reshuffling the rest. It returns false if path
// was not tracked.
func (idx *FileIndex) Remove(path string) bool {
	if !idx.Contains(path) {
		return false
	}

	idx.files = lo.Without(idx.files, path)
	delete(idx.tracked, path)
	if idx.useQueue {
		idx.queue = lo.Without(idx.queue, path)
	}

	return true
}

// Rename replaces oldPath with newPath in one step. In queue mode oldPath
// is filtered out of the pending queue, newPath appended, and the queue
// reshuffled.
func (idx *FileIndex) Rename(oldPath, newPath string) {
	if oldPath == newPath {
		return
	}

	if idx.Contains(oldPath) {
		idx.files = lo.Without(idx.files, oldPath)
		delete(idx.tracked, oldPath)
	}
	if !idx.Contains(newPath) {
		idx.files = append(idx.files, newPath)
		idx.tracked[newPath] = struct{}{}
	}

	if idx.useQueue {
		queue := lo.Without(idx.queue, oldPath, newPath)
		idx.queue = idx.permutation(append(queue, newPath))
	}
}

// Next returns the next candidate. With no files it returns NoTarget; with
// one file it returns that file even when repeats are forbidden. Otherwise
// the result differs from exclude unless allowRepeat is set.
func (idx *FileIndex) Next(exclude string, allowRepeat bool) (string, error) {
	switch len(idx.files) {
	case 0:
		return NoTarget, nil
	case 1:
		return idx.files[0], nil
	}

	if idx.useQueue {
		return idx.nextFromQueue(exclude, allowRepeat)
	}
	return idx.nextRandom(exclude, allowRepeat)
}

func (idx *FileIndex) nextRandom(exclude string, allowRepeat bool) (string, error) {
	for draw := 0; draw < maxDraws; draw++ {
		candidate := idx.files[idx.rnd.IntN(len(idx.files))]
		if allowRepeat || candidate != exclude {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("random draw over %d files: %w", len(idx.files), ErrSelectionExhausted)
}

func (idx *FileIndex) nextFromQueue(exclude string, allowRepeat bool) (string, error) {
	if !allowRepeat {
		// the published target counts as visited for this cycle
		idx.queue = lo.Without(idx.queue, exclude)
	}

	if len(idx.queue) == 0 {
		queue, err := idx.newCycle(exclude, allowRepeat)
		if err != nil {
			return "", err
		}
		idx.queue = queue
	}

	head := idx.queue[0]
	idx.queue = idx.queue[1:]
	return head, nil
}

// newCycle generates permutations of all files until the head differs
// from exclude when repeats are forbidden.
func (idx *FileIndex) newCycle(exclude string, allowRepeat bool) ([]string, error) {
	for draw := 0; draw < maxDraws; draw++ {
		queue := idx.permutation(idx.files)
		if allowRepeat || queue[0] != exclude {
			return queue, nil
		}
	}
	return nil, fmt.Errorf("queue cycle over %d files: %w", len(idx.files), ErrSelectionExhausted)
}

// permutation returns a shuffled copy of paths (Fisher-Yates).
func (idx *FileIndex) permutation(paths []string) []string {
	out := append([]string(nil), paths...)
	for i := len(out) - 1; i > 0; i-- {
		j := idx.rnd.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
