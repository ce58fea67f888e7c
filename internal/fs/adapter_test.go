package fs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ritsufs/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

var testFiles = []string{"/src/a.png", "/src/b.png", "/src/c.png"}

func newTestAdapter(t *testing.T, files []string) (*Adapter, *state.Selector, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	selector := state.NewSelector(state.NewFileIndex(files, true, nil), state.Options{
		Timeout:        100 * time.Millisecond,
		PreventRepeats: true,
	})
	return NewAdapter(selector, "ritsu", clock.Now), selector, clock
}

func TestAdapterRootAttributes(t *testing.T) {
	adapter, _, clock := newTestAdapter(t, testFiles)
	mounted := clock.Now()

	attrs, err := adapter.GetAttributes("/")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, attrs.Kind)
	assert.Equal(t, rootMode, attrs.Mode)
	assert.True(t, attrs.Mode.IsDir())
	assert.EqualValues(t, 2, attrs.Nlink)
	assert.Equal(t, mounted, attrs.Atime)
	assert.Equal(t, mounted, attrs.Mtime)
	assert.Equal(t, mounted, attrs.Ctime)

	listed := clock.Advance(time.Second)
	_, err = adapter.ListDirectory("/")
	require.NoError(t, err)
	clock.Advance(time.Second)

	attrs, err = adapter.GetAttributes("/")
	require.NoError(t, err)
	assert.True(t, listed.Equal(attrs.Atime))
	assert.Equal(t, mounted, attrs.Mtime, "the root never changes")
}

func TestAdapterLinkAttributes(t *testing.T) {
	adapter, _, clock := newTestAdapter(t, testFiles)
	mounted := clock.Now()

	attrs, err := adapter.GetAttributes("/ritsu")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, attrs.Kind)
	assert.Equal(t, linkMode, attrs.Mode)
	assert.Equal(t, mounted, attrs.Atime)
	assert.Equal(t, mounted, attrs.Mtime)

	rerolled := clock.Advance(time.Second)
	target, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)

	resolved := clock.Advance(50 * time.Millisecond)
	again, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.Equal(t, target, again)

	attrs, err = adapter.GetAttributes("/ritsu")
	require.NoError(t, err)
	assert.EqualValues(t, len(target), attrs.Size)
	assert.Equal(t, resolved, attrs.Atime)
	assert.Equal(t, rerolled, attrs.Mtime)
	assert.Equal(t, rerolled, attrs.Ctime)
}

func TestAdapterListDirectory(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, testFiles)

	entries, err := adapter.ListDirectory("/")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
		if e.Name == "ritsu" {
			assert.Equal(t, KindSymlink, e.Kind)
		}
	}
	assert.ElementsMatch(t, []string{".", "..", "ritsu"}, names)
}

func TestAdapterNotFound(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, testFiles)

	for _, p := range []string{"/other", "/ritsu/inside", "/ritsu2", "ritsu", "/ritsu/", "/x/../ritsu", "//ritsu", ""} {
		_, err := adapter.GetAttributes(p)
		assert.True(t, errors.Is(err, ErrPathNotFound), "getattr %s: %v", p, err)
		_, err = adapter.ReadLink(p)
		assert.True(t, errors.Is(err, ErrPathNotFound), "readlink %s: %v", p, err)
	}

	_, err := adapter.ReadLink("/")
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = adapter.ListDirectory("/ritsu")
	assert.ErrorIs(t, err, ErrPathNotFound)
	for _, p := range []string{"//", "", "/.", "/x/.."} {
		_, err = adapter.ListDirectory(p)
		assert.ErrorIs(t, err, ErrPathNotFound, "readdir %q", p)
		_, err = adapter.GetAttributes(p)
		assert.ErrorIs(t, err, ErrPathNotFound, "getattr %q", p)
	}
}

func TestAdapterLookup(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, testFiles)

	attrs, err := adapter.Lookup("/", "ritsu")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, attrs.Kind)
	assert.Equal(t, linkInode, attrs.Inode)

	for _, tc := range []struct{ dir, name string }{
		{"/", "other"},
		{"/", "ritsu2"},
		{"/ritsu", "ritsu"},
		{"/", ""},
	} {
		_, err := adapter.Lookup(tc.dir, tc.name)
		var fsErr *Error
		require.ErrorAs(t, err, &fsErr, "lookup %q in %q", tc.name, tc.dir)
		assert.Equal(t, OpLookup, fsErr.Op)
		assert.ErrorIs(t, err, ErrPathNotFound)
	}
}

func TestAdapterReadLinkDebounce(t *testing.T) {
	adapter, _, clock := newTestAdapter(t, testFiles)

	first, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.Contains(t, testFiles, first)

	clock.Advance(100 * time.Millisecond)
	same, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.Equal(t, first, same)

	clock.Advance(101 * time.Millisecond)
	next, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.NotEqual(t, first, next)
}

func TestAdapterFollowsDirectoryChanges(t *testing.T) {
	adapter, selector, clock := newTestAdapter(t, testFiles)

	current, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)

	require.NoError(t, selector.FileRemoved(current, clock.Advance(time.Millisecond)))
	after, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.NotEqual(t, current, after, "deleted target must be replaced inside the window")

	require.NoError(t, selector.FileRenamed(after, "/src/renamed.png", clock.Advance(time.Millisecond)))
	renamed, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.Equal(t, "/src/renamed.png", renamed)

	attrs, err := adapter.GetAttributes("/ritsu")
	require.NoError(t, err)
	assert.EqualValues(t, len("/src/renamed.png"), attrs.Size)
}

func TestAdapterDegraded(t *testing.T) {
	adapter, selector, clock := newTestAdapter(t, []string{"/src/last.png"})

	_, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	require.NoError(t, selector.FileRemoved("/src/last.png", clock.Advance(time.Millisecond)))

	target, err := adapter.ReadLink("/ritsu")
	require.NoError(t, err)
	assert.Equal(t, state.NoTarget, target)

	attrs, err := adapter.GetAttributes("/ritsu")
	require.NoError(t, err)
	assert.EqualValues(t, len(state.NoTarget), attrs.Size)
}
