package fs

import (
	"os"
	"sync/atomic"
	"time"

	"ritsufs/internal/logging"
	"ritsufs/internal/state"
)

var (
	adapterLogger = logging.GetLogger().WithPrefix("adapter")
)

const (
	rootInode uint64 = 1
	linkInode uint64 = 2

	rootMode = os.ModeDir | 0555
	linkMode = os.ModeSymlink | 0444
)

// NodeKind tells directory and symlink entries apart.
type NodeKind int

const (
	KindDirectory NodeKind = iota
	KindSymlink
)

// Attributes describes a node independently of the FUSE binding.
type Attributes struct {
	Kind  NodeKind
	Inode uint64
	Mode  os.FileMode
	Nlink uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name  string
	Inode uint64
	Kind  NodeKind
}

// Adapter answers the three supported operations (attributes, listing
// and link resolution) from the selector state. It is safe for
// concurrent use.
type Adapter struct {
	selector  *state.Selector
	linkName  string
	linkPath  string
	mountedAt time.Time
	now       func() time.Time

	// unix nanoseconds of the last root listing, 0 before the first one
	lastListed atomic.Int64
}

// NewAdapter creates an adapter publishing selector's target under
// /linkName. A nil now uses time.Now; the mount start time is taken
// from it.
func NewAdapter(selector *state.Selector, linkName string, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	a := &Adapter{
		selector:  selector,
		linkName:  linkName,
		linkPath:  "/" + linkName,
		mountedAt: now(),
		now:       now,
	}
	adapterLogger.Debug("Adapter ready, link at %q", a.linkPath)
	return a
}

// GetAttributes describes the root directory or the link. Paths are
// matched exactly: only "/" and "/<link name>" exist.
func (a *Adapter) GetAttributes(path string) (Attributes, error) {
	switch path {
	case "/":
		return Attributes{
			Kind:  KindDirectory,
			Inode: rootInode,
			Mode:  rootMode,
			Nlink: 2,
			Atime: a.orMounted(a.lastListedAt()),
			Mtime: a.mountedAt,
			Ctime: a.mountedAt,
		}, nil
	case a.linkPath:
		// before the first resolution the size is that of NoTarget
		snap := a.selector.Snapshot()
		changed := a.orMounted(snap.LastRerolled)
		return Attributes{
			Kind:  KindSymlink,
			Inode: linkInode,
			Mode:  linkMode,
			Nlink: 1,
			Size:  uint64(len(snap.Current)),
			Atime: a.orMounted(snap.LastResolved),
			Mtime: changed,
			Ctime: changed,
		}, nil
	}
	return Attributes{}, NewFSError(OpGetattr, path, ErrPathNotFound)
}

// Lookup finds name inside dir. The link is the only child of the root.
func (a *Adapter) Lookup(dir, name string) (Attributes, error) {
	if dir != "/" || name != a.linkName {
		return Attributes{}, NewFSError(OpLookup, NewVirtualPath(dir).Join(name).String(), ErrPathNotFound)
	}
	return a.GetAttributes(a.linkPath)
}

// ListDirectory lists the root: ".", ".." and the link.
func (a *Adapter) ListDirectory(path string) ([]DirEntry, error) {
	if path != "/" {
		return nil, NewFSError(OpReadDir, path, ErrPathNotFound)
	}

	a.lastListed.Store(a.now().UnixNano())
	return []DirEntry{
		{Name: ".", Inode: rootInode, Kind: KindDirectory},
		{Name: "..", Kind: KindDirectory},
		{Name: a.linkName, Inode: linkInode, Kind: KindSymlink},
	}, nil
}

// ReadLink resolves the link to the current target, rerolling when the
// debounce window has passed.
func (a *Adapter) ReadLink(path string) (string, error) {
	if path != a.linkPath {
		return "", NewFSError(OpReadlink, path, ErrPathNotFound)
	}

	target, err := a.selector.Resolve(a.now())
	if err != nil {
		return "", NewFSError(OpReadlink, path, err)
	}
	adapterLogger.Trace("Resolved %q -> %q", path, target)
	return target, nil
}

func (a *Adapter) lastListedAt() time.Time {
	ns := a.lastListed.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (a *Adapter) orMounted(t time.Time) time.Time {
	if t.IsZero() {
		return a.mountedAt
	}
	return t
}
