package fs

import (
	"context"

	"ritsufs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir is the root directory of the mount. It holds nothing but the link.
type Dir struct {
	fs   *RitsuFS
	path *VirtualPath
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting attributes for directory: %q", d.path.String())

	attrs, err := d.fs.adapter.GetAttributes(d.path.String())
	if err != nil {
		return ToFuseError(err)
	}
	d.fs.fillAttr(attrs, a)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.path.String())
	childPath := d.path.Join(name)

	attrs, err := d.fs.adapter.Lookup(d.path.String(), name)
	if err != nil {
		dirLogger.Debug("Path not found: %q", childPath.String())
		return nil, ToFuseError(err)
	}

	if attrs.Kind == KindSymlink {
		return &Link{fs: d.fs, path: childPath}, nil
	}
	return &Dir{fs: d.fs, path: childPath}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path.String())

	listing, err := d.fs.adapter.ListDirectory(d.path.String())
	if err != nil {
		return nil, ToFuseError(err)
	}

	entries := make([]fuse.Dirent, 0, len(listing))
	for _, entry := range listing {
		dirent := fuse.Dirent{Inode: entry.Inode, Name: entry.Name, Type: fuse.DT_Dir}
		if entry.Kind == KindSymlink {
			dirent.Type = fuse.DT_Link
		}
		entries = append(entries, dirent)
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path.String(), len(entries))
	return entries, nil
}
