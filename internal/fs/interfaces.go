// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Directory represents the root directory of the mount
type Directory interface {
	fs.Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
}

// Symlink represents the published link
type Symlink interface {
	fs.Node
	fs.NodeReadlinker
}

var (
	_ fs.FS     = (*RitsuFS)(nil)
	_ Directory = (*Dir)(nil)
	_ Symlink   = (*Link)(nil)
)
