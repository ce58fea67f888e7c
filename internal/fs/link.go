package fs

import (
	"context"

	"ritsufs/internal/logging"

	"bazil.org/fuse"
)

var (
	linkLogger = logging.GetLogger().WithPrefix("link")
)

// Link is the symbolic link whose target changes between resolutions.
type Link struct {
	fs   *RitsuFS
	path *VirtualPath
}

// Attr implements the Node interface, returning the link's attributes.
func (l *Link) Attr(_ context.Context, a *fuse.Attr) error {
	linkLogger.Trace("Getting attributes for link: %q", l.path.String())

	attrs, err := l.fs.adapter.GetAttributes(l.path.String())
	if err != nil {
		return ToFuseError(err)
	}
	l.fs.fillAttr(attrs, a)
	// size follows the target, so the kernel must not cache it
	a.Valid = 0

	linkLogger.Trace("Link attributes: mode=%v, size=%d, mtime=%v", a.Mode, a.Size, a.Mtime)
	return nil
}

// Readlink implements the NodeReadlinker interface, resolving the link.
func (l *Link) Readlink(_ context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	target, err := l.fs.adapter.ReadLink(l.path.String())
	if err != nil {
		linkLogger.Error("Failed to resolve %q: %v", l.path.String(), err)
		return "", ToFuseError(err)
	}

	linkLogger.Debug("Resolved %q -> %q", l.path.String(), target)
	return target, nil
}
