package fs

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"ritsufs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// RitsuFS is the FUSE binding of an Adapter: a read-only root directory
// holding a single symbolic link.
type RitsuFS struct {
	adapter *Adapter   // Answers attribute, listing and readlink requests
	conn    *fuse.Conn // FUSE connection
	uid     uint32     // User ID reported for every node
	gid     uint32     // Group ID reported for every node
	mounted bool       // Whether the mount point is still attached
	mu      sync.Mutex // Protects conn and mounted
}

// NewRitsuFS creates a new filesystem instance serving adapter.
func NewRitsuFS(adapter *Adapter) *RitsuFS {
	vfsLogger.Info("Creating new virtual filesystem")

	// Get UID/GID from environment if set
	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			vfsLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			vfsLogger.Debug("Using PGID from environment: %d", gid)
		}
	}

	return &RitsuFS{
		adapter: adapter,
		uid:     uid,
		gid:     gid,
	}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (rfs *RitsuFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{
		fs:   rfs,
		path: NewVirtualPath("/"),
	}, nil
}

// MountOptions returns the options every ritsufs mount uses.
func MountOptions(allowOther bool) []fuse.MountOption {
	opts := []fuse.MountOption{
		fuse.FSName("ritsufs"),
		fuse.Subtype("ritsufs"),
		fuse.ReadOnly(),
		fuse.DefaultPermissions(),
	}
	if allowOther {
		opts = append(opts, fuse.AllowOther())
	}
	return opts
}

// Mount mounts the filesystem at mountPoint. Serve must be called
// afterwards to answer requests.
func (rfs *RitsuFS) Mount(mountPoint string, opts []fuse.MountOption) error {
	vfsLogger.Info("Mounting virtual filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("UID: %d, GID: %d", rfs.uid, rfs.gid)
	vfsLogger.Debug("Mounting with %d options", len(opts))

	c, err := fuse.Mount(mountPoint, opts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}

	rfs.mu.Lock()
	rfs.conn = c
	rfs.mounted = true
	rfs.mu.Unlock()

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Serve answers FUSE requests until the filesystem is unmounted.
func (rfs *RitsuFS) Serve() error {
	rfs.mu.Lock()
	c := rfs.conn
	rfs.mu.Unlock()
	if c == nil {
		return fmt.Errorf("filesystem is not mounted")
	}

	vfsLogger.Info("Serving filesystem...")
	if err := fusefs.Serve(c, rfs); err != nil {
		return fmt.Errorf("FUSE server error: %w", err)
	}

	// a clean return means the kernel already detached the mount
	rfs.mu.Lock()
	rfs.mounted = false
	rfs.mu.Unlock()
	vfsLogger.Debug("FUSE server stopped")
	return nil
}

// Unmount detaches the filesystem from mountPoint. It does nothing once
// the mount is gone, so it can be deferred and also called on a signal.
func (rfs *RitsuFS) Unmount(mountPoint string) error {
	rfs.mu.Lock()
	defer rfs.mu.Unlock()
	if !rfs.mounted {
		vfsLogger.Debug("%s is not mounted, nothing to unmount", mountPoint)
		return nil
	}

	vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if err := fuse.Unmount(mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	rfs.mounted = false
	vfsLogger.Info("Unmount completed successfully")
	return nil
}

// Close releases the FUSE connection.
func (rfs *RitsuFS) Close() error {
	rfs.mu.Lock()
	defer rfs.mu.Unlock()
	if rfs.conn == nil {
		return nil
	}
	err := rfs.conn.Close()
	rfs.conn = nil
	return err
}

// fillAttr copies adapter attributes into a FUSE attribute reply.
func (rfs *RitsuFS) fillAttr(attrs Attributes, a *fuse.Attr) {
	a.Inode = attrs.Inode
	a.Mode = attrs.Mode
	a.Nlink = attrs.Nlink
	a.Size = attrs.Size
	a.Atime = attrs.Atime
	a.Mtime = attrs.Mtime
	a.Ctime = attrs.Ctime
	a.Uid = rfs.uid
	a.Gid = rfs.gid
}
