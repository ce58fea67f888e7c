package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Scan lists the regular files directly inside dir as absolute paths.
// Symbolic links count when they resolve to a regular file.
func Scan(fsys afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if !IsRegular(fsys, full, entry) {
			indexLogger.Trace("Skipping non-regular entry %q", full)
			continue
		}
		files = append(files, full)
	}

	indexLogger.Debug("Scanned %s: %d regular files out of %d entries", dir, len(files), len(entries))
	return files, nil
}

// IsRegular reports whether path is a regular file, following a symbolic
// link if info describes one. A nil info is fetched with Stat.
func IsRegular(fsys afero.Fs, path string, info os.FileInfo) bool {
	if info == nil || info.Mode()&os.ModeSymlink != 0 {
		resolved, err := fsys.Stat(path)
		if err != nil {
			return false
		}
		info = resolved
	}
	return info.Mode().IsRegular()
}
