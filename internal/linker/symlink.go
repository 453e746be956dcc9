package linker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureLink makes destination a relative symlink to source. It returns
// false without touching the filesystem when source is not a regular file.
// An existing file or link at destination is removed first.
func EnsureLink(source, destination string) (bool, error) {
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return false, nil //nolint:nilerr // a missing source is a skip, not a failure
	}

	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // media folders are shared with the media servers
		return false, fmt.Errorf("failed to create destination directory: %w", err)
	}

	target, err := filepath.Rel(dir, source)
	if err != nil {
		return false, fmt.Errorf("failed to compute relative link target: %w", err)
	}

	if _, err := os.Lstat(destination); err == nil {
		if err := os.Remove(destination); err != nil {
			return false, fmt.Errorf("failed to remove existing destination: %w", err)
		}
	}

	if err := os.Symlink(target, destination); err != nil {
		return false, fmt.Errorf("failed to create symlink: %w", err)
	}
	return true, nil
}

// PruneBrokenSymlinks removes every symlink under root whose target does not
// resolve. Subdirectories are handled before their parent's entries and
// individual failures are ignored. It returns the number of links removed.
func PruneBrokenSymlinks(root string) int {
	return pruneDir(root)
}

func pruneDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			removed += pruneDir(filepath.Join(dir, e.Name()))
		}
	}

	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	return removed
}
