package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FirstExisting returns the first of paths that can be stat'ed, following
// symlinks, or "" when none exist.
func FirstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// JoinAll joins every relative name onto base, keeping the order.
func JoinAll(base string, names []string) []string {
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(base, name)
	}
	return paths
}

// ConfigSearchPaths lists where a config file called filename is looked
// for: the working directory, ./config and /etc/counterhook.
func ConfigSearchPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join("/etc/counterhook", filename),
	}
}

// FindConfig returns the first existing config file called filename, or "".
func FindConfig(filename string) string {
	return FirstExisting(ConfigSearchPaths(filename))
}

// FirstFileWithSuffix returns the first regular file directly inside dir
// whose name ends in suffix, in lexical order. An empty string and a nil
// error mean dir exists but holds no match.
func FirstFileWithSuffix(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
