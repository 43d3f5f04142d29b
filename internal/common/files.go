package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsRegularFile reports whether path exists and is a regular file.
func IsRegularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// NewestFile returns the most recently modified regular file in dir for which
// keep returns true. A missing directory is not an error.
func NewestFile(dir string, keep func(name string) bool) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var (
		best     string
		bestTime int64
		found    bool
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || (keep != nil && !keep(entry.Name())) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if !found || mod > bestTime {
			best, bestTime, found = filepath.Join(dir, entry.Name()), mod, true
		}
	}
	return best, found, nil
}

// TrimExt strips the final extension from a path.
func TrimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
