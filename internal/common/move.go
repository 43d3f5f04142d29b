package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// MoveFile moves src over dst. A plain rename is tried first; when that fails
// (cross-device, or a destination the platform refuses to replace) the content
// is copied into a scratch file beside dst, synced and renamed over dst, so
// dst never holds a partial copy. The source is removed afterwards.
func MoveFile(logger *logrus.Entry, src, dst string) error {
	// First try rename (fast path)
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	logger.WithError(renameErr).Debug("Rename failed, falling back to copy+delete")

	scratch, err := CopyToScratch(src, filepath.Dir(dst), filepath.Base(dst))
	if err != nil {
		return err
	}

	if err := os.Rename(scratch, dst); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}

	if err := os.Remove(src); err != nil {
		logger.WithError(err).Warning("Failed to remove source file after copy")
		// Don't return error, file was copied successfully
	}
	return nil
}

// CopyFile copies src to dst through a scratch file, leaving src in place.
func CopyFile(src, dst string) error {
	scratch, err := CopyToScratch(src, filepath.Dir(dst), filepath.Base(dst))
	if err != nil {
		return err
	}
	if err := os.Rename(scratch, dst); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return nil
}

// CopyToScratch copies src into a new hidden file in dir and returns its path.
// The file is synced before returning. On failure nothing is left behind.
func CopyToScratch(src, dir, name string) (string, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	scratch := dstFile.Name()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(scratch) // Clean up on failure
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	// Sync to ensure data is written
	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		os.Remove(scratch)
		return "", fmt.Errorf("failed to sync file: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(scratch)
		return "", fmt.Errorf("failed to close scratch file: %w", err)
	}

	if info, err := srcFile.Stat(); err == nil {
		_ = os.Chmod(scratch, info.Mode().Perm())
	}
	return scratch, nil
}

// UniqueSuffixPath returns path + "." + tag + "." + <epoch-millis>, bumping
// the stamp until the name is unused.
func UniqueSuffixPath(path, tag string, now time.Time) string {
	stamp := now.UnixMilli()
	for {
		candidate := path + "." + tag + "." + strconv.FormatInt(stamp, 10)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		stamp++
	}
}
