package selfupdate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
)

// VersionDocPath is the redundant version record under the installation root.
var VersionDocPath = filepath.Join("tools", "mod-updater", "version.json")

type versionDoc struct {
	Launcher string `json:"launcher"`
}

// VersionFile is the bare-text version sidecar of exe.
func VersionFile(exe string) string {
	return common.TrimExt(exe) + versionSuffix
}

// RecordedVersion returns the version recorded for exe, preferring the
// document under root over the sidecar. Empty when neither is readable.
func RecordedVersion(exe, root string) string {
	if root != "" {
		if data, err := os.ReadFile(filepath.Join(root, VersionDocPath)); err == nil {
			var doc versionDoc
			if json.Unmarshal(data, &doc) == nil && strings.TrimSpace(doc.Launcher) != "" {
				return strings.TrimSpace(doc.Launcher)
			}
		}
	}
	if data, err := os.ReadFile(VersionFile(exe)); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	return ""
}

// DetectVersion is RecordedVersion falling back to the build version.
func DetectVersion(exe, root, build string) string {
	if v := RecordedVersion(exe, root); v != "" {
		return v
	}
	return build
}

// RecordVersion writes tag to both version records. Both are attempted.
func RecordVersion(exe, root, tag string) error {
	var errs []error
	if err := os.WriteFile(VersionFile(exe), []byte(tag), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("write version sidecar: %w", err))
	}
	if root != "" {
		p := filepath.Join(root, VersionDocPath)
		data, _ := json.Marshal(versionDoc{Launcher: tag})
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			errs = append(errs, err)
		} else if err := os.WriteFile(p, data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write version document: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ClearVersion removes both version records of exe.
func ClearVersion(exe, root string) error {
	paths := []string{VersionFile(exe)}
	if root != "" {
		paths = append(paths, filepath.Join(root, VersionDocPath))
	}
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsNewer reports whether remote should replace current. Two semantic
// versions are ordered so an older remote is never installed; anything else
// updates whenever the tags differ.
func IsNewer(current, remote string) bool {
	remote = strings.TrimSpace(remote)
	current = strings.TrimSpace(current)
	if remote == "" {
		return false
	}
	if current == "" {
		return true
	}
	cv, cerr := semver.NewVersion(current)
	rv, rerr := semver.NewVersion(remote)
	if cerr == nil && rerr == nil {
		return rv.GreaterThan(cv)
	}
	return current != remote
}
