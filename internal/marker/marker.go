// Package marker keeps the per-artifact sidecar that records which release an
// installed file came from.
package marker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Suffix is appended to an artifact path to name its sidecar.
const Suffix = ".mcose.json"

// Marker is the sidecar content. SHA256 is recorded for diagnostics only and
// is never compared.
type Marker struct {
	Tag         string `json:"tag"`
	Asset       string `json:"asset"`
	URL         string `json:"url"`
	InstalledAt int64  `json:"installedAt"`
	SHA256      string `json:"sha256,omitempty"`
}

// Path returns the sidecar path for an artifact.
func Path(artifactPath string) string {
	return artifactPath + Suffix
}

// Write atomically replaces the sidecar of artifactPath.
func Write(artifactPath, tag, asset, url, sha string) error {
	m := Marker{
		Tag:         tag,
		Asset:       asset,
		URL:         url,
		InstalledAt: time.Now().UnixMilli(),
		SHA256:      sha,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}

	dst := Path(artifactPath)
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create marker temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to replace marker %s: %w", dst, err)
	}
	return nil
}

// Read returns the sidecar of artifactPath. A missing or unreadable sidecar
// reports false.
func Read(artifactPath string) (*Marker, bool) {
	data, err := os.ReadFile(Path(artifactPath))
	if err != nil {
		return nil, false
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil || m.Tag == "" {
		return nil, false
	}
	return &m, true
}

// IsUpToDate reports whether artifactPath carries a sidecar for latestTag.
func IsUpToDate(artifactPath, latestTag string) bool {
	if artifactPath == "" || latestTag == "" {
		return false
	}
	m, ok := Read(artifactPath)
	return ok && m.Tag == latestTag
}

// Move renames the sidecar of from so it sits next to to. A missing sidecar
// is not an error.
func Move(from, to string) error {
	err := os.Rename(Path(from), Path(to))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to move marker: %w", err)
	}
	return nil
}
