// Package optional installs extra libraries that improve the game but are
// never required for an update to succeed.
package optional

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

type Status int

const (
	Present Status = iota
	Installed
)

func (s Status) String() string {
	if s == Installed {
		return "installed"
	}
	return "present"
}

// Component is one library file.
type Component struct {
	Name string
	URL  string
	// Dir receives the file.
	Dir string
	// Probe is a name fragment; a .jar containing it in Dir or any of
	// AlsoIn counts as already installed.
	Probe  string
	AlsoIn []string
}

// Fetcher downloads a URL into dir.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error)
}

// Ensure installs c unless it is already there.
func Ensure(ctx context.Context, fetcher Fetcher, c Component, span progress.Span) (Status, error) {
	logger := logrus.WithFields(logrus.Fields{"component": "optional", "name": c.Name})

	dest := filepath.Join(c.Dir, c.Name)
	if common.IsRegularFile(dest) {
		logger.Debug("Optional component already installed")
		return Present, nil
	}
	for _, dir := range c.AlsoIn {
		if found, ok := findProbe(dir, c.Probe); ok {
			logger.WithField("path", found).Debug("Optional component provided elsewhere")
			return Present, nil
		}
	}

	pm := common.NewPermissionManager(c.Dir, 0o755, 0o644, logger)
	if err := pm.EnsureBaseDirectory(); err != nil {
		return Present, err
	}

	if span.Reporter != nil {
		span.Reporter.SetPhase("Installing " + c.Name)
	}
	dl, err := fetcher.Fetch(ctx, c.URL, c.Dir, span)
	if err != nil {
		return Present, fmt.Errorf("download %s: %w", c.Name, err)
	}
	defer dl.Remove()

	if err := common.MoveFile(logger, dl.Path, dest); err != nil {
		return Present, err
	}
	logger.WithField("path", dest).Info("Optional component installed")
	return Installed, nil
}

func findProbe(dir, probe string) (string, bool) {
	if probe == "" {
		return "", false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.Contains(name, probe) && strings.HasSuffix(strings.ToLower(name), ".jar") {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}
