// Package selfupdate replaces the agent's own executable. A new build is
// staged next to the executable as <exe>.pending and moved into place either
// immediately or by a later process once the running one has exited.
package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
)

const (
	pendingSuffix        = ".pending"
	versionSuffix        = ".version"
	versionPendingSuffix = ".version.pending"
	oldSuffix            = ".old"
)

// Outcome of a promotion attempt.
type Outcome int

const (
	NothingToDo Outcome = iota
	Promoted
)

func (o Outcome) String() string {
	if o == Promoted {
		return "promoted"
	}
	return "nothing-to-do"
}

// Stager owns the staging files of one executable.
type Stager struct {
	exe     string
	root    string
	logger  *logrus.Entry
	perms   *common.PermissionManager
	replace func(src, dst string) error
}

// NewStager manages exe; root is the installation root holding
// tools/mod-updater/version.json.
func NewStager(exe, root string) *Stager {
	logger := logrus.WithField("component", "self-update")
	s := &Stager{
		exe:    exe,
		root:   root,
		logger: logger,
		perms:  common.NewPermissionManager(filepath.Dir(exe), 0o755, 0o755, logger),
	}
	s.replace = func(src, dst string) error {
		return replaceExecutable(logger, src, dst)
	}
	return s
}

func (s *Stager) Executable() string { return s.exe }

// PendingPath is the staged payload.
func (s *Stager) PendingPath() string { return s.exe + pendingSuffix }

// VersionPendingPath is the staged payload's tag.
func (s *Stager) VersionPendingPath() string {
	return common.TrimExt(s.exe) + versionPendingSuffix
}

// HasPending reports whether a payload is waiting for promotion.
func (s *Stager) HasPending() bool {
	return common.IsRegularFile(s.PendingPath())
}

// Stage moves payload to the pending path, records tag next to it and tries
// to promote right away. A failed promotion is not an error: the staged files
// stay for the deferred promoter and promoted is false.
func (s *Stager) Stage(payload, tag string) (bool, error) {
	if err := s.perms.EnsureBaseDirectory(); err != nil {
		return false, err
	}
	if err := common.MoveFile(s.logger, payload, s.PendingPath()); err != nil {
		return false, fmt.Errorf("failed to stage update: %w", err)
	}

	tag = strings.TrimSpace(tag)
	if tag != "" {
		if err := os.WriteFile(s.VersionPendingPath(), []byte(tag), 0o644); err != nil {
			return false, fmt.Errorf("failed to stage version: %w", err)
		}
	} else {
		os.Remove(s.VersionPendingPath())
	}
	s.logger.WithFields(logrus.Fields{"tag": tag, "pending": s.PendingPath()}).Info("Update staged")

	if _, err := s.Promote(); err != nil {
		s.logger.WithError(err).Warn("Could not replace executable now, promotion deferred")
		return false, nil
	}
	return true, nil
}

// Promote moves a staged payload over the executable, records its version and
// deletes the staging files. Without a staged payload it does nothing. On
// failure the staging files are left intact.
func (s *Stager) Promote() (Outcome, error) {
	pending := s.PendingPath()
	if !s.HasPending() {
		return NothingToDo, nil
	}

	if err := s.replace(pending, s.exe); err != nil {
		return NothingToDo, fmt.Errorf("failed to replace %s: %w", s.exe, err)
	}
	if err := s.perms.SetBinaryPermissions(s.exe); err != nil {
		s.logger.WithError(err).Warn("Promoted executable is not marked executable")
	}

	tag := ""
	if data, err := os.ReadFile(s.VersionPendingPath()); err == nil {
		tag = strings.TrimSpace(string(data))
	}
	if tag != "" {
		if err := RecordVersion(s.exe, s.root, tag); err != nil {
			s.logger.WithError(err).Warn("Failed to record promoted version")
		}
	} else {
		// The old records describe the replaced build.
		s.logger.Warn("Promoted build has no version, clearing recorded version")
		if err := ClearVersion(s.exe, s.root); err != nil {
			s.logger.WithError(err).Warn("Failed to clear recorded version")
		}
	}

	for _, p := range []string{pending, s.VersionPendingPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WithField("path", p).Warn("Failed to remove staging file")
		}
	}
	s.logger.WithField("tag", tag).Info("Executable updated")
	return Promoted, nil
}

// RecoverPending finishes a promotion left behind by an earlier run. It never
// fails; problems are logged.
func (s *Stager) RecoverPending() Outcome {
	if old := s.exe + oldSuffix; common.IsRegularFile(old) {
		if err := os.Remove(old); err == nil {
			s.logger.WithField("path", old).Debug("Removed previous executable")
		}
	}

	outcome, err := s.Promote()
	if err != nil {
		s.logger.WithError(err).Warn("Pending update could not be applied, will retry next start")
		return NothingToDo
	}
	if outcome == Promoted {
		s.logger.Info("Applied update left pending by a previous run")
	}
	return outcome
}
