package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

// PermissionManager manages directory and file permissions for installed files
type PermissionManager struct {
	BaseDir  string
	DirPerm  os.FileMode
	FilePerm os.FileMode
	Logger   *logrus.Entry
}

// NewPermissionManager creates a new PermissionManager with the given configuration
func NewPermissionManager(baseDir string, dirPerm, filePerm os.FileMode, logger *logrus.Entry) *PermissionManager {
	return &PermissionManager{
		BaseDir:  baseDir,
		DirPerm:  dirPerm,
		FilePerm: filePerm,
		Logger:   logger,
	}
}

// EnsureBaseDirectory creates the base directory if it doesn't exist
func (pm *PermissionManager) EnsureBaseDirectory() error {
	pm.Logger.WithField("base_dir", pm.BaseDir).Debug("Ensuring base directory exists")

	if err := os.MkdirAll(pm.BaseDir, pm.DirPerm); err != nil {
		pm.Logger.WithError(err).Error("Failed to create base directory")
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	return nil
}

// SetBinaryPermissions marks an executable as runnable. Windows has no
// execute bit, so it is a no-op there.
func (pm *PermissionManager) SetBinaryPermissions(binaryPath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	pm.Logger.WithField("path", binaryPath).Debug("Setting binary permissions")

	if err := os.Chmod(binaryPath, pm.FilePerm); err != nil {
		pm.Logger.WithError(err).Error("Failed to set binary permissions")
		return fmt.Errorf("failed to set permissions for %s: %w", binaryPath, err)
	}

	return nil
}
