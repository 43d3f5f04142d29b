package selfupdate

import (
	"fmt"
	"os"

	"github.com/inconshreveable/go-update"
	"github.com/sirupsen/logrus"
)

// replaceExecutable writes the payload at src over dst. The previous build is
// moved to <dst>.old first, which works even while dst is running on Windows;
// if the swap fails the previous build is put back. The .old file is removed
// here when possible and otherwise by the next RecoverPending.
func replaceExecutable(logger *logrus.Entry, src, dst string) error {
	payload, err := os.Open(src)
	if err != nil {
		return err
	}
	defer payload.Close()

	mode := os.FileMode(0o755)
	if info, err := os.Stat(dst); err == nil {
		mode = info.Mode().Perm() | 0o111
	}

	old := dst + oldSuffix
	err = update.Apply(payload, update.Options{
		TargetPath:  dst,
		TargetMode:  mode,
		OldSavePath: old,
	})
	if err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			logger.WithError(rerr).Error("Failed to put previous executable back")
		}
		return fmt.Errorf("replace %s: %w", dst, err)
	}

	if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Debug("Previous executable still in use, removed on next start")
	}
	return nil
}
