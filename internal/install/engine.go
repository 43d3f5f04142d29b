package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/marker"
	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

// Outcome is the terminal state of one install attempt.
type Outcome int

const (
	Installed Outcome = iota
	AlreadyCurrent
	DryRun
)

func (o Outcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case AlreadyCurrent:
		return "already-current"
	case DryRun:
		return "dry-run"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Fetcher downloads a URL into a scratch file in dir.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error)
}

// Request is one install attempt for a resolved release asset.
type Request struct {
	Mode     Mode
	Layout   Layout
	Tag      string
	Asset    release.Asset
	DryRun   bool
	Progress progress.Span
}

type Result struct {
	Outcome Outcome
	Target  Target
	Tag     string
	// Path is the installed artifact, Backups the files moved or copied aside.
	Path    string
	Backups []string
	SHA256  string
	// MarkerErr is set when the artifact was installed but its sidecar could
	// not be written. The next run will reinstall.
	MarkerErr error
}

type Engine struct {
	fetcher Fetcher
	logger  *logrus.Entry
	now     func() time.Time
	promote func(src, dst string) error
}

func NewEngine(fetcher Fetcher) *Engine {
	e := &Engine{
		fetcher: fetcher,
		logger:  logrus.WithField("component", "install-engine"),
		now:     time.Now,
	}
	e.promote = func(src, dst string) error {
		return common.MoveFile(e.logger, src, dst)
	}
	return e
}

// Install runs locate, freshness check, download, backup, promote and mark,
// stopping at the first step that decides the outcome.
func (e *Engine) Install(ctx context.Context, req Request) (*Result, error) {
	if req.Tag == "" {
		return nil, fmt.Errorf("%w: release has no tag", config.ErrInvalid)
	}
	if req.Asset.URL == "" {
		return nil, fmt.Errorf("%w: asset %q has no download URL", config.ErrInvalid, req.Asset.Name)
	}

	target, current, err := e.Plan(req)
	if err != nil {
		return nil, err
	}
	res := &Result{Target: target, Tag: req.Tag, Path: target.Final}

	log := e.logger.WithFields(logrus.Fields{
		"mode":   req.Mode,
		"tag":    req.Tag,
		"target": target.Final,
	})

	if current {
		log.WithField("existing", target.Existing).Info("Artifact already current")
		res.Outcome = AlreadyCurrent
		res.Path = target.Existing
		return res, nil
	}

	if req.DryRun {
		log.WithField("existing", target.Existing).Info("Dry run, not installing")
		res.Outcome = DryRun
		return res, nil
	}

	dir := filepath.Dir(target.Final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	setPhase(req.Progress, "Downloading "+req.Asset.Name)
	dl, err := e.fetcher.Fetch(ctx, req.Asset.URL, dir, req.Progress)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", req.Asset.Name, err)
	}
	defer dl.Remove()
	res.SHA256 = dl.SHA256

	setPhase(req.Progress, "Installing "+req.Asset.Name)
	restore, err := e.backup(target, res)
	if err != nil {
		return nil, err
	}

	if err := e.promote(dl.Path, target.Final); err != nil {
		if rerr := restore(); rerr != nil {
			log.WithError(rerr).Error("Failed to restore backup after failed install")
		}
		return nil, fmt.Errorf("install %s: %w", target.Final, err)
	}

	if err := marker.Write(target.Final, req.Tag, req.Asset.Name, req.Asset.URL, dl.SHA256); err != nil {
		log.WithError(err).Warn("Installed artifact but failed to write marker")
		res.MarkerErr = err
	}

	res.Outcome = Installed
	log.WithField("backups", res.Backups).Info("Artifact installed")
	return res, nil
}

// Plan resolves the target of req and reports whether it already carries
// req.Tag. It only reads the filesystem.
func (e *Engine) Plan(req Request) (Target, bool, error) {
	target, err := ResolveTarget(req.Layout, req.Mode, req.Asset.Name)
	if err != nil {
		return Target{}, false, err
	}
	current := target.Existing != "" && marker.IsUpToDate(target.Existing, req.Tag)
	return target, current, nil
}

// backup sets existing files aside before the final path is written. A file
// that is about to be overwritten is copied, so it stays in place should the
// promote fail; one that is being superseded under a new name is renamed
// together with its marker. The returned func undoes the renames.
func (e *Engine) backup(target Target, res *Result) (func() error, error) {
	var renamed [][2]string
	restore := func() error {
		var errs []error
		for i := len(renamed) - 1; i >= 0; i-- {
			from, to := renamed[i][0], renamed[i][1]
			if err := os.Rename(to, from); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := marker.Move(to, from); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if target.Existing != "" && !target.InPlace() {
		bak := common.UniqueSuffixPath(target.Existing, "bak", e.now())
		if err := os.Rename(target.Existing, bak); err != nil {
			return nil, fmt.Errorf("backup %s: %w", target.Existing, err)
		}
		renamed = append(renamed, [2]string{target.Existing, bak})
		res.Backups = append(res.Backups, bak)
		if err := marker.Move(target.Existing, bak); err != nil {
			e.logger.WithError(err).Warn("Failed to move marker with backup")
		}
	}

	if common.IsRegularFile(target.Final) {
		bak := common.UniqueSuffixPath(target.Final, "bak", e.now())
		if err := common.CopyFile(target.Final, bak); err != nil {
			if rerr := restore(); rerr != nil {
				e.logger.WithError(rerr).Error("Failed to restore backup")
			}
			return nil, fmt.Errorf("backup %s: %w", target.Final, err)
		}
		res.Backups = append(res.Backups, bak)
	}

	return restore, nil
}

func setPhase(span progress.Span, text string) {
	if span.Reporter != nil {
		span.Reporter.SetPhase(text)
	}
}
