package selfupdate

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

// Resolver is the part of release.Client the checker needs.
type Resolver interface {
	FetchLatest(ctx context.Context, repo string) (*release.Descriptor, error)
	ContentLength(ctx context.Context, url string) (int64, bool)
}

// Fetcher downloads a URL into dir.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error)
}

// Update describes an available newer build.
type Update struct {
	Current string
	Tag     string
	Asset   release.Asset
}

type Checker struct {
	Repo         string
	Pattern      string
	BuildVersion string

	resolver Resolver
	fetcher  Fetcher
	stager   *Stager
	logger   *logrus.Entry
}

func NewChecker(resolver Resolver, fetcher Fetcher, stager *Stager, repo, pattern, build string) *Checker {
	return &Checker{
		Repo:         repo,
		Pattern:      pattern,
		BuildVersion: build,
		resolver:     resolver,
		fetcher:      fetcher,
		stager:       stager,
		logger:       logrus.WithField("component", "self-update-checker"),
	}
}

// Check returns the available update, or nil when the executable is current.
//
// When no version has been recorded yet and the remote asset is exactly the
// size of the running executable, the remote tag is adopted as the current
// version instead of reinstalling the same build.
func (c *Checker) Check(ctx context.Context) (*Update, error) {
	desc, err := c.resolver.FetchLatest(ctx, c.Repo)
	if err != nil {
		return nil, err
	}
	asset, err := release.SelectAsset(desc, c.Pattern)
	if err != nil {
		return nil, err
	}

	exe, root := c.stager.exe, c.stager.root
	current := RecordedVersion(exe, root)
	if current == "" {
		if c.sameSize(ctx, exe, asset.URL) {
			c.logger.WithField("tag", desc.Tag).Info("Executable matches latest release, recording version")
			if err := RecordVersion(exe, root, desc.Tag); err != nil {
				c.logger.WithError(err).Warn("Failed to record adopted version")
			}
			return nil, nil
		}
		current = c.BuildVersion
		if current == "dev" {
			current = ""
		}
	}

	if !IsNewer(current, desc.Tag) {
		c.logger.WithFields(logrus.Fields{"current": current, "latest": desc.Tag}).Debug("Executable is current")
		return nil, nil
	}
	return &Update{Current: current, Tag: desc.Tag, Asset: *asset}, nil
}

// Run checks for an update and stages it. It reports whether the new build
// is already in place.
func (c *Checker) Run(ctx context.Context, span progress.Span) (bool, error) {
	upd, err := c.Check(ctx)
	if err != nil || upd == nil {
		return false, err
	}
	c.logger.WithFields(logrus.Fields{
		"current": upd.Current,
		"latest":  upd.Tag,
		"asset":   upd.Asset.Name,
	}).Info("Updater update available")

	if err := c.stager.perms.EnsureBaseDirectory(); err != nil {
		return false, err
	}
	dl, err := c.fetcher.Fetch(ctx, upd.Asset.URL, c.stager.perms.BaseDir, span)
	if err != nil {
		return false, fmt.Errorf("download %s: %w", upd.Asset.Name, err)
	}
	defer dl.Remove()

	return c.stager.Stage(dl.Path, upd.Tag)
}

func (c *Checker) sameSize(ctx context.Context, exe, url string) bool {
	info, err := os.Stat(exe)
	if err != nil {
		return false
	}
	remote, ok := c.resolver.ContentLength(ctx, url)
	return ok && remote == info.Size()
}
