// Package agent runs one update of the managed artifact: resolve the latest
// release, install it and apply the best-effort extras, with the updater's
// own self-update running alongside.
package agent

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/CloudNativeWorks/mod-updater/internal/assets"
	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/install"
	"github.com/CloudNativeWorks/mod-updater/internal/marker"
	"github.com/CloudNativeWorks/mod-updater/internal/optional"
	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
	"github.com/CloudNativeWorks/mod-updater/internal/selfupdate"
	"github.com/CloudNativeWorks/mod-updater/pkg/helper"
)

// Resolver fetches release descriptors.
type Resolver interface {
	FetchLatest(ctx context.Context, repo string) (*release.Descriptor, error)
}

// Fetcher downloads a URL into dir.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error)
}

// Paths are the resolved game directories. Either may be empty when it
// could not be found; the install mode decides whether that is fatal.
type Paths struct {
	MinecraftDir string
	InstanceDir  string
}

// Outcome is the terminal result reported to the user.
type Outcome string

const (
	OutcomeInstalled      Outcome = "installed"
	OutcomeAlreadyCurrent Outcome = "already-current"
	OutcomeDryRun         Outcome = "dry-run"
	OutcomeDeclined       Outcome = "declined"
	OutcomeFailed         Outcome = "failed"
)

// Report is what one run produced.
type Report struct {
	Outcome Outcome
	Kind    Kind
	Tag     string
	Path    string
	Backups []string
	Err     error
	State   Snapshot
}

// Message is a one-line human summary.
func (r *Report) Message() string {
	switch r.Outcome {
	case OutcomeInstalled:
		return fmt.Sprintf("Installed %s to %s", r.Tag, r.Path)
	case OutcomeAlreadyCurrent:
		return fmt.Sprintf("Already up to date (%s)", r.Tag)
	case OutcomeDryRun:
		return fmt.Sprintf("Dry run: %s would be installed to %s", r.Tag, r.Path)
	case OutcomeDeclined:
		return fmt.Sprintf("Update to %s skipped", r.Tag)
	default:
		return fmt.Sprintf("Update failed (%s error): %v", r.Kind, r.Err)
	}
}

type Agent struct {
	cfg      *config.Config
	paths    Paths
	resolver Resolver
	fetcher  Fetcher
	engine   *install.Engine
	syncer   *assets.Syncer
	stager   *selfupdate.Stager
	checker  *selfupdate.Checker
	confirm  Confirmer
	state    *State
	logger   *logrus.Entry
}

type Option func(*Agent)

// WithSelfUpdate enables pending-update recovery and, when checker is not
// nil, the concurrent self-update check.
func WithSelfUpdate(stager *selfupdate.Stager, checker *selfupdate.Checker) Option {
	return func(a *Agent) {
		a.stager = stager
		a.checker = checker
	}
}

func WithConfirmer(c Confirmer) Option {
	return func(a *Agent) { a.confirm = c }
}

// WithReporter forwards progress to a presentation layer.
func WithReporter(r progress.Reporter) Option {
	return func(a *Agent) { a.state = NewState(r) }
}

func WithSyncer(s *assets.Syncer) Option {
	return func(a *Agent) { a.syncer = s }
}

func New(cfg *config.Config, paths Paths, resolver Resolver, fetcher Fetcher, opts ...Option) *Agent {
	a := &Agent{
		cfg:      cfg,
		paths:    paths,
		resolver: resolver,
		fetcher:  fetcher,
		engine:   install.NewEngine(fetcher),
		syncer:   assets.NewSyncer(fetcher),
		confirm:  AlwaysConfirm{},
		state:    NewState(nil),
		logger:   logrus.WithField("component", "agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the current pipeline state.
func (a *Agent) Snapshot() Snapshot {
	return a.state.Snapshot()
}

// Run performs one update. Failures of the main pipeline are returned in the
// report and as the error; self-update and extras only log. A dry run leaves
// the filesystem untouched, staged updater builds included.
func (a *Agent) Run(ctx context.Context) (*Report, error) {
	if a.stager != nil {
		if !a.cfg.DryRun {
			a.stager.RecoverPending()
		} else if a.stager.HasPending() {
			a.logger.WithField("pending", a.stager.PendingPath()).Info("Dry run: staged updater build left pending")
		}
	}

	report, err := a.run(ctx)
	if err != nil {
		report.Outcome = OutcomeFailed
		report.Kind = Classify(err)
		report.Err = err
		a.state.SetPhase("Update failed")
	}
	report.State = a.state.Snapshot()
	return report, err
}

func (a *Agent) run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if err := a.cfg.Validate(); err != nil {
		return report, err
	}
	mode, err := install.ParseMode(a.cfg.Mode)
	if err != nil {
		return report, err
	}

	var g errgroup.Group
	if a.checker != nil && !a.cfg.DryRun {
		g.Go(func() error {
			defer helper.RecoverPanic(a.logger, "self-update")
			a.selfUpdate(ctx)
			return nil
		})
	}
	defer g.Wait()

	repo := a.cfg.ActiveRepo()
	a.state.update(func(s *Snapshot) {
		s.Repo = repo
		s.Beta = a.cfg.IsBeta()
	})
	a.state.SetPhase("Checking for updates")

	desc, err := a.resolver.FetchLatest(ctx, repo)
	if err != nil {
		return report, err
	}
	asset, err := release.SelectAsset(desc, a.cfg.Pattern)
	if err != nil {
		return report, fmt.Errorf("%w in %s", err, repo)
	}
	report.Tag = desc.Tag

	req := install.Request{
		Mode: mode,
		Layout: install.Layout{
			MinecraftDir:  a.paths.MinecraftDir,
			InstanceDir:   a.paths.InstanceDir,
			ClientJarPath: a.cfg.ClientJarPath,
			JarmodName:    a.cfg.JarmodName,
			Pattern:       a.cfg.Pattern,
		},
		Tag:      desc.Tag,
		Asset:    *asset,
		DryRun:   a.cfg.DryRun,
		Progress: progress.Span{Reporter: a.state, Start: 0, End: 0.7},
	}

	target, current, err := a.engine.Plan(req)
	if err != nil {
		return report, err
	}
	installed := ""
	if target.Existing != "" {
		if m, ok := marker.Read(target.Existing); ok {
			installed = m.Tag
		}
	}
	a.state.update(func(s *Snapshot) {
		s.Latest = desc.Tag
		s.Asset = asset.Name
		s.Target = target.Final
		s.Current = installed
		s.UpToDate = current
	})
	a.logger.WithFields(logrus.Fields{
		"repo":      repo,
		"latest":    desc.Tag,
		"installed": installed,
		"target":    target.Final,
	}).Info("Resolved latest release")

	if !current && !a.cfg.DryRun && !a.cfg.Yes {
		ok, err := a.confirm.Confirm(ctx, a.state.Snapshot())
		if err != nil {
			return report, err
		}
		if !ok {
			report.Outcome = OutcomeDeclined
			report.Path = target.Existing
			a.state.SetPhase("Update skipped")
			a.extras(ctx, desc, nil)
			return report, nil
		}
	}

	res, err := a.engine.Install(ctx, req)
	if err != nil {
		return report, err
	}
	report.Path = res.Path
	report.Backups = res.Backups

	switch res.Outcome {
	case install.AlreadyCurrent:
		report.Outcome = OutcomeAlreadyCurrent
		a.state.SetPhase("Up to date")
		if a.cfg.DryRun {
			return report, nil
		}
	case install.DryRun:
		report.Outcome = OutcomeDryRun
		a.state.SetPhase("Dry run complete")
		return report, nil
	default:
		report.Outcome = OutcomeInstalled
		if res.MarkerErr != nil {
			a.state.Log("Installed, but the install record could not be saved; it will be reinstalled next time")
		}
		a.state.update(func(s *Snapshot) {
			s.Current = desc.Tag
			s.UpToDate = true
		})
	}

	a.extras(ctx, desc, res)
	a.state.Progress(100)
	if report.Outcome == OutcomeInstalled {
		a.state.SetPhase("Update complete")
	}
	return report, nil
}

// extras runs the best-effort steps. None of them affects the outcome.
func (a *Agent) extras(ctx context.Context, desc *release.Descriptor, res *install.Result) {
	mcDir := a.paths.MinecraftDir

	if res != nil && res.Outcome == install.Installed && mcDir != "" {
		if a.cfg.Assets.Extract {
			a.state.SetPhase("Extracting assets")
			span := progress.Span{Reporter: a.state, Start: 0.7, End: 0.9}
			if n, err := assets.ExtractFromJar(res.Path, mcDir, span); err != nil {
				a.logger.WithError(err).Warn("Asset extraction failed")
			} else {
				a.logger.WithField("files", n).Info("Extracted assets from installed jar")
			}
		}
		if a.cfg.AssetsPattern != "" {
			if archive, err := release.SelectAsset(desc, a.cfg.AssetsPattern); err == nil {
				span := progress.Span{Reporter: a.state, Start: 0.9, End: 0.95}
				if _, err := a.syncer.SyncArchive(ctx, *archive, mcDir, span); err != nil {
					a.logger.WithError(err).Warn("Assets archive install failed")
				}
			}
		}
	}

	if a.cfg.Optional.Enabled && a.paths.InstanceDir != "" {
		c := optional.Component{
			Name:   a.cfg.Optional.Name,
			URL:    a.cfg.Optional.URL,
			Dir:    resolveUnder(a.paths.InstanceDir, a.cfg.Optional.Dir),
			Probe:  a.cfg.Optional.Probe,
			AlsoIn: []string{resolveUnder(a.paths.InstanceDir, "jarmods")},
		}
		if status, err := optional.Ensure(ctx, a.fetcher, c, progress.Span{}); err != nil {
			a.logger.WithError(err).Warn("Optional component could not be installed")
		} else if status == optional.Installed {
			a.state.Log("Installed " + c.Name)
		}
	}

	if a.cfg.ResourcePackRepo != "" && mcDir != "" {
		a.state.SetPhase("Syncing resource pack")
		span := progress.Span{Reporter: a.state, Start: 0.95, End: 1}
		if _, err := a.syncer.SyncResourcePack(ctx, a.cfg.ResourcePackRepo, mcDir, span); err != nil {
			a.logger.WithError(err).Warn("Resource pack sync failed")
		}
	}
}

func (a *Agent) selfUpdate(ctx context.Context) {
	promoted, err := a.checker.Run(ctx, progress.Span{})
	status := "current"
	switch {
	case err != nil:
		a.logger.WithError(err).Warn("Self-update failed")
		status = "failed: " + err.Error()
	case promoted:
		status = "updated"
	case a.stager != nil && a.stager.HasPending():
		status = "staged, applied after exit"
	}
	a.state.update(func(s *Snapshot) { s.SelfUpdate = status })
}

func resolveUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
