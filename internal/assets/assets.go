// Package assets copies game resources out of installed jars and archives
// into the game's resources directory. All of it is best effort: the caller
// logs failures and carries on.
package assets

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

const (
	resourcesDirName  = "resources"
	defaultArchiveURL = "https://github.com"
)

// rule maps entries under Prefix to Dest, a path below the resources dir.
type rule struct {
	Prefix string
	Dest   string
}

// First matching rule wins, so the longer prefix comes first.
var jarRules = []rule{
	{Prefix: "assets/", Dest: "assets"},
	{Prefix: "resources/assets/", Dest: "assets"},
	{Prefix: "resources/", Dest: ""},
}

var packRules = []rule{
	{Prefix: "assets/", Dest: "assets"},
}

// ExtractFromJar copies assets/, resources/assets/ and resources/ entries of a
// jar into <minecraftDir>/resources and returns the number of files written.
func ExtractFromJar(jarPath, minecraftDir string, span progress.Span) (int, error) {
	return extract(jarPath, filepath.Join(minecraftDir, resourcesDirName), jarRules, false, span)
}

// Fetcher downloads a URL into dir.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error)
}

type Syncer struct {
	fetcher    Fetcher
	archiveURL string
	logger     *logrus.Entry
}

func NewSyncer(fetcher Fetcher) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		archiveURL: defaultArchiveURL,
		logger:     logrus.WithField("component", "assets"),
	}
}

// WithArchiveURL overrides the host branch archives are downloaded from.
func (s *Syncer) WithArchiveURL(u string) *Syncer {
	s.archiveURL = strings.TrimRight(u, "/")
	return s
}

// SyncResourcePack downloads the main branch of repo and copies its assets/
// tree into <minecraftDir>/resources/assets.
func (s *Syncer) SyncResourcePack(ctx context.Context, repo, minecraftDir string, span progress.Span) (int, error) {
	url := fmt.Sprintf("%s/%s/archive/refs/heads/main.zip", s.archiveURL, strings.Trim(repo, "/"))
	s.logger.WithField("repo", repo).Info("Syncing resource pack")
	// Branch archives wrap everything in a <repo>-main/ folder.
	return s.fetchAndExtract(ctx, url, minecraftDir, packRules, true, span)
}

// SyncArchive downloads a release archive and extracts it with the jar rules.
func (s *Syncer) SyncArchive(ctx context.Context, asset release.Asset, minecraftDir string, span progress.Span) (int, error) {
	s.logger.WithField("asset", asset.Name).Info("Installing assets archive")
	return s.fetchAndExtract(ctx, asset.URL, minecraftDir, jarRules, false, span)
}

func (s *Syncer) fetchAndExtract(ctx context.Context, url, minecraftDir string, rules []rule, stripRoot bool, span progress.Span) (int, error) {
	half := progress.Span{Reporter: span.Reporter, Start: span.Start, End: span.Start + (span.End-span.Start)/2}
	dl, err := s.fetcher.Fetch(ctx, url, "", half)
	if err != nil {
		return 0, err
	}
	defer dl.Remove()

	rest := progress.Span{Reporter: span.Reporter, Start: half.End, End: span.End}
	n, err := extract(dl.Path, filepath.Join(minecraftDir, resourcesDirName), rules, stripRoot, rest)
	if err != nil {
		return n, err
	}
	s.logger.WithField("files", n).Info("Assets extracted")
	return n, nil
}

func extract(archivePath, destRoot string, rules []rule, stripRoot bool, span progress.Span) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer func(r *zip.ReadCloser) {
		_ = r.Close()
	}(r)

	cleanRoot := filepath.Clean(destRoot)
	written := 0
	total := len(r.File)
	for i, f := range r.File {
		span.Fraction(float64(i+1) / float64(max(total, 1)))

		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if stripRoot {
			slash := strings.IndexByte(name, '/')
			if slash < 0 {
				continue
			}
			name = name[slash+1:]
		}
		rel, ok := mapEntry(name, rules)
		if !ok {
			continue
		}

		fpath := filepath.Join(cleanRoot, filepath.FromSlash(rel))
		if !strings.HasPrefix(fpath, cleanRoot+string(os.PathSeparator)) {
			return written, fmt.Errorf("illegal file path: %s", f.Name)
		}
		if err := writeEntry(f, fpath); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func mapEntry(name string, rules []rule) (string, bool) {
	for _, r := range rules {
		if strings.HasPrefix(name, r.Prefix) {
			rest := strings.TrimPrefix(name, r.Prefix)
			if rest == "" {
				return "", false
			}
			return strings.TrimPrefix(r.Dest+"/"+rest, "/"), true
		}
	}
	return "", false
}

func writeEntry(f *zip.File, fpath string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", fpath, err)
	}
	return out.Close()
}
