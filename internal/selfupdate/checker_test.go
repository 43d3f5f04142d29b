package selfupdate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

type fakeResolver struct {
	desc   *release.Descriptor
	length int64
	known  bool
}

func (f *fakeResolver) FetchLatest(ctx context.Context, repo string) (*release.Descriptor, error) {
	return f.desc, nil
}

func (f *fakeResolver) ContentLength(ctx context.Context, url string) (int64, bool) {
	return f.length, f.known
}

type fakeFetcher struct{ content string }

func (f *fakeFetcher) Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error) {
	p := filepath.Join(dir, ".download")
	if err := os.WriteFile(p, []byte(f.content), 0o644); err != nil {
		return nil, err
	}
	return &release.Download{Path: p, Size: int64(len(f.content))}, nil
}

func launcherRelease(tag string) *release.Descriptor {
	return &release.Descriptor{Tag: tag, Assets: []release.Asset{
		{Name: "mod-updater-linux", URL: "https://example.com/linux"},
		{Name: "mod-updater.exe", URL: "https://example.com/exe"},
	}}
}

func TestCheckerStagesNewerBuild(t *testing.T) {
	s, root := setup(t)
	require.NoError(t, RecordVersion(s.Executable(), root, "v1.0.0"))

	c := NewChecker(&fakeResolver{desc: launcherRelease("v1.1.0")}, &fakeFetcher{content: "new build"}, s, "acme/updater", `\.exe$`, "1.0.0")
	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, upd)
	assert.Equal(t, "https://example.com/exe", upd.Asset.URL)

	promoted, err := c.Run(context.Background(), progress.Span{})
	require.NoError(t, err)
	assert.True(t, promoted)
	assert.Equal(t, "v1.1.0", RecordedVersion(s.Executable(), root))
}

func TestCheckerNeverDowngrades(t *testing.T) {
	s, root := setup(t)
	require.NoError(t, RecordVersion(s.Executable(), root, "v2.0.0"))

	c := NewChecker(&fakeResolver{desc: launcherRelease("v1.9.0")}, &fakeFetcher{}, s, "acme/updater", `\.exe$`, "1.0.0")
	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, upd)
}

func TestCheckerAdoptsTagWhenSizesMatch(t *testing.T) {
	s, root := setup(t)
	info, err := os.Stat(s.Executable())
	require.NoError(t, err)

	c := NewChecker(&fakeResolver{desc: launcherRelease("v3.0.0"), length: info.Size(), known: true}, &fakeFetcher{}, s, "acme/updater", `\.exe$`, "dev")
	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, upd)
	assert.Equal(t, "v3.0.0", RecordedVersion(s.Executable(), root))
}

func TestCheckerUnknownVersionUpdates(t *testing.T) {
	s, _ := setup(t)
	c := NewChecker(&fakeResolver{desc: launcherRelease("v3.0.0"), length: 1, known: true}, &fakeFetcher{}, s, "acme/updater", `\.exe$`, "dev")
	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, upd)
	assert.Empty(t, upd.Current)
}
