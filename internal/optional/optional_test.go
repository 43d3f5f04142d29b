package optional

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

type stubFetcher struct {
	calls int
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, url, dir string, span progress.Span) (*release.Download, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p := filepath.Join(dir, ".dl")
	if err := os.WriteFile(p, []byte("jar"), 0o644); err != nil {
		return nil, err
	}
	return &release.Download{Path: p}, nil
}

func component(inst string) Component {
	return Component{
		Name:   "bcprov-jdk18on-1.78.1.jar",
		URL:    "https://example.com/bcprov.jar",
		Dir:    filepath.Join(inst, "libraries"),
		Probe:  "bcprov",
		AlsoIn: []string{filepath.Join(inst, "jarmods")},
	}
}

func TestEnsureInstalls(t *testing.T) {
	inst := t.TempDir()
	f := &stubFetcher{}

	status, err := Ensure(context.Background(), f, component(inst), progress.Span{})
	require.NoError(t, err)
	assert.Equal(t, Installed, status)
	assert.FileExists(t, filepath.Join(inst, "libraries", "bcprov-jdk18on-1.78.1.jar"))

	status, err = Ensure(context.Background(), f, component(inst), progress.Span{})
	require.NoError(t, err)
	assert.Equal(t, Present, status)
	assert.Equal(t, 1, f.calls)
}

func TestEnsureFoundInJarmods(t *testing.T) {
	inst := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(inst, "jarmods"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inst, "jarmods", "bcprov-1.70.jar"), []byte("x"), 0o644))

	f := &stubFetcher{}
	status, err := Ensure(context.Background(), f, component(inst), progress.Span{})
	require.NoError(t, err)
	assert.Equal(t, Present, status)
	assert.Zero(t, f.calls)
}

func TestEnsureDownloadFailure(t *testing.T) {
	inst := t.TempDir()
	_, err := Ensure(context.Background(), &stubFetcher{err: errors.New("offline")}, component(inst), progress.Span{})
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(inst, "libraries", "bcprov-jdk18on-1.78.1.jar"))
}
