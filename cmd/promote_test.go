package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/selfupdate"
)

func TestPromoteUsesConfiguredLauncher(t *testing.T) {
	inst := t.TempDir()
	exe := filepath.Join(inst, "tools", "mod-updater", "custom-updater")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))

	stager := selfupdate.NewStager(exe, inst)
	require.NoError(t, os.WriteFile(stager.PendingPath(), []byte("new"), 0o755))
	require.NoError(t, os.WriteFile(stager.VersionPendingPath(), []byte("v5"), 0o644))
	require.NoError(t, os.WriteFile(config.DefaultPath(inst),
		[]byte("launcher:\n  path: tools/mod-updater/custom-updater\n"), 0o644))

	RootCmd.SetArgs([]string{"promote", "--instance-dir", inst})
	require.NoError(t, RootCmd.Execute())

	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.False(t, stager.HasPending())
	assert.Equal(t, "v5", selfupdate.RecordedVersion(exe, inst))
	assert.FileExists(t, filepath.Join(inst, selfupdate.VersionDocPath), "version recorded under the instance root")
}
