package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{InstanceDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, Default().Repo, cfg.Repo)
	assert.Equal(t, "jarmods", cfg.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, uint64(2), cfg.API.Retries)
	assert.True(t, cfg.Assets.Extract)
	assert.True(t, cfg.Launcher.Enabled, "updater checks for its own updates by default")
	assert.Equal(t, "MinecraftOldschoolEdition/launcher-updates", cfg.Launcher.Repo)
	assert.Empty(t, cfg.File())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	inst := t.TempDir()
	path := DefaultPath(inst)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
repo: acme/mod
pattern: "acme-.*\\.jar"
mode: mods
launcher:
  enabled: true
  repo: acme/updater
  pattern: updater
`), 0o644))

	t.Setenv("MODUPDATER_MODE", "clientJar")
	t.Setenv("GITHUB_TOKEN", "tok")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("repo", "", "")
	flags.Bool("dry-run", false, "")
	require.NoError(t, flags.Parse([]string{"--repo", "other/mod", "--dry-run"}))

	cfg, err := Load(Options{InstanceDir: inst, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File())
	assert.Equal(t, "other/mod", cfg.Repo, "flag beats file")
	assert.Equal(t, "clientJar", cfg.Mode, "env beats file")
	assert.Equal(t, `acme-.*\.jar`, cfg.Pattern)
	assert.Equal(t, "tok", cfg.Token)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Launcher.Enabled)
	assert.Equal(t, "acme/updater", cfg.Launcher.Repo)
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updater.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repo: [unterminated"), 0o644))

	_, err := Load(Options{File: path})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing repo", func(c *Config) { c.Repo = "" }},
		{"bad repo", func(c *Config) { c.Repo = "https://github.com/acme/mod" }},
		{"missing pattern", func(c *Config) { c.Pattern = " " }},
		{"bad pattern", func(c *Config) { c.Pattern = "(" }},
		{"bad mode", func(c *Config) { c.Mode = "plugins" }},
		{"bad launcher", func(c *Config) { c.Launcher.Enabled = true; c.Launcher.Repo = "" }},
		{"optional without url", func(c *Config) { c.Optional.Enabled = true; c.Optional.URL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))
		})
	}
}

func TestActiveRepo(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Repo, cfg.ActiveRepo())
	cfg.UseBeta = true
	assert.Equal(t, cfg.BetaRepo, cfg.ActiveRepo())
	assert.True(t, cfg.IsBeta())
	cfg.BetaRepo = ""
	assert.Equal(t, cfg.Repo, cfg.ActiveRepo())
	assert.False(t, cfg.IsBeta())
}

func TestWriteDefaultAndSaveUseBeta(t *testing.T) {
	path := DefaultPath(t.TempDir())

	written, err := WriteDefault(path, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteDefault(path, false)
	require.NoError(t, err)
	assert.False(t, written, "existing file is kept")

	require.NoError(t, SaveUseBeta(path, true))
	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.True(t, cfg.UseBeta)
	assert.Equal(t, Default().Repo, cfg.Repo)
	assert.Equal(t, Default().Pattern, cfg.Pattern)
}

func TestResolveDirs(t *testing.T) {
	inst := t.TempDir()
	t.Setenv("MC_DIR", "")

	cfg := &Config{InstanceDir: inst}
	assert.Empty(t, cfg.ResolveMinecraftDir())

	require.NoError(t, os.MkdirAll(filepath.Join(inst, "minecraft"), 0o755))
	assert.Equal(t, filepath.Join(inst, "minecraft"), cfg.ResolveMinecraftDir())

	require.NoError(t, os.MkdirAll(filepath.Join(inst, ".minecraft"), 0o755))
	assert.Equal(t, filepath.Join(inst, ".minecraft"), cfg.ResolveMinecraftDir())

	env := t.TempDir()
	t.Setenv("MC_DIR", env)
	assert.Equal(t, env, cfg.ResolveMinecraftDir())

	explicit := t.TempDir()
	cfg.MinecraftDir = explicit
	assert.Equal(t, explicit, cfg.ResolveMinecraftDir())

	cfg.MinecraftDir = filepath.Join(inst, "does-not-exist")
	assert.Equal(t, env, cfg.ResolveMinecraftDir())

	assert.Equal(t, inst, cfg.ResolveInstanceRoot(""))
	assert.Equal(t, filepath.Dir(explicit), (&Config{}).ResolveInstanceRoot(explicit))
}
