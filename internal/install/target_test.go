package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
)

func writeFile(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"mods": ModeMods, "clientjar": ModeClientJar, "clientJar": ModeClientJar,
		"JARMODS": ModeJarmods, "": ModeJarmods,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("plugins")
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestResolveModsNewestMatch(t *testing.T) {
	mc := t.TempDir()
	mods := filepath.Join(mc, "mods")
	writeFile(t, filepath.Join(mods, "coolmod-1.0.jar"), "old", 3*time.Hour)
	writeFile(t, filepath.Join(mods, "coolmod-1.1.jar"), "newer", time.Hour)
	writeFile(t, filepath.Join(mods, "coolmod-0.9.jar.bak.1"), "bak", 0)
	writeFile(t, filepath.Join(mods, "othermod.jar"), "other", 0)

	tgt, err := ResolveTarget(Layout{MinecraftDir: mc, Pattern: `coolmod-.*\.jar`}, ModeMods, "coolmod-2.0.jar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(mods, "coolmod-1.1.jar"), tgt.Existing)
	assert.Equal(t, filepath.Join(mods, "coolmod-2.0.jar"), tgt.Final)
	assert.False(t, tgt.InPlace())
}

func TestResolveModsFirstRun(t *testing.T) {
	mc := t.TempDir()
	tgt, err := ResolveTarget(Layout{MinecraftDir: mc, Pattern: `coolmod`}, ModeMods, "coolmod.jar")
	require.NoError(t, err)
	assert.Empty(t, tgt.Existing)
	assert.Equal(t, filepath.Join(mc, "mods", "coolmod.jar"), tgt.Final)

	_, err = ResolveTarget(Layout{Pattern: `x`}, ModeMods, "coolmod.jar")
	assert.True(t, errors.Is(err, config.ErrInvalid))

	_, err = ResolveTarget(Layout{MinecraftDir: mc, Pattern: `x`}, ModeMods, "../escape.jar")
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestResolveClientJar(t *testing.T) {
	mc := t.TempDir()
	override := filepath.Join(t.TempDir(), "client.jar")

	_, err := ResolveTarget(Layout{MinecraftDir: mc, ClientJarPath: override}, ModeClientJar, "x.jar")
	assert.True(t, errors.Is(err, config.ErrInvalid), "neither file exists")

	conventional := filepath.Join(mc, "bin", "minecraft.jar")
	writeFile(t, conventional, "jar", 0)
	tgt, err := ResolveTarget(Layout{MinecraftDir: mc, ClientJarPath: override}, ModeClientJar, "x.jar")
	require.NoError(t, err)
	assert.Equal(t, conventional, tgt.Final)
	assert.True(t, tgt.InPlace())

	writeFile(t, override, "jar", 0)
	tgt, err = ResolveTarget(Layout{MinecraftDir: mc, ClientJarPath: override}, ModeClientJar, "x.jar")
	require.NoError(t, err)
	assert.Equal(t, override, tgt.Final)
}

func TestResolveJarmods(t *testing.T) {
	inst := t.TempDir()
	jarmods := filepath.Join(inst, "jarmods")

	tgt, err := ResolveTarget(Layout{InstanceDir: inst}, ModeJarmods, "ignored.jar")
	require.NoError(t, err)
	assert.Empty(t, tgt.Existing, "first run")
	assert.Equal(t, filepath.Join(jarmods, "mod.jar"), tgt.Final)

	uuidJar := filepath.Join(jarmods, "0f8fad5b-d9cb-469f-a165-70867728950e.jar")
	writeFile(t, uuidJar, "uuid", 2*time.Hour)
	writeFile(t, filepath.Join(jarmods, "random.jar"), "newer", time.Hour)
	writeFile(t, filepath.Join(jarmods, "jna.jar"), "newest", 0)

	tgt, err = ResolveTarget(Layout{InstanceDir: inst}, ModeJarmods, "")
	require.NoError(t, err)
	assert.Equal(t, uuidJar, tgt.Existing, "uuid named jar preferred over newer jars")
	assert.Equal(t, uuidJar, tgt.Final)

	require.NoError(t, os.Remove(uuidJar))
	tgt, err = ResolveTarget(Layout{InstanceDir: inst}, ModeJarmods, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jarmods, "random.jar"), tgt.Existing, "excluded jna.jar skipped")

	preferred := filepath.Join(jarmods, "mine.jar")
	writeFile(t, preferred, "pref", 5*time.Hour)
	tgt, err = ResolveTarget(Layout{InstanceDir: inst, JarmodName: "mine.jar"}, ModeJarmods, "")
	require.NoError(t, err)
	assert.Equal(t, preferred, tgt.Existing)
}

func TestDeriveJarmodName(t *testing.T) {
	inst := t.TempDir()
	assert.Equal(t, DefaultJarmodName, DeriveJarmodName(inst))

	pack := `{
  "components": [
    {"uid": "net.minecraft", "cachedName": "Minecraft"},
    {"uid": "custom.jarmod.0f8fad5b-d9cb-469f-a165-70867728950e", "cachedName": "patch (jar mod)"}
  ],
  "formatVersion": 1
}`
	require.NoError(t, os.WriteFile(filepath.Join(inst, "mmc-pack.json"), []byte(pack), 0o644))
	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e.jar", DeriveJarmodName(inst))

	require.NoError(t, os.WriteFile(filepath.Join(inst, "mmc-pack.json"), []byte("{broken"), 0o644))
	assert.Equal(t, DefaultJarmodName, DeriveJarmodName(inst))
}
