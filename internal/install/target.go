package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/CloudNativeWorks/mod-updater/internal/common"
	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/marker"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
)

const (
	DefaultJarmodName = "mod.jar"
	clientJarRelPath  = "bin/minecraft.jar"
	jarmodPatchName   = "patch (jar mod)"
	jarmodUIDPrefix   = "custom.jarmod."
)

// Launcher-managed libraries that also live in jarmods/ and must never be
// mistaken for the managed mod.
var excludedJarmods = map[string]struct{}{
	"jna_5.13.0.jar": {},
	"jna-5.13.0.jar": {},
	"jna.jar":        {},
}

// Layout describes the game installation.
type Layout struct {
	MinecraftDir  string
	InstanceDir   string
	ClientJarPath string
	JarmodName    string
	Pattern       string
}

// Target is where an install reads from and writes to. Existing is empty when
// nothing is installed yet.
type Target struct {
	Existing string
	Final    string
}

// InPlace reports whether the new artifact overwrites the existing one.
func (t Target) InPlace() bool {
	return t.Existing != "" && t.Existing == t.Final
}

// ResolveTarget locates the installed artifact for mode and the path the new
// asset will be written to.
func ResolveTarget(l Layout, mode Mode, assetName string) (Target, error) {
	switch mode {
	case ModeMods:
		return resolveMods(l, assetName)
	case ModeClientJar:
		return resolveClientJar(l)
	case ModeJarmods:
		return resolveJarmods(l)
	default:
		return Target{}, fmt.Errorf("%w: unknown install mode %q", config.ErrInvalid, mode)
	}
}

func resolveMods(l Layout, assetName string) (Target, error) {
	if l.MinecraftDir == "" {
		return Target{}, fmt.Errorf("%w: minecraft directory is not set", config.ErrInvalid)
	}
	if assetName == "" || filepath.Base(assetName) != assetName {
		return Target{}, fmt.Errorf("%w: unusable asset name %q", config.ErrInvalid, assetName)
	}
	re, err := release.CompilePattern(l.Pattern)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	dir := filepath.Join(l.MinecraftDir, "mods")
	existing, _, err := common.NewestFile(dir, func(name string) bool {
		return !isBookkeeping(name) && re.MatchString(name)
	})
	if err != nil {
		return Target{}, err
	}
	return Target{Existing: existing, Final: filepath.Join(dir, assetName)}, nil
}

func resolveClientJar(l Layout) (Target, error) {
	if common.IsRegularFile(l.ClientJarPath) {
		return Target{Existing: l.ClientJarPath, Final: l.ClientJarPath}, nil
	}
	if l.MinecraftDir != "" {
		p := filepath.Join(l.MinecraftDir, filepath.FromSlash(clientJarRelPath))
		if common.IsRegularFile(p) {
			return Target{Existing: p, Final: p}, nil
		}
	}
	return Target{}, fmt.Errorf("%w: client jar not found (set client_jar_path or minecraft_dir)", config.ErrInvalid)
}

func resolveJarmods(l Layout) (Target, error) {
	if l.InstanceDir == "" {
		return Target{}, fmt.Errorf("%w: instance directory is not set", config.ErrInvalid)
	}
	name := l.JarmodName
	if name == "" {
		name = DeriveJarmodName(l.InstanceDir)
	}
	if filepath.Base(name) != name {
		return Target{}, fmt.Errorf("%w: jarmod name %q must be a plain file name", config.ErrInvalid, name)
	}

	dir := filepath.Join(l.InstanceDir, "jarmods")
	preferred := filepath.Join(dir, name)
	if common.IsRegularFile(preferred) {
		return Target{Existing: preferred, Final: preferred}, nil
	}

	candidate := func(n string) bool {
		if !strings.EqualFold(filepath.Ext(n), ".jar") || isBookkeeping(n) {
			return false
		}
		_, excluded := excludedJarmods[strings.ToLower(n)]
		return !excluded
	}

	p, ok, err := common.NewestFile(dir, func(n string) bool {
		return candidate(n) && isUUIDName(n)
	})
	if err != nil {
		return Target{}, err
	}
	if !ok {
		if p, ok, err = common.NewestFile(dir, candidate); err != nil {
			return Target{}, err
		}
	}
	if ok {
		return Target{Existing: p, Final: p}, nil
	}
	return Target{Final: preferred}, nil
}

// DeriveJarmodName returns the file name the launcher gave the instance's
// jar mod, read from mmc-pack.json, or DefaultJarmodName.
func DeriveJarmodName(instanceDir string) string {
	data, err := os.ReadFile(filepath.Join(instanceDir, "mmc-pack.json"))
	if err != nil {
		return DefaultJarmodName
	}

	var pack struct {
		Components []struct {
			UID        string `json:"uid"`
			CachedName string `json:"cachedName"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &pack); err != nil {
		return DefaultJarmodName
	}

	for _, c := range pack.Components {
		if !strings.EqualFold(strings.TrimSpace(c.CachedName), jarmodPatchName) {
			continue
		}
		id := strings.TrimPrefix(c.UID, jarmodUIDPrefix)
		if id == c.UID || id == "" || strings.ContainsAny(id, `/\`) {
			continue
		}
		return id + ".jar"
	}
	return DefaultJarmodName
}

func isUUIDName(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) != 36 {
		return false
	}
	_, err := uuid.Parse(stem)
	return err == nil
}

// isBookkeeping filters files this tool leaves next to artifacts.
func isBookkeeping(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, marker.Suffix) ||
		strings.Contains(name, ".bak.")
}
