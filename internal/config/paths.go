package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveMinecraftDir picks the game directory: minecraft_dir, then MC_DIR,
// then <instance>/.minecraft and <instance>/minecraft. Only existing
// directories are accepted. Empty when none qualifies.
func (c *Config) ResolveMinecraftDir() string {
	candidates := []string{c.MinecraftDir, os.Getenv(mcDirEnv)}
	if c.InstanceDir != "" {
		candidates = append(candidates,
			filepath.Join(c.InstanceDir, ".minecraft"),
			filepath.Join(c.InstanceDir, "minecraft"),
		)
	}
	for _, p := range candidates {
		if p = strings.TrimSpace(p); p != "" && isDir(p) {
			return absPath(p)
		}
	}
	return ""
}

// ResolveInstanceRoot is instance_dir when it exists, else the parent of the
// game directory.
func (c *Config) ResolveInstanceRoot(minecraftDir string) string {
	if c.InstanceDir != "" && isDir(c.InstanceDir) {
		return absPath(c.InstanceDir)
	}
	if minecraftDir != "" {
		if parent := filepath.Dir(minecraftDir); isDir(parent) {
			return absPath(parent)
		}
	}
	return ""
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
