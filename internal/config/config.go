package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors. They are reported before any
// network or filesystem work starts.
var ErrInvalid = errors.New("invalid configuration")

const (
	envPrefix      = "MODUPDATER"
	configName     = "updater"
	configType     = "yaml"
	mcDirEnv       = "MC_DIR"
	githubTokenEnv = "GITHUB_TOKEN"
)

// Dir is where the updater keeps its files, relative to the instance root.
var Dir = filepath.Join("tools", "mod-updater")

// Config holds all application configuration
type Config struct {
	Repo             string `mapstructure:"repo" yaml:"repo"`
	BetaRepo         string `mapstructure:"beta_repo" yaml:"beta_repo"`
	UseBeta          bool   `mapstructure:"use_beta" yaml:"use_beta"`
	Pattern          string `mapstructure:"pattern" yaml:"pattern"`
	AssetsPattern    string `mapstructure:"assets_pattern" yaml:"assets_pattern"`
	Mode             string `mapstructure:"mode" yaml:"mode"`
	JarmodName       string `mapstructure:"jarmod_name" yaml:"jarmod_name"`
	MinecraftDir     string `mapstructure:"minecraft_dir" yaml:"minecraft_dir"`
	InstanceDir      string `mapstructure:"instance_dir" yaml:"instance_dir"`
	ClientJarPath    string `mapstructure:"client_jar_path" yaml:"client_jar_path"`
	ResourcePackRepo string `mapstructure:"resource_pack_repo" yaml:"resource_pack_repo"`
	Token            string `mapstructure:"token" yaml:"-"`
	Yes              bool   `mapstructure:"yes" yaml:"-"`
	DryRun           bool   `mapstructure:"dry_run" yaml:"-"`

	Assets   AssetsConfig   `mapstructure:"assets" yaml:"assets"`
	Launcher LauncherConfig `mapstructure:"launcher" yaml:"launcher"`
	Optional OptionalConfig `mapstructure:"optional" yaml:"optional"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	file string
}

// AssetsConfig controls copying game assets out of the installed jar.
type AssetsConfig struct {
	Extract bool `mapstructure:"extract" yaml:"extract"`
}

// LauncherConfig holds self-update configuration
type LauncherConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Repo    string `mapstructure:"repo" yaml:"repo"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// OptionalConfig describes an extra library fetched on demand.
type OptionalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" yaml:"name"`
	URL     string `mapstructure:"url" yaml:"url"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Probe   string `mapstructure:"probe" yaml:"probe"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Retries uint64 `mapstructure:"retries" yaml:"retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Options select where configuration comes from.
type Options struct {
	// File is an explicit config file. Empty searches DefaultPath(InstanceDir)
	// and the working directory.
	File        string
	InstanceDir string
	// Flags are bound by name; see flagKeys.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"repo":          "repo",
	"pattern":       "pattern",
	"mode":          "mode",
	"minecraft-dir": "minecraft_dir",
	"instance-dir":  "instance_dir",
	"client-jar":    "client_jar_path",
	"jarmod-name":   "jarmod_name",
	"yes":           "yes",
	"dry-run":       "dry_run",
	"log-level":     "logging.level",
	"launcher":      "launcher.path",
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("repo", d.Repo)
	v.SetDefault("beta_repo", d.BetaRepo)
	v.SetDefault("use_beta", d.UseBeta)
	v.SetDefault("pattern", d.Pattern)
	v.SetDefault("assets_pattern", d.AssetsPattern)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("jarmod_name", d.JarmodName)
	v.SetDefault("minecraft_dir", d.MinecraftDir)
	v.SetDefault("instance_dir", d.InstanceDir)
	v.SetDefault("client_jar_path", d.ClientJarPath)
	v.SetDefault("resource_pack_repo", d.ResourcePackRepo)
	v.SetDefault("token", "")
	v.SetDefault("yes", false)
	v.SetDefault("dry_run", false)

	v.SetDefault("assets.extract", d.Assets.Extract)

	v.SetDefault("launcher.enabled", d.Launcher.Enabled)
	v.SetDefault("launcher.repo", d.Launcher.Repo)
	v.SetDefault("launcher.pattern", d.Launcher.Pattern)
	v.SetDefault("launcher.path", d.Launcher.Path)

	v.SetDefault("optional.enabled", d.Optional.Enabled)
	v.SetDefault("optional.name", d.Optional.Name)
	v.SetDefault("optional.url", d.Optional.URL)
	v.SetDefault("optional.dir", d.Optional.Dir)
	v.SetDefault("optional.probe", d.Optional.Probe)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.retries", d.API.Retries)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Load reads defaults, the config file, MODUPDATER_* environment variables
// and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file name and path
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if opts.InstanceDir != "" {
			v.AddConfigPath(filepath.Join(opts.InstanceDir, Dir))
		}
		v.AddConfigPath(Dir)
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("token", envPrefix+"_TOKEN", githubTokenEnv); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	// Bind configuration to struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.file = v.ConfigFileUsed()
	return &cfg, nil
}

// Default returns the configuration written by `init` and used when no file
// exists.
func Default() *Config {
	return &Config{
		Repo:             "MinecraftOldschoolEdition/release-patches",
		BetaRepo:         "MinecraftOldschoolEdition/beta-patches",
		Pattern:          `patch\.jar`,
		AssetsPattern:    `(assets|resources).*(?i)\.zip`,
		Mode:             "jarmods",
		ResourcePackRepo: "MinecraftOldschoolEdition/resourcepack",
		Assets: AssetsConfig{
			Extract: true,
		},
		Launcher: LauncherConfig{
			Enabled: true,
			Repo:    "MinecraftOldschoolEdition/launcher-updates",
			Pattern: fmt.Sprintf(`mod-updater[-_]%s[-_]%s`, runtime.GOOS, runtime.GOARCH),
		},
		Optional: OptionalConfig{
			Name:  "bcprov-jdk18on-1.78.1.jar",
			URL:   "https://repo1.maven.org/maven2/org/bouncycastle/bcprov-jdk18on/1.78.1/bcprov-jdk18on-1.78.1.jar",
			Dir:   "libraries",
			Probe: "bcprov",
		},
		API: APIConfig{
			BaseURL: "https://api.github.com",
			Retries: 2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    5,
			MaxAge:     30,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// File returns the config file that was read, if any.
func (c *Config) File() string {
	return c.file
}

// ActiveRepo is the repository updates are taken from: the beta repository
// when the beta channel is selected and configured.
func (c *Config) ActiveRepo() string {
	if c.UseBeta && strings.TrimSpace(c.BetaRepo) != "" {
		return strings.TrimSpace(c.BetaRepo)
	}
	return strings.TrimSpace(c.Repo)
}

// IsBeta reports whether ActiveRepo is the beta repository.
func (c *Config) IsBeta() bool {
	return c.UseBeta && strings.TrimSpace(c.BetaRepo) != ""
}

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Validate checks everything that can be checked without touching the
// network or the game directories.
func (c *Config) Validate() error {
	repo := c.ActiveRepo()
	if repo == "" {
		return fmt.Errorf("%w: missing repo (owner/name)", ErrInvalid)
	}
	if !repoPattern.MatchString(repo) {
		return fmt.Errorf("%w: repo %q is not in owner/name form", ErrInvalid, repo)
	}
	if strings.TrimSpace(c.Pattern) == "" {
		return fmt.Errorf("%w: missing asset pattern", ErrInvalid)
	}
	if _, err := regexp.Compile(c.Pattern); err != nil {
		return fmt.Errorf("%w: pattern %q: %v", ErrInvalid, c.Pattern, err)
	}
	if c.AssetsPattern != "" {
		if _, err := regexp.Compile(c.AssetsPattern); err != nil {
			return fmt.Errorf("%w: assets_pattern %q: %v", ErrInvalid, c.AssetsPattern, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "mods", "clientjar", "jarmods":
	default:
		return fmt.Errorf("%w: unknown mode %q (want mods, clientJar or jarmods)", ErrInvalid, c.Mode)
	}
	if c.ResourcePackRepo != "" && !repoPattern.MatchString(c.ResourcePackRepo) {
		return fmt.Errorf("%w: resource_pack_repo %q is not in owner/name form", ErrInvalid, c.ResourcePackRepo)
	}
	if c.Launcher.Enabled {
		if !repoPattern.MatchString(c.Launcher.Repo) {
			return fmt.Errorf("%w: launcher.repo %q is not in owner/name form", ErrInvalid, c.Launcher.Repo)
		}
		if _, err := regexp.Compile(c.Launcher.Pattern); err != nil || c.Launcher.Pattern == "" {
			return fmt.Errorf("%w: launcher.pattern %q is not a valid pattern", ErrInvalid, c.Launcher.Pattern)
		}
	}
	if c.Optional.Enabled && (c.Optional.Name == "" || c.Optional.URL == "") {
		return fmt.Errorf("%w: optional component needs name and url", ErrInvalid)
	}
	return nil
}

// DefaultPath is the config file location for an instance.
func DefaultPath(instanceDir string) string {
	return filepath.Join(instanceDir, Dir, configName+"."+configType)
}

// WriteDefault writes the default configuration to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	content := append([]byte("# Auto-generated updater configuration\n"), data...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}

// SaveUseBeta persists the beta channel choice into the config file at path,
// keeping every other key as it is.
func SaveUseBeta(path string, useBeta bool) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc["use_beta"] = useBeta

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
