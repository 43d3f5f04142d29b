package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/pkg/logger"
)

const logFileName = "mod-updater.log"

var (
	cfgFile  string
	logLevel string
	Version  string
)

var RootCmd = &cobra.Command{
	Use:   "mod-updater",
	Short: "Mod Updater - keeps a game mod in step with its GitHub releases",
	Long: `Mod Updater checks a GitHub repository for the newest release, installs the
matching asset into the game instance and keeps itself up to date.`,
	SilenceUsage: true,
}

func Execute(version string) error {
	Version = version
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <instance>/tools/mod-updater/updater.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads configuration for a command, binding its flags.
func loadConfig(flags *pflag.FlagSet, instanceDir string) (*config.Config, error) {
	return config.Load(config.Options{
		File:        cfgFile,
		InstanceDir: instanceDir,
		Flags:       flags,
	})
}

// logFile is where the log is written: logging.file, else the updater
// directory of the instance.
func logFile(cfg *config.Config, instanceRoot string) string {
	if cfg.Logging.File != "" || instanceRoot == "" {
		return cfg.Logging.File
	}
	return filepath.Join(instanceRoot, config.Dir, logFileName)
}

// initLogger configures the shared logger. An empty file logs to stdout only.
func initLogger(cfg *config.Config, file, module string) error {
	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Module:     module,
		File:       file,
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		return fmt.Errorf("logger could not be initialized: %w", err)
	}
	return nil
}

// resolveRoots finds the game directory and the instance root, falling back
// to the working directory.
func resolveRoots(cfg *config.Config) (string, string) {
	mcDir := cfg.ResolveMinecraftDir()
	root := cfg.ResolveInstanceRoot(mcDir)
	if root == "" {
		root = workingRoot("")
	}
	return mcDir, root
}

// workingRoot is dir when set, else the working directory.
func workingRoot(dir string) string {
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			return abs
		}
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// executablePath is path resolved against root, or the running binary.
func executablePath(path, root string) (string, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return exe, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return path, nil
}
