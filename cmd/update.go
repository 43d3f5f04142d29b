package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/mod-updater/internal/agent"
	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/progress"
	"github.com/CloudNativeWorks/mod-updater/internal/release"
	"github.com/CloudNativeWorks/mod-updater/internal/selfupdate"
	"github.com/CloudNativeWorks/mod-updater/pkg/logger"
)

var (
	updateBeta   bool
	updateStrict bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Install the latest release if it is newer than the installed one",
	Long: `Resolve the newest release of the configured repository, install the asset
matching the pattern into the instance and run the optional extras. The
updater's own update is checked alongside.

The command exits successfully even when the update fails, so it can be used
as a launcher pre-launch hook. Use --strict to surface failures.`,
	RunE: runUpdate,
}

func init() {
	f := updateCmd.Flags()
	f.String("repo", "", "release repository (owner/name)")
	f.String("pattern", "", "regular expression selecting the release asset")
	f.String("mode", "", "install mode: mods, clientJar or jarmods")
	f.String("minecraft-dir", "", "game directory (default: MC_DIR or <instance>/.minecraft)")
	f.String("instance-dir", "", "instance root")
	f.String("client-jar", "", "client jar to replace in clientJar mode")
	f.String("jarmod-name", "", "file name of the jar mod in jarmods mode")
	f.String("launcher", "", "path of the updater executable to self-update")
	f.BoolP("yes", "y", false, "install without asking")
	f.Bool("dry-run", false, "report what would be installed without changing anything")
	f.BoolVar(&updateBeta, "beta", false, "switch to the beta channel (persisted; --beta=false switches back)")
	f.BoolVar(&updateStrict, "strict", false, "exit with an error when the update fails")
	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	instFlag, _ := flags.GetString("instance-dir")

	cfg, err := loadConfig(flags, instFlag)
	if err != nil {
		return reportFailure(fmt.Errorf("configuration could not be loaded: %w", err))
	}
	mcDir, root := resolveRoots(cfg)

	// A dry run writes nothing, the log file included.
	file := ""
	if !cfg.DryRun {
		file = logFile(cfg, root)
	}
	if err := initLogger(cfg, file, "update"); err != nil {
		return reportFailure(err)
	}
	log := logger.NewLogger("update")

	configPath := cfg.File()
	if configPath == "" {
		configPath = cfgFile
	}
	if configPath == "" {
		configPath = config.DefaultPath(workingRoot(instFlag))
		if !cfg.DryRun {
			if written, err := config.WriteDefault(configPath, false); err != nil {
				log.Warnf("Could not write default configuration: %v", err)
			} else if written {
				log.Infof("Created default configuration at %s", configPath)
			}
		}
	}

	if flags.Changed("beta") {
		cfg.UseBeta = updateBeta
		if cfg.DryRun {
			log.Debugf("Dry run: channel choice not saved to %s", configPath)
		} else if err := config.SaveUseBeta(configPath, updateBeta); err != nil {
			log.WithError(err).Warn("Failed to persist channel choice")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userAgent := "mod-updater/" + Version
	client := release.NewClient(
		release.WithBaseURL(cfg.API.BaseURL),
		release.WithToken(cfg.Token),
		release.WithRetries(cfg.API.Retries),
		release.WithUserAgent(userAgent),
	)
	downloader := release.NewDownloader(userAgent)

	opts := []agent.Option{
		agent.WithReporter(progress.NewLogReporter(logger.NewLogger("update").Component("progress"))),
	}
	if !cfg.Yes {
		opts = append(opts, agent.WithConfirmer(agent.PromptConfirmer{In: os.Stdin, Out: os.Stdout}))
	}

	var stager *selfupdate.Stager
	if exe, err := executablePath(cfg.Launcher.Path, root); err != nil {
		log.WithError(err).Warn("Self-update disabled")
	} else {
		stager = selfupdate.NewStager(exe, root)
		var checker *selfupdate.Checker
		if cfg.Launcher.Enabled {
			checker = selfupdate.NewChecker(client, downloader, stager, cfg.Launcher.Repo, cfg.Launcher.Pattern, Version)
		}
		opts = append(opts, agent.WithSelfUpdate(stager, checker))
	}

	a := agent.New(cfg, agent.Paths{MinecraftDir: mcDir, InstanceDir: root}, client, downloader, opts...)
	report, runErr := a.Run(ctx)

	fmt.Println(report.Message())
	for _, b := range report.Backups {
		fmt.Printf("Backup: %s\n", b)
	}
	if stager != nil && stager.HasPending() {
		fmt.Printf("Updater update staged; it is applied on the next run or with `%s promote`\n", filepath.Base(stager.Executable()))
	}

	if runErr != nil {
		log.Errorf("Update failed (%s error): %v", report.Kind, runErr)
		return reportFailure(runErr)
	}
	return nil
}

// reportFailure swallows err unless --strict was given.
func reportFailure(err error) error {
	if updateStrict {
		return err
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return nil
}
