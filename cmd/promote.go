package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
	"github.com/CloudNativeWorks/mod-updater/internal/selfupdate"
	"github.com/CloudNativeWorks/mod-updater/pkg/logger"
)

// promoteCmd applies a staged updater build. It is meant to run after the
// old process has exited and never fails the caller. It reads the same
// configuration as update so both agree on the executable and instance root.
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Apply a staged updater update",
	Run: func(cmd *cobra.Command, args []string) {
		instFlag, _ := cmd.Flags().GetString("instance-dir")

		cfg, loadErr := loadConfig(cmd.Flags(), instFlag)
		if loadErr != nil {
			cfg = config.Default()
			cfg.InstanceDir = instFlag
			cfg.Launcher.Path, _ = cmd.Flags().GetString("launcher")
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
		}
		_, root := resolveRoots(cfg)

		if err := initLogger(cfg, logFile(cfg, root), "promote"); err != nil {
			fmt.Println(err)
		}
		log := logger.NewLogger("promote")
		if loadErr != nil {
			log.WithError(loadErr).Warn("Configuration could not be loaded, using defaults")
		}

		exe, err := executablePath(cfg.Launcher.Path, root)
		if err != nil {
			log.WithError(err).Warn("Nothing to promote")
			return
		}

		outcome, err := selfupdate.NewStager(exe, root).Promote()
		if err != nil {
			log.WithError(err).Warn("Promotion failed, the staged update is kept for the next run")
			return
		}
		log.Infof("Promotion of %s finished: %s", exe, outcome)
	},
}

func init() {
	promoteCmd.Flags().String("instance-dir", "", "instance root (default: working directory)")
	promoteCmd.Flags().String("launcher", "", "path of the updater executable (default: launcher.path, else this binary)")
	RootCmd.AddCommand(promoteCmd)
}
