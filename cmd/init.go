package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/mod-updater/internal/config"
)

var (
	initInstanceDir string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath(workingRoot(initInstanceDir))
		}
		written, err := config.WriteDefault(path, initForce)
		if err != nil {
			return err
		}
		if written {
			fmt.Printf("Wrote default configuration to %s\n", path)
		} else {
			fmt.Printf("Configuration already exists at %s (use --force to overwrite)\n", path)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initInstanceDir, "instance-dir", "", "instance root (default: working directory)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	RootCmd.AddCommand(initCmd)
}
