package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/mod-updater/internal/selfupdate"
)

var versionInstanceDir string

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the build version and the version recorded for the installed updater.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\n", Version)

		root := workingRoot(versionInstanceDir)
		exe, err := executablePath("", root)
		if err != nil {
			return
		}
		if recorded := selfupdate.RecordedVersion(exe, root); recorded != "" {
			fmt.Printf("Installed: %s\n", recorded)
		}
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionInstanceDir, "instance-dir", "", "instance root holding tools/mod-updater")
	RootCmd.AddCommand(versionCmd)
}
