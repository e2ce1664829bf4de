package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("lifeline %s\n", appVersion)
		fmt.Printf("  commit: %s\n", appCommit)
		fmt.Printf("  built:  %s\n", appDate)
		// The header decides which snapshots this binary will load.
		fmt.Printf("  snapshot header: %s\n", trimmedHeader())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
