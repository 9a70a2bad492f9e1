package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"dumpkeep/internal/logger"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dumpkeep version",
	Run: func(cmd *cobra.Command, args []string) {
		l := logger.FromContext(cmd.Context())
		l.Info("dumpkeep",
			"version", Version,
			"commit", Commit,
			"built_at", BuildDate,
			"go_version", runtime.Version(),
			"os", runtime.GOOS,
			"arch", runtime.GOARCH,
		)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("dumpkeep version {{ .Version }}\n")
	rootCmd.AddCommand(versionCmd)
}
