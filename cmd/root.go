package cmd

import (
	"github.com/spf13/cobra"

	"dumpkeep/internal/logger"
)

var (
	cfgFile string
	logJSON bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "dumpkeep",
	Short: "dumpkeep backs up your databases and keeps the copies where you want them",
	Long: `dumpkeep automates periodic database backups: it dumps each configured
database, compresses and checksums the artifact, replicates it to every
configured destination (local directory, FTP, SFTP, S3), retires old copies
per your retention rules, and sends one summary notification per run.

A run never gives up halfway: one broken database or one unreachable
destination is recorded and reported while everything else proceeds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		l := logger.New(logger.Config{JSON: logJSON, NoColor: noColor})
		cmd.SetContext(logger.IntoContext(cmd.Context(), l))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the config file (default: ./dumpkeep.yaml)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored log output")
}

func Execute() error {
	return rootCmd.Execute()
}
