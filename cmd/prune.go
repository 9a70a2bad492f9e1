package cmd

import (
	"github.com/spf13/cobra"

	"dumpkeep/internal/backup"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention rules without running a backup",
	Long: `Delete local backup artifacts that fall outside the retention window
(max age and/or max count, with per-database overrides). The same rules run
automatically at the end of every backup; prune exists for reclaiming disk
after tightening the rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := newLogger(cfg)

		databases := cfg.Database.Databases
		if len(args) > 0 {
			databases = args
		}

		reports, err := backup.Prune(cfg.Backup.Dir, databases, cfg.Retention, pruneDryRun, l)
		if err != nil {
			return err
		}

		for _, r := range reports {
			if pruneDryRun {
				l.Info("Prune (dry run)", "database", r.Database, "kept", r.Kept, "would_delete", len(r.Deleted))
			} else {
				l.Info("Prune", "database", r.Database, "kept", r.Kept, "deleted", len(r.Deleted))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Report what would be deleted without deleting")
}
