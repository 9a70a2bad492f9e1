package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dumpkeep/internal/backup"
	"dumpkeep/internal/notify"
)

var (
	runAll       bool
	runDatabases []string
	runNoBar     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up every configured database now",
	Long: `Run one backup cycle: dump each database, compress and checksum the
artifact, push it to every destination concurrently, then retire old copies.

Exits non-zero only when not a single database could be backed up; a partial
run (some database or destination failed) exits zero and reports the detail
in the logs and the notification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		databases := runDatabases
		if len(databases) == 0 {
			databases, err = resolveDatabases(ctx, cfg, l, runAll)
			if err != nil {
				return err
			}
		}

		showBar := !runNoBar && !cfg.LogJSON
		orch, targets, err := buildOrchestrator(cfg, l, showBar)
		if err != nil {
			return err
		}
		defer closeTargets(targets)

		result, err := orch.Run(ctx, backup.NewJob(databases))
		if err != nil {
			return err
		}

		if result.Status == notify.StatusFailed {
			return fmt.Errorf("backup run %s failed: no database could be backed up", result.JobID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runAll, "all", false, "Discover and back up every non-system database on the server")
	runCmd.Flags().StringSliceVar(&runDatabases, "database", nil, "Back up only these databases (overrides the config list)")
	runCmd.Flags().BoolVar(&runNoBar, "no-progress", false, "Disable the progress bar")
}
