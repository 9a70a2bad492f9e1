package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dumpkeep/internal/backup"
	"dumpkeep/internal/config"
	"dumpkeep/internal/scheduler"
)

var scheduleShowNext int

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run backups on the configured schedule until stopped",
	Long: `Start the scheduler daemon. At every due time (schedule.interval/at,
or schedule.cron) it performs a full backup run, exactly as "dumpkeep run"
would. A run still in flight when the next tick arrives is skipped, never
queued. Config file edits are picked up without a restart.

With --next the command only prints the upcoming due times and exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := newLogger(cfg)

		rule, err := scheduler.ParseRule(cfg.Schedule)
		if err != nil {
			return err
		}

		if scheduleShowNext > 0 {
			t := time.Now()
			for i := 0; i < scheduleShowNext; i++ {
				t = rule.NextDueTime(t)
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC3339))
			}
			return nil
		}

		// The daemon re-reads config on change; current holds the latest.
		var mu sync.RWMutex
		current := cfg
		_, err = config.LoadAndWatch(cfgFile, func(next *config.Config) {
			mu.Lock()
			current = next
			mu.Unlock()
			l.Info("Config reloaded")
		})
		if err != nil {
			return err
		}

		runOnce := func(ctx context.Context) {
			mu.RLock()
			c := *current
			mu.RUnlock()

			orch, targets, err := buildOrchestrator(&c, l, false)
			if err != nil {
				l.Error("Scheduled run setup failed", "error", err)
				return
			}
			defer closeTargets(targets)

			databases := c.Database.Databases
			if len(databases) == 0 {
				var derr error
				databases, derr = resolveDatabases(ctx, &c, l, true)
				if derr != nil {
					l.Error("Scheduled run discovery failed", "error", derr)
					return
				}
			}

			if _, err := orch.Run(ctx, backup.NewJob(databases)); err != nil {
				l.Error("Scheduled run failed", "error", err)
			}
		}

		s, err := scheduler.New(rule, runOnce, l)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s.Start()
		<-ctx.Done()
		<-s.Stop().Done()
		l.Info("Scheduler stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().IntVar(&scheduleShowNext, "next", 0, "Print the next N due times and exit")
}
