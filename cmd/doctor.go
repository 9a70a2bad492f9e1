package cmd

import (
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"dumpkeep/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tools, database connectivity and destinations",
	Long: `Verify the environment end to end before trusting it with backups:
native dump tools on PATH, a live connection to the configured database
server, and reachability of every configured destination.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l := newLogger(cfg)

		fmt.Printf("dumpkeep doctor (%s/%s)\n\n", runtime.GOOS, runtime.GOARCH)

		groups := []struct {
			name     string
			binaries []string
		}{
			{"MySQL", []string{"mysqldump", "mysql"}},
			{"PostgreSQL", []string{"pg_dump", "psql"}},
		}

		allOk := true
		fmt.Println("[Dump tools]")
		for _, group := range groups {
			for _, bin := range group.binaries {
				path, err := exec.LookPath(bin)
				if err != nil {
					fmt.Printf("  [ ] %-10s: NOT FOUND (%s)\n", bin, group.name)
					if group.name == engineGroup(cfg.Database.Engine) {
						allOk = false
					}
				} else {
					fmt.Printf("  [x] %-10s: %s\n", bin, path)
				}
			}
		}

		fmt.Printf("\n[Database: %s @ %s:%d]\n", cfg.Database.Engine, cfg.Database.Host, cfg.Database.Port)
		dumper, err := newDumper(cfg, l)
		if err != nil {
			fmt.Printf("  [ ] Engine: %v\n", err)
			allOk = false
		} else if err := dumper.Ping(cmd.Context()); err != nil {
			fmt.Printf("  [ ] Connection: FAILED (%v)\n", err)
			allOk = false
		} else {
			fmt.Println("  [x] Connection: OK")
		}

		if len(cfg.Destinations) > 0 {
			fmt.Println("\n[Destinations]")
			for _, d := range cfg.Destinations {
				scrubbed := storage.Scrub(d.URI)
				start := time.Now()
				s, err := storage.FromURI(d.URI, storage.Options{AllowInsecure: cfg.AllowInsecure})
				if err != nil {
					fmt.Printf("  [ ] %s: %v\n", scrubbed, err)
					allOk = false
					continue
				}
				if err := s.Ping(cmd.Context()); err != nil {
					fmt.Printf("  [ ] %s: FAILED (%v)\n", scrubbed, err)
					allOk = false
				} else {
					fmt.Printf("  [x] %s: OK (%s)\n", scrubbed, time.Since(start).Truncate(time.Millisecond))
				}
				s.Close()
			}
		}

		channels := 0
		if cfg.Notifications.Email.Enabled {
			channels++
		}
		if cfg.Notifications.Telegram.Enabled {
			channels++
		}
		channels += len(cfg.Notifications.Webhooks)
		fmt.Printf("\n[Notifications] %d channel(s) configured\n", channels)

		if allOk {
			fmt.Println("\nResult: ready. Every check for the configured engine and destinations passed.")
			return nil
		}
		fmt.Println("\nResult: some checks failed. Fix the items above before relying on scheduled backups.")
		return fmt.Errorf("environment checks failed")
	},
}

func engineGroup(engine string) string {
	switch engine {
	case "postgres", "postgresql":
		return "PostgreSQL"
	default:
		return "MySQL"
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
