package cmd

import (
	"context"
	"fmt"

	"dumpkeep/internal/backup"
	"dumpkeep/internal/compress"
	"dumpkeep/internal/config"
	"dumpkeep/internal/db"
	"dumpkeep/internal/logger"
	"dumpkeep/internal/notify"
	"dumpkeep/internal/storage"
)

// loadConfig merges the config file with the persistent CLI flags. Flags win
// so an operator can force JSON logs on a one-off run without editing the
// file under the daemon.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if noColor {
		cfg.NoColor = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{JSON: cfg.LogJSON, NoColor: cfg.NoColor})
}

func newDumper(cfg *config.Config, l *logger.Logger) (db.Dumper, error) {
	return db.New(cfg.Database.Engine, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
	}, l)
}

// buildTargets opens one storage backend per configured destination. An ID
// defaults to the scrubbed URI so outcomes stay readable in notifications.
func buildTargets(cfg *config.Config) ([]backup.Target, error) {
	var targets []backup.Target
	for _, d := range cfg.Destinations {
		s, err := storage.FromURI(d.URI, storage.Options{AllowInsecure: cfg.AllowInsecure})
		if err != nil {
			closeTargets(targets)
			return nil, fmt.Errorf("destination %s: %w", storage.Scrub(d.URI), err)
		}
		id := d.ID
		if id == "" {
			id = storage.Scrub(d.URI)
		}
		targets = append(targets, backup.Target{ID: id, Store: s})
	}
	return targets, nil
}

func closeTargets(targets []backup.Target) {
	for _, t := range targets {
		t.Store.Close()
	}
}

func buildOrchestrator(cfg *config.Config, l *logger.Logger, withProgress bool) (*backup.Orchestrator, []backup.Target, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	dumper, err := newDumper(cfg, l)
	if err != nil {
		return nil, nil, err
	}

	targets, err := buildTargets(cfg)
	if err != nil {
		return nil, nil, err
	}

	codec, err := compress.Parse(cfg.Backup.Compression)
	if err != nil {
		closeTargets(targets)
		return nil, nil, err
	}

	opts := backup.Options{
		Dumper:    dumper,
		Targets:   targets,
		Notifier:  notify.BuildNotifier(cfg.Notifications, l),
		Logger:    l,
		Dir:       cfg.Backup.Dir,
		Codec:     codec,
		Retention: cfg.Retention,
		Retry: backup.RetryPolicy{
			MaxAttempts: cfg.Upload.MaxAttempts,
			BackoffBase: cfg.Upload.BackoffBase,
			BackoffCap:  cfg.Upload.BackoffCap,
			Timeout:     cfg.Upload.Timeout,
		},
		DumpTimeout: cfg.Backup.DumpTimeout,
	}
	if withProgress {
		opts.Progress = backup.NewProgressContainer()
	}

	orch, err := backup.NewOrchestrator(opts)
	if err != nil {
		closeTargets(targets)
		return nil, nil, err
	}
	return orch, targets, nil
}

// resolveDatabases returns the configured database list, or discovers every
// non-system database on the server when discover is set.
func resolveDatabases(ctx context.Context, cfg *config.Config, l *logger.Logger, discover bool) ([]string, error) {
	if !discover {
		return cfg.Database.Databases, nil
	}
	dumper, err := newDumper(cfg, l)
	if err != nil {
		return nil, err
	}
	names, err := dumper.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover databases: %w", err)
	}
	return names, nil
}
