package backup

import (
	"context"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"

	"dumpkeep/internal/compress"
	"dumpkeep/internal/config"
	"dumpkeep/internal/db"
	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/lock"
	"dumpkeep/internal/logger"
	"dumpkeep/internal/notify"
)

// Orchestrator sequences one run: for each database dump, compress, verify,
// fan out to every destination, then retire old artifacts. Databases are
// processed one at a time to bound disk usage and load on the source server;
// only the upload fan-out within a database is concurrent.
type Orchestrator struct {
	dumper    db.Dumper
	targets   []Target
	notifier  notify.Notifier
	logger    *logger.Logger
	dir       string
	codec     compress.Algorithm
	retention config.Retention
	retry     RetryPolicy
	timeout   time.Duration
	progress  *mpb.Progress
}

type Options struct {
	Dumper      db.Dumper
	Targets     []Target
	Notifier    notify.Notifier
	Logger      *logger.Logger
	Dir         string
	Codec       compress.Algorithm
	Retention   config.Retention
	Retry       RetryPolicy
	DumpTimeout time.Duration
	// Progress enables live byte counters on interactive terminals.
	Progress *mpb.Progress
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Dumper == nil {
		return nil, apperrors.New(apperrors.TypeConfig, "No database engine configured", "Set database.engine in the config file.")
	}
	if len(opts.Targets) == 0 {
		return nil, apperrors.New(apperrors.TypeConfig, "No destinations configured", "Add at least one entry under destinations.")
	}
	if opts.Dir == "" {
		return nil, apperrors.New(apperrors.TypeConfig, "No backup directory configured", "Set backup.dir in the config file.")
	}
	if opts.Codec == "" {
		opts.Codec = compress.Gzip
	}
	return &Orchestrator{
		dumper:    opts.Dumper,
		targets:   opts.Targets,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		dir:       opts.Dir,
		codec:     opts.Codec,
		retention: opts.Retention,
		retry:     opts.Retry,
		timeout:   opts.DumpTimeout,
		progress:  opts.Progress,
	}, nil
}

// Run executes one job. Partial failure is never an error: everything that
// went wrong per database and per destination is captured in the RunResult.
// The error return is reserved for configuration mistakes detected before
// any work starts.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*RunResult, error) {
	if len(job.Databases) == 0 {
		return nil, apperrors.New(apperrors.TypeConfig, "No databases to back up", "List databases in the config file or pass --all to discover them.")
	}

	result := &RunResult{
		JobID:     job.ID,
		StartedAt: time.Now(),
	}

	if o.logger != nil {
		o.logger.Info("Backup run started", "run", job.ID, "databases", len(job.Databases), "destinations", len(o.targets))
	}

	for _, database := range job.Databases {
		// A cancelled run keeps what already completed; databases not yet
		// started simply get no entry.
		if ctx.Err() != nil {
			if o.logger != nil {
				o.logger.Warn("Run cancelled", "run", job.ID, "completed", len(result.Databases))
			}
			break
		}
		result.Databases = append(result.Databases, o.processDatabase(ctx, database))
	}

	result.FinishedAt = time.Now()
	result.Status = deriveStatus(result.Databases)
	if result.Status == notify.StatusSuccess && ctx.Err() != nil && len(result.Databases) < len(job.Databases) {
		result.Status = notify.StatusPartial
	}

	o.notifyOnce(result)

	if o.logger != nil {
		o.logger.Info("Backup run finished", "run", job.ID, "status", string(result.Status), "took", result.FinishedAt.Sub(result.StartedAt).Truncate(time.Millisecond))
	}
	return result, nil
}

// processDatabase runs the full pipeline for one database. A failure here is
// recorded, never propagated, so one broken database cannot abort the rest
// of the run.
func (o *Orchestrator) processDatabase(ctx context.Context, database string) DatabaseResult {
	res := DatabaseResult{Database: database}

	artifact, err := o.dumpAndCompress(ctx, database)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("Dump failed", "database", database, "error", err)
		}
		res.Err = err
		return res
	}
	res.DumpOK = true
	res.Artifact = artifact

	if o.logger != nil {
		o.logger.Info("Artifact ready", "database", database, "file", artifact.Path, "size", notify.FormatSize(artifact.Size), "sha256", artifact.Checksum[:12])
	}

	res.Uploads = fanOut(ctx, o.targets, artifact, o.retry, o.logger)

	res.Kept, res.Deleted = o.applyRetention(database, artifact)
	return res
}

// dumpAndCompress holds the per-database lock for the dump+compress phase
// only. Once the artifact is finalized the lock drops, so a later run may
// start dumping other databases while uploads are still in flight.
func (o *Orchestrator) dumpAndCompress(ctx context.Context, database string) (*Artifact, error) {
	lk, err := lock.Acquire(o.dir, database)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "Backup already in progress", "Wait for the running backup of this database to finish.")
	}
	defer lk.Release()

	return createArtifact(ctx, withProgress(o.progress, o.dumper.Dump), o.dir, database, o.codec, o.timeout)
}

// applyRetention retires old artifacts for one database. The artifact the
// current run just produced is excluded from the candidate set, so even a
// max_count of zero cannot delete the run's own output.
func (o *Orchestrator) applyRetention(database string, current *Artifact) (kept, deleted []string) {
	rule := o.retention.RuleFor(database)
	if rule.MaxAge <= 0 && rule.MaxCount <= 0 {
		return nil, nil
	}

	existing, err := listArtifacts(o.dir, database)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("Cannot list artifacts for retention", "database", database, "error", err)
		}
		return nil, nil
	}

	pool := existing[:0]
	for _, a := range existing {
		if current != nil && a.Path == current.Path {
			continue
		}
		pool = append(pool, a)
	}

	keep, del := ApplyRetention(pool, rule, time.Now())

	for _, a := range keep {
		kept = append(kept, a.Path)
	}
	for _, a := range del {
		if err := os.Remove(a.Path); err != nil {
			if o.logger != nil {
				o.logger.Warn("Cannot delete expired artifact", "file", a.Path, "error", err)
			}
			continue
		}
		if o.logger != nil {
			o.logger.Info("Retired old backup", "file", a.Path)
		}
		deleted = append(deleted, a.Path)
	}
	return kept, deleted
}

// notifyOnce sends exactly one summary for the whole run. Notification
// trouble is logged and never alters the run outcome; losing a Telegram
// message must not mark a good backup as failed.
func (o *Orchestrator) notifyOnce(result *RunResult) {
	if o.notifier == nil {
		return
	}
	// The run context may already be cancelled; the outcome report should
	// still go out.
	nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.notifier.Notify(nctx, result.Summary()); err != nil && o.logger != nil {
		o.logger.Warn("Notification failed", "error", err)
	}
}
