package backup

import (
	"time"

	"github.com/google/uuid"

	"dumpkeep/internal/compress"
	"dumpkeep/internal/notify"
)

// Job is one requested run: the databases to back up, in the order they were
// requested. It is immutable once created and lives only for the duration of
// the run.
type Job struct {
	ID          string
	Databases   []string
	RequestedAt time.Time
}

// NewJob builds a run request. Repeated database names collapse to the
// first occurrence so `run --database a --database a` dumps a once instead
// of racing two artifacts into the same second.
func NewJob(databases []string) Job {
	seen := make(map[string]bool, len(databases))
	unique := make([]string, 0, len(databases))
	for _, d := range databases {
		if seen[d] {
			continue
		}
		seen[d] = true
		unique = append(unique, d)
	}
	return Job{
		ID:          uuid.NewString()[:8],
		Databases:   unique,
		RequestedAt: time.Now(),
	}
}

// Artifact is one compressed dump file for one database. It is written once
// by the orchestrator and only ever read afterwards.
type Artifact struct {
	Database  string
	Path      string
	Size      int64
	Checksum  string
	CreatedAt time.Time
	Codec     compress.Algorithm
}

// UploadOutcome records what happened at one destination for one artifact,
// across every retry attempt.
type UploadOutcome struct {
	Destination string
	OK          bool
	Err         error
	Attempts    int
	// Duration is summed across all attempts for this destination.
	Duration  time.Duration
	Cancelled bool
}

// DatabaseResult is the per-database outcome of one job. When the dump
// failed there is no artifact, so Uploads and Deleted stay empty.
type DatabaseResult struct {
	Database string
	DumpOK   bool
	Err      error
	Artifact *Artifact
	Uploads  []UploadOutcome
	Kept     []string
	Deleted  []string
}

type RunResult struct {
	JobID      string
	Status     notify.Status
	StartedAt  time.Time
	FinishedAt time.Time
	Databases  []DatabaseResult
}

// deriveStatus classifies a finished run: success only when every dump and
// every upload went through, failed only when not a single database was
// dumped, partial for everything in between.
func deriveStatus(results []DatabaseResult) notify.Status {
	anyDump := false
	allClean := len(results) > 0

	for _, r := range results {
		if !r.DumpOK {
			allClean = false
			continue
		}
		anyDump = true
		for _, u := range r.Uploads {
			if !u.OK {
				allClean = false
			}
		}
	}

	switch {
	case allClean:
		return notify.StatusSuccess
	case anyDump:
		return notify.StatusPartial
	default:
		return notify.StatusFailed
	}
}

// Summary flattens the result into the notification payload.
func (r *RunResult) Summary() notify.Summary {
	s := notify.Summary{
		RunID:      r.JobID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, d := range r.Databases {
		ds := notify.DatabaseSummary{
			Database: d.Database,
			DumpOK:   d.DumpOK,
			Deleted:  len(d.Deleted),
		}
		if d.Err != nil {
			ds.Error = d.Err.Error()
		}
		if d.Artifact != nil {
			ds.Size = d.Artifact.Size
		}
		for _, u := range d.Uploads {
			us := notify.UploadSummary{
				Destination: u.Destination,
				OK:          u.OK,
				Attempts:    u.Attempts,
				Duration:    u.Duration,
				Cancelled:   u.Cancelled,
			}
			if u.Err != nil {
				us.Error = u.Err.Error()
			}
			ds.Uploads = append(ds.Uploads, us)
		}
		s.Databases = append(s.Databases, ds)
	}
	return s
}
