package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
	"dumpkeep/internal/storage"
)

// Target is one configured destination: a stable identifier plus the storage
// backend behind it.
type Target struct {
	ID    string
	Store storage.Storage
}

// RetryPolicy bounds upload attempts per destination. Backoff doubles per
// attempt from BackoffBase and is capped at BackoffCap. Timeout bounds each
// individual attempt.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Timeout     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 2 * time.Second
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = time.Minute
	}
	return p
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BackoffBase << attempt
	if d > p.BackoffCap || d <= 0 {
		d = p.BackoffCap
	}
	return d
}

// fanOut pushes one artifact to every target concurrently and waits for all
// of them. One destination failing never blocks or cancels the others; the
// operator needs to know exactly which destinations are degraded.
func fanOut(ctx context.Context, targets []Target, artifact *Artifact, policy RetryPolicy, l *logger.Logger) []UploadOutcome {
	outcomes := make([]UploadOutcome, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			outcomes[i] = uploadWithRetry(ctx, t, artifact, policy, l)
		}(i, t)
	}
	wg.Wait()

	return outcomes
}

// uploadWithRetry drives one destination through the retry policy. Only
// transient failures consume further attempts; an auth rejection or a bad
// path aborts immediately since retrying cannot change the outcome.
func uploadWithRetry(ctx context.Context, t Target, artifact *Artifact, policy RetryPolicy, l *logger.Logger) UploadOutcome {
	policy = policy.withDefaults()
	outcome := UploadOutcome{Destination: t.ID}

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.Cancelled = true
			outcome.Err = apperrors.Wrap(err, apperrors.TypeCancelled, "Upload cancelled", "")
			return outcome
		}

		outcome.Attempts++
		start := time.Now()
		err := uploadOnce(ctx, t, artifact, policy.Timeout)
		outcome.Duration += time.Since(start)

		if err == nil {
			outcome.OK = true
			outcome.Err = nil
			return outcome
		}
		outcome.Err = err

		if ctx.Err() != nil {
			outcome.Cancelled = true
			return outcome
		}
		if !apperrors.IsTransient(err) {
			if l != nil {
				l.Warn("Upload failed permanently", "destination", t.ID, "error", err)
			}
			return outcome
		}

		if attempt < policy.MaxAttempts-1 {
			wait := policy.backoff(attempt)
			if l != nil {
				l.Warn("Upload failed, retrying", "destination", t.ID, "attempt", outcome.Attempts, "wait", wait, "error", err)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				outcome.Cancelled = true
				return outcome
			}
		}
	}

	return outcome
}

func uploadOnce(ctx context.Context, t Target, artifact *Artifact, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "Cannot open backup file for upload", "")
	}
	defer f.Close()

	_, err = t.Store.Save(ctx, filepath.Base(artifact.Path), f)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return apperrors.Wrap(err, apperrors.TypeTimeout, "Upload timed out", "Raise upload.timeout or check destination throughput.")
	}
	return err
}
