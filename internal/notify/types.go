package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dumpkeep/internal/logger"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Summary is the one message sent per run, covering every database and every
// destination. Batching avoids a notification storm when many databases are
// configured.
type Summary struct {
	RunID      string            `json:"run_id"`
	Status     Status            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Databases  []DatabaseSummary `json:"databases"`
}

type DatabaseSummary struct {
	Database string          `json:"database"`
	DumpOK   bool            `json:"dump_ok"`
	Error    string          `json:"error,omitempty"`
	Size     int64           `json:"size,omitempty"`
	Uploads  []UploadSummary `json:"uploads,omitempty"`
	Deleted  int             `json:"deleted,omitempty"`
}

type UploadSummary struct {
	Destination string        `json:"destination"`
	OK          bool          `json:"ok"`
	Error       string        `json:"error,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	Cancelled   bool          `json:"cancelled,omitempty"`
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Subject is a one-line headline for channels that have one (email).
func (s Summary) Subject() string {
	ok := 0
	for _, d := range s.Databases {
		if d.DumpOK {
			ok++
		}
	}
	switch s.Status {
	case StatusSuccess:
		return fmt.Sprintf("✅ Backup successful: %d database(s)", len(s.Databases))
	case StatusPartial:
		return fmt.Sprintf("⚠️ Backup partially failed: %d/%d database(s) dumped", ok, len(s.Databases))
	default:
		return fmt.Sprintf("❌ Backup failed: %d database(s)", len(s.Databases))
	}
}

// Render formats the run outcome as plain text for email and chat channels.
func (s Summary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", s.Subject())
	fmt.Fprintf(&b, "Run:      %s\n", s.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration().Truncate(time.Second))

	for _, d := range s.Databases {
		b.WriteString("\n")
		if !d.DumpOK {
			fmt.Fprintf(&b, "%s: dump FAILED", d.Database)
			if d.Error != "" {
				fmt.Fprintf(&b, " (%s)", d.Error)
			}
			b.WriteString("\n")
			continue
		}

		fmt.Fprintf(&b, "%s: dumped %s\n", d.Database, FormatSize(d.Size))
		for _, u := range d.Uploads {
			switch {
			case u.OK:
				fmt.Fprintf(&b, "  %s: ok (%d attempt(s), %s)\n", u.Destination, u.Attempts, u.Duration.Truncate(time.Millisecond))
			case u.Cancelled:
				fmt.Fprintf(&b, "  %s: cancelled\n", u.Destination)
			default:
				fmt.Fprintf(&b, "  %s: FAILED after %d attempt(s): %s\n", u.Destination, u.Attempts, u.Error)
			}
		}
		if d.Deleted > 0 {
			fmt.Fprintf(&b, "  retired %d old backup(s)\n", d.Deleted)
		}
	}

	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *logger.Logger
}

func (m *MultiNotifier) Notify(ctx context.Context, summary Summary) error {
	for _, n := range m.Notifiers {
		if err := n.Notify(ctx, summary); err != nil && m.Logger != nil {
			m.Logger.Warn("Notifier failed", "error", err)
		}
	}
	return nil
}

func FormatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
