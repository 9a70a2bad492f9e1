package backup

import (
	"os"
	"time"

	"dumpkeep/internal/config"
	"dumpkeep/internal/logger"
)

// PruneReport describes what retention did (or would do) for one database.
type PruneReport struct {
	Database string
	Kept     int
	Deleted  []string
}

// Prune applies the retention rules to the artifact directory outside of a
// backup run. With dryRun the deletions are reported but nothing is removed.
func Prune(dir string, databases []string, retention config.Retention, dryRun bool, l *logger.Logger) ([]PruneReport, error) {
	now := time.Now()
	var reports []PruneReport

	for _, database := range databases {
		existing, err := listArtifacts(dir, database)
		if err != nil {
			return reports, err
		}

		rule := retention.RuleFor(database)
		keep, del := ApplyRetention(existing, rule, now)

		report := PruneReport{Database: database, Kept: len(keep)}
		for _, a := range del {
			if dryRun {
				if l != nil {
					l.Info("Would delete", "file", a.Path)
				}
				report.Deleted = append(report.Deleted, a.Path)
				continue
			}
			if err := os.Remove(a.Path); err != nil {
				if l != nil {
					l.Warn("Cannot delete expired artifact", "file", a.Path, "error", err)
				}
				continue
			}
			if l != nil {
				l.Info("Retired old backup", "file", a.Path)
			}
			report.Deleted = append(report.Deleted, a.Path)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
