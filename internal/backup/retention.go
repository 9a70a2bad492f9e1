package backup

import (
	"sort"
	"time"

	"dumpkeep/internal/config"
)

// ApplyRetention partitions one database's existing artifacts into those to
// keep and those to delete. It is a pure function over artifact metadata:
// the caller lists the directory, excludes the artifact the current run just
// produced, and deletes whatever comes back in del.
//
// MaxAge removes artifacts older than now-MaxAge; MaxCount then keeps only
// the newest N of the survivors. When both are set an artifact must pass
// both filters. A zero rule deletes nothing.
func ApplyRetention(existing []Artifact, rule config.RetentionRule, now time.Time) (keep, del []Artifact) {
	if rule.MaxAge <= 0 && rule.MaxCount <= 0 {
		return existing, nil
	}

	sorted := make([]Artifact, len(existing))
	copy(sorted, existing)

	// Newest first. Identical timestamps happen under coarse filesystem
	// clocks, so ties break on path to keep the decision reproducible.
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].Path < sorted[j].Path
	})

	cutoff := time.Time{}
	if rule.MaxAge > 0 {
		cutoff = now.Add(-rule.MaxAge)
	}

	for _, a := range sorted {
		if rule.MaxAge > 0 && a.CreatedAt.Before(cutoff) {
			del = append(del, a)
			continue
		}
		if rule.MaxCount > 0 && len(keep) >= rule.MaxCount {
			del = append(del, a)
			continue
		}
		keep = append(keep, a)
	}
	return keep, del
}
