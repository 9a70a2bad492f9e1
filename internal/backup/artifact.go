package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dumpkeep/internal/compress"
	apperrors "dumpkeep/internal/errors"
)

const stampLayout = "20060102-150405"

// artifactName builds the canonical artifact file name,
// e.g. shop-20240101-020000.sql.gz.
func artifactName(database string, at time.Time, codec compress.Algorithm) string {
	return fmt.Sprintf("%s-%s.sql%s", database, at.Format(stampLayout), compress.Extension(codec))
}

// countingWriter tracks how many raw bytes the dump tool produced so an
// exit-0 dump that wrote nothing can be rejected.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type dumpFunc func(ctx context.Context, database string, w io.Writer) error

// createArtifact streams one database dump through the compressor into the
// artifact directory and returns the finalized artifact. The checksum is
// computed over the compressed bytes, after compression, so it validates
// exactly what gets transmitted to each destination.
//
// The file is written under a temporary name and renamed only after
// verification, so a crashed or rejected dump never leaves a plausible
// artifact behind.
func createArtifact(ctx context.Context, dump dumpFunc, dir, database string, codec compress.Algorithm, timeout time.Duration) (*Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "Cannot create backup directory", "Check permissions on "+dir)
	}

	createdAt := time.Now()
	finalPath := filepath.Join(dir, artifactName(database, createdAt, codec))
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "Cannot create backup file", "Check permissions on "+dir)
	}

	hash := sha256.New()
	cw, err := compress.NewWriter(io.MultiWriter(f, hash), codec)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	dctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw := &countingWriter{w: cw}
	dumpErr := dump(dctx, database, raw)

	if cerr := cw.Close(); dumpErr == nil {
		dumpErr = cerr
	}
	if cerr := f.Close(); dumpErr == nil {
		dumpErr = cerr
	}

	if dumpErr != nil {
		os.Remove(tmpPath)
		if dctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, apperrors.Wrap(dumpErr, apperrors.TypeTimeout, "Dump timed out", "Raise backup.dump_timeout for large databases.")
		}
		return nil, dumpErr
	}

	if raw.n == 0 {
		os.Remove(tmpPath)
		return nil, apperrors.ErrEmptyArtifact
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return nil, apperrors.ErrIntegrityMismatch
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "Cannot finalize backup file", "")
	}

	return &Artifact{
		Database:  database,
		Path:      finalPath,
		Size:      info.Size(),
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		CreatedAt: createdAt,
		Codec:     codec,
	}, nil
}

// artifactStamp extracts the creation timestamp from an artifact file name.
// It accepts only the exact shape produced by artifactName: the database,
// a dash, the stamp, ".sql" and a known compression suffix. Anything else
// is not ours, even when the name shares a prefix with the database
// ("shop" must never claim shop-eu's artifacts).
func artifactStamp(name, database string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, database+"-")
	if !ok {
		return time.Time{}, false
	}
	stamp, ext, ok := strings.Cut(rest, ".sql")
	if !ok {
		return time.Time{}, false
	}
	switch ext {
	case "", ".gz", ".lz4", ".zst":
	default:
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// listArtifacts enumerates the finished artifacts for one database in dir.
// Timestamps come from the file name so retention decisions survive copies
// and restores that reset modification times. Names that do not match the
// canonical shape are skipped entirely; retention must never touch a file
// this process did not produce for this database.
func listArtifacts(dir, database string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		createdAt, ok := artifactStamp(name, database)
		if !ok {
			continue
		}

		var size int64
		if info, ierr := e.Info(); ierr == nil {
			size = info.Size()
		}

		artifacts = append(artifacts, Artifact{
			Database:  database,
			Path:      filepath.Join(dir, name),
			Size:      size,
			CreatedAt: createdAt,
			Codec:     compress.DetectAlgorithm(name),
		})
	}
	return artifacts, nil
}
