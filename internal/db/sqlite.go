package db

import (
	"context"
	"database/sql"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
)

func init() {
	Register("sqlite", func(conn ConnectionParams, l *logger.Logger) Dumper {
		return &SqliteDumper{logger: l}
	})
}

// SqliteDumper backs up file-based SQLite databases. The "database name" is
// the file path; there is no server to connect to, so Ping and discovery are
// no-ops.
type SqliteDumper struct {
	logger *logger.Logger
}

func (s *SqliteDumper) Name() string {
	return "sqlite"
}

func (s *SqliteDumper) Ping(ctx context.Context) error {
	return nil
}

func (s *SqliteDumper) Dump(ctx context.Context, database string, w io.Writer) error {
	if err := s.checkIntegrity(ctx, database); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Debug("Streaming SQLite database file...", "path", database)
	}

	f, err := os.Open(database)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to open SQLite database file", "Verify the file path and permissions.")
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// checkIntegrity opens the file through the driver so an unreadable or
// corrupt database fails the dump instead of producing a broken artifact.
func (s *SqliteDumper) checkIntegrity(ctx context.Context, path string) error {
	handle, err := sql.Open("sqlite3", path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open SQLite DB", "Verify the file path and permissions.")
	}
	defer handle.Close()

	if err := handle.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to ping SQLite DB", "Ensure the file is a valid SQLite database.")
	}
	return nil
}

func (s *SqliteDumper) ListDatabases(ctx context.Context) ([]string, error) {
	return nil, apperrors.New(apperrors.TypeConfig, "sqlite does not support database discovery", "List the database file paths explicitly under database.databases.")
}
