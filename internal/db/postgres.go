package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "github.com/lib/pq"

	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
)

func init() {
	Register("postgres", func(conn ConnectionParams, l *logger.Logger) Dumper {
		return &PostgresDumper{conn: conn, logger: l}
	})
}

// PostgresDumper runs logical full backups through pg_dump.
type PostgresDumper struct {
	conn   ConnectionParams
	logger *logger.Logger
}

func (p *PostgresDumper) Name() string {
	return "postgres"
}

func (p *PostgresDumper) dsn(database string) string {
	conn := p.conn
	if conn.Port == 0 {
		conn.Port = 5432
	}
	if database == "" {
		database = "postgres"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=prefer",
		conn.Host, conn.Port, conn.User, conn.Password, database)
}

func (p *PostgresDumper) Ping(ctx context.Context) error {
	handle, err := sql.Open("postgres", p.dsn(""))
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open Postgres connection", "Check the configured host, port and credentials.")
	}
	defer handle.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handle.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to ping Postgres server", "Verify the database host, port, and credentials.")
	}
	return nil
}

func (p *PostgresDumper) Dump(ctx context.Context, database string, w io.Writer) error {
	conn := p.conn
	if conn.Port == 0 {
		conn.Port = 5432
	}

	if p.logger != nil {
		p.logger.Debug("Executing logical full backup (pg_dump)...", "database", database)
	}

	args := []string{
		fmt.Sprintf("--host=%s", conn.Host),
		fmt.Sprintf("--port=%d", conn.Port),
		fmt.Sprintf("--username=%s", conn.User),
		"--no-password",
		database,
	}

	// pg_dump reads the password from the environment, never from argv.
	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+conn.Password)
	cmd.Stdout = w

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(err.Error(), "executable file not found") {
			return apperrors.New(apperrors.TypeDependency, "pg_dump not found", "Install postgresql-client to enable logical backups.")
		}
		if strings.Contains(msg, "password authentication failed") {
			return apperrors.Wrap(fmt.Errorf("%s: %s", err, msg), apperrors.TypeAuth, "pg_dump was denied access", "Verify the database user and password.")
		}
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return apperrors.Wrap(err, apperrors.TypeInternal, "pg_dump execution failed", "Check the tool output and database permissions.")
	}
	return nil
}

func (p *PostgresDumper) ListDatabases(ctx context.Context) ([]string, error) {
	handle, err := sql.Open("postgres", p.dsn(""))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "failed to open Postgres connection", "Check the configured host, port and credentials.")
	}
	defer handle.Close()

	rows, err := handle.QueryContext(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false AND datname <> 'postgres'")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConnection, "failed to list databases", "Verify the database host, port, and credentials.")
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		databases = append(databases, name)
	}
	return databases, rows.Err()
}
