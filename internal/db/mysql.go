package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/go-sql-driver/mysql"

	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
)

func init() {
	Register("mysql", func(conn ConnectionParams, l *logger.Logger) Dumper {
		return &MysqlDumper{conn: conn, logger: l}
	})
}

// MysqlDumper runs logical full backups through mysqldump. Streaming stdout
// keeps the dump off the local disk until it has passed through compression.
type MysqlDumper struct {
	conn   ConnectionParams
	logger *logger.Logger
}

func (m *MysqlDumper) Name() string {
	return "mysql"
}

func (m *MysqlDumper) dsn(database string) string {
	conn := m.conn
	if conn.Port == 0 {
		conn.Port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", conn.User, conn.Password, conn.Host, conn.Port, database)
}

func (m *MysqlDumper) Ping(ctx context.Context) error {
	if m.logger != nil {
		m.logger.Debug("Testing database connection...", "host", m.conn.Host)
	}

	handle, err := sql.Open("mysql", m.dsn(""))
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open MySQL connection", "Check the configured host, port and credentials.")
	}
	defer handle.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handle.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to ping MySQL server", "Verify the database host, port, and credentials.")
	}
	return nil
}

func (m *MysqlDumper) Dump(ctx context.Context, database string, w io.Writer) error {
	conn := m.conn
	if conn.Port == 0 {
		conn.Port = 3306
	}

	if m.logger != nil {
		m.logger.Debug("Executing logical full backup (mysqldump)...", "database", database)
	}

	args := []string{
		fmt.Sprintf("--host=%s", conn.Host),
		fmt.Sprintf("--port=%d", conn.Port),
		fmt.Sprintf("--user=%s", conn.User),
		fmt.Sprintf("--password=%s", conn.Password),
		"--single-transaction",
		"--quick",
		"--skip-lock-tables",
		"--no-tablespaces",
		database,
	}

	return runTool(ctx, "mysqldump", args, w)
}

var mysqlSystemSchemas = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

func (m *MysqlDumper) ListDatabases(ctx context.Context) ([]string, error) {
	handle, err := sql.Open("mysql", m.dsn(""))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "failed to open MySQL connection", "Check the configured host, port and credentials.")
	}
	defer handle.Close()

	rows, err := handle.QueryContext(ctx, "SHOW DATABASES")
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
		if !mysqlSystemSchemas[name] {
			databases = append(databases, name)
		}
	}
	return databases, rows.Err()
}
