package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	apperrors "dumpkeep/internal/errors"
	"dumpkeep/internal/logger"
)

type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Dumper produces a raw logical dump of one database as a byte stream. A
// Dumper is bound to one server connection at construction; the orchestrator
// only ever hands it a database name and a writer.
type Dumper interface {
	Name() string
	// Ping verifies the server is reachable with the configured credentials.
	Ping(ctx context.Context) error
	// Dump streams a full logical snapshot of database into w.
	Dump(ctx context.Context, database string, w io.Writer) error
	// ListDatabases enumerates the non-system databases on the server.
	ListDatabases(ctx context.Context) ([]string, error)
}

type Factory func(conn ConnectionParams, l *logger.Logger) Dumper

var dumpers = map[string]Factory{}

func Register(engine string, f Factory) {
	dumpers[engine] = f
}

func New(engine string, conn ConnectionParams, l *logger.Logger) (Dumper, error) {
	f, ok := dumpers[engine]
	if !ok {
		return nil, fmt.Errorf("unsupported database engine: %s", engine)
	}
	return f(conn, l), nil
}

// runTool executes a native dump tool and streams its stdout into w. Stderr
// is captured so auth and privilege failures can be classified.
func runTool(ctx context.Context, name string, args []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(err.Error(), "executable file not found") {
			return apperrors.New(apperrors.TypeDependency, name+" not found", "Install the database client tools to enable logical backups.")
		}
		if containsAny(msg, "Access denied", "authentication failed", "password authentication failed") {
			return apperrors.Wrap(fmt.Errorf("%s: %s", err, msg), apperrors.TypeAuth, name+" was denied access", "Verify the database user and password.")
		}
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return apperrors.Wrap(err, apperrors.TypeInternal, name+" execution failed", "Check the tool output and database permissions.")
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
