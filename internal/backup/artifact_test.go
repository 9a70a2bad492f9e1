package backup

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dumpkeep/internal/compress"
	"dumpkeep/internal/config"
	apperrors "dumpkeep/internal/errors"
)

func TestCreateArtifact_GzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("INSERT INTO t VALUES (42);\n", 500)

	dump := func(ctx context.Context, database string, w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	}

	artifact, err := createArtifact(context.Background(), dump, dir, "shop", compress.Gzip, 0)
	require.NoError(t, err)

	assert.Equal(t, "shop", artifact.Database)
	assert.True(t, strings.HasSuffix(artifact.Path, ".sql.gz"))
	assert.Greater(t, artifact.Size, int64(0))
	assert.Less(t, artifact.Size, int64(len(content)), "gzip should shrink repetitive SQL")
	assert.Len(t, artifact.Checksum, 64)

	f, err := os.Open(artifact.Path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	restored, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, content, string(restored))
}

func TestCreateArtifact_EmptyDumpRejected(t *testing.T) {
	dir := t.TempDir()
	dump := func(ctx context.Context, database string, w io.Writer) error {
		return nil // exit-0, zero bytes
	}

	_, err := createArtifact(context.Background(), dump, dir, "shop", compress.Gzip, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeIntegrity))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected dump must not leave files behind")
}

func TestCreateArtifact_DumpErrorCleansUp(t *testing.T) {
	dir := t.TempDir()
	dump := func(ctx context.Context, database string, w io.Writer) error {
		io.WriteString(w, "partial output before crash")
		return apperrors.New(apperrors.TypeConnection, "server went away", "")
	}

	_, err := createArtifact(context.Background(), dump, dir, "shop", compress.Gzip, 0)
	require.Error(t, err)

	entries, rerr := os.ReadDir(dir)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
}

func TestCreateArtifact_TimeoutIsTransient(t *testing.T) {
	dir := t.TempDir()
	dump := func(ctx context.Context, database string, w io.Writer) error {
		io.WriteString(w, "slow dump")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}

	_, err := createArtifact(context.Background(), dump, dir, "shop", compress.Gzip, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeTimeout))
	assert.True(t, apperrors.IsTransient(err))
}

func TestListArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"shop-20240101-020000.sql.gz",
		"shop-20240102-020000.sql.zst",
		"crm-20240101-020000.sql.gz",
	}
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	// Noise that must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop-20240103-020000.sql.gz.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".shop.lock"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	artifacts, err := listArtifacts(dir, "shop")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	for _, a := range artifacts {
		assert.Equal(t, "shop", a.Database)
		assert.False(t, a.CreatedAt.IsZero())
		assert.Equal(t, int64(1), a.Size)
	}
	assert.Equal(t, 2024, artifacts[0].CreatedAt.Year(), "timestamp parsed from file name")
}

func TestListArtifacts_PrefixSiblingDatabase(t *testing.T) {
	dir := t.TempDir()
	mine := filepath.Join(dir, "shop-20200101-020000.sql.gz")
	sibling := filepath.Join(dir, "shop-eu-20300101-020000.sql.gz")
	require.NoError(t, os.WriteFile(mine, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))

	artifacts, err := listArtifacts(dir, "shop")
	require.NoError(t, err)
	require.Len(t, artifacts, 1, "shop must not claim shop-eu's artifact")
	assert.Equal(t, mine, artifacts[0].Path)

	artifacts, err = listArtifacts(dir, "shop-eu")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, sibling, artifacts[0].Path)
}

func TestListArtifacts_MalformedStampSkipped(t *testing.T) {
	dir := t.TempDir()
	// Hand-renamed or foreign files whose stamps do not parse carry no
	// reliable age; retention must not see them at all.
	for _, name := range []string{
		"shop-latest.sql.gz",
		"shop-2024.sql.gz",
		"shop-20240101-020000.sql.gz.bak",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	artifacts, err := listArtifacts(dir, "shop")
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestListArtifacts_MissingDirIsEmpty(t *testing.T) {
	artifacts, err := listArtifacts(filepath.Join(t.TempDir(), "nope"), "shop")
	assert.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestPrune_DryRunDeletesNothing(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "shop-20200101-020000.sql.gz")
	fresh := filepath.Join(dir, "shop-20300101-020000.sql.gz")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	retention := config.Retention{MaxCount: 1}

	reports, err := Prune(dir, []string{"shop"}, retention, true, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Kept)
	assert.Equal(t, []string{old}, reports[0].Deleted)
	assert.FileExists(t, old, "dry run must not delete")

	reports, err = Prune(dir, []string{"shop"}, retention, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, reports[0].Deleted)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestPrune_SparesPrefixSiblingDatabase(t *testing.T) {
	dir := t.TempDir()
	mine := filepath.Join(dir, "shop-20200101-020000.sql.gz")
	sibling := filepath.Join(dir, "shop-eu-20300101-020000.sql.gz")
	require.NoError(t, os.WriteFile(mine, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))

	reports, err := Prune(dir, []string{"shop"}, config.Retention{MaxCount: 1}, false, nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Kept)
	assert.Empty(t, reports[0].Deleted)
	assert.FileExists(t, mine)
	assert.FileExists(t, sibling, "pruning shop must never touch shop-eu's backups")
}
