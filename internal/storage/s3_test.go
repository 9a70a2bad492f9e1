package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestS3_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucketName := "testbucket"

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "minio/minio",
			Env: map[string]string{
				"MINIO_ACCESS_KEY": accessKey,
				"MINIO_SECRET_KEY": secretKey,
			},
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	endpoint := fmt.Sprintf("%s:%d", host, port.Int())
	uri := fmt.Sprintf("s3://%s:%s@%s/%s/backups?ssl=false", accessKey, secretKey, endpoint, bucketName)
	u, err := url.Parse(uri)
	require.NoError(t, err)

	s, err := NewS3(u)
	require.NoError(t, err)

	err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	require.NoError(t, err)

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("Save", func(t *testing.T) {
		content := []byte("-- dump for s3 destination\n")
		name := "shop-20240101-020000.sql.gz"
		loc, err := s.Save(ctx, name, bytes.NewReader(content))
		assert.NoError(t, err)
		assert.Contains(t, loc, name)

		obj, err := s.client.GetObject(ctx, bucketName, "backups/"+name, minio.GetObjectOptions{})
		require.NoError(t, err)
		defer obj.Close()

		got, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("Save_UnknownSize", func(t *testing.T) {
		content := []byte("dump streamed with unknown length")
		// Wrap in a plain io.Reader to hide the size
		wrapped := struct{ io.Reader }{bytes.NewReader(content)}
		loc, err := s.Save(ctx, "unknown-size.sql.gz", wrapped)
		assert.NoError(t, err)
		assert.Contains(t, loc, "unknown-size.sql.gz")
	})

	t.Run("MissingBucket", func(t *testing.T) {
		badURI := fmt.Sprintf("s3://%s:%s@%s/no-such-bucket?ssl=false", accessKey, secretKey, endpoint)
		bu, err := url.Parse(badURI)
		require.NoError(t, err)

		bad, err := NewS3(bu)
		require.NoError(t, err)
		assert.Error(t, bad.Ping(ctx))
	})
}
