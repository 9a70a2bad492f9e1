package storage

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "dumpkeep/internal/errors"
)

// S3 stores artifacts in an S3-compatible object store (AWS, MinIO, most
// cloud drives with an S3 gateway).
//
// URI form: s3://ACCESS:SECRET@endpoint/bucket[/prefix][?ssl=false&region=r]
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
	host   string
}

func NewS3(u *url.URL) (*S3, error) {
	accessKey := u.User.Username()
	secretKey, _ := u.User.Password()

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return nil, apperrors.New(apperrors.TypeConfig, "s3 URI is missing a bucket", "Use s3://ACCESS:SECRET@endpoint/bucket[/prefix].")
	}
	bucket := parts[0]
	prefix := ""
	if len(parts) == 2 {
		prefix = parts[1]
	}

	useSSL := u.Query().Get("ssl") != "false"
	region := u.Query().Get("region")

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "failed to build S3 client", "Check the endpoint and credentials in the s3 URI.")
	}

	return &S3{
		client: client,
		bucket: bucket,
		prefix: prefix,
		host:   u.Host,
	}, nil
}

func (s *S3) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := path.Join(s.prefix, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", classifyS3Error(err)
	}
	return "s3://" + s.host + "/" + path.Join(s.bucket, key), nil
}

func (s *S3) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyS3Error(err)
	}
	if !ok {
		return apperrors.New(apperrors.TypeConfig, "s3 bucket does not exist: "+s.bucket, "Create the bucket or fix the URI.")
	}
	return nil
}

func (s *S3) Location() string {
	return "s3://" + s.host + "/" + path.Join(s.bucket, s.prefix)
}

func (s *S3) Close() error {
	return nil
}

func classifyS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return apperrors.Wrap(err, apperrors.TypeAuth, "S3 request rejected", "Verify the access key and secret in the s3 URI.")
	case "NoSuchBucket":
		return apperrors.Wrap(err, apperrors.TypeConfig, "S3 bucket not found", "Create the bucket or fix the URI.")
	case "QuotaExceeded", "EntityTooLarge":
		return apperrors.Wrap(err, apperrors.TypeResource, "S3 rejected the object", "Check the storage quota and object size limits.")
	case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
		return apperrors.Wrap(err, apperrors.TypeConnection, "S3 temporarily unavailable", "The upload will be retried.")
	}
	// No recognized response code means the request never got a well-formed
	// answer, most likely a network problem.
	if resp.Code == "" {
		return apperrors.Wrap(err, apperrors.TypeConnection, "S3 request failed", "Check connectivity to the endpoint.")
	}
	return apperrors.Wrap(err, apperrors.TypeInternal, "S3 request failed", "Inspect the underlying error.")
}
