package attachments

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig locates an S3 compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStorage keeps attachments as objects named {kind}/{name}.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to the bucket, creating it when missing.
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("attachments: minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("attachments: failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("attachments: failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("attachments: failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads the content.
func (s *MinioStorage) Put(ctx context.Context, kind Kind, name string, r io.Reader, size int64, contentType string) (string, error) {
	if !validKind(kind) || !validName(name) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidRef, kind, name)
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(kind, name), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("attachments: failed to upload %s: %w", name, err)
	}
	return Ref(kind, name), nil
}

// Open streams the object behind ref.
func (s *MinioStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	kind, name, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	key := objectKey(kind, name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("attachments: failed to stat %s: %w", ref, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("attachments: failed to open %s: %w", ref, err)
	}
	return obj, nil
}

// Delete removes the object behind ref.
func (s *MinioStorage) Delete(ctx context.Context, ref string) error {
	kind, name, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey(kind, name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("attachments: failed to delete %s: %w", ref, err)
	}
	return nil
}

func objectKey(kind Kind, name string) string {
	return string(kind) + "/" + name
}
