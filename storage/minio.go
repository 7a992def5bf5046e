package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"soundvault/config"
	"soundvault/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const metaOriginalName = "Original-Name"

// MinioStore implements BlobStore on top of a MinIO/S3 server, one bucket per
// namespace.
type MinioStore struct {
	client  *minio.Client
	buckets map[Namespace]string
}

// NewMinioStore connects to MinIO and ensures both namespace buckets exist.
// The returned store is constructed once at startup and injected into every
// consumer; there is no re-initialization path.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinioStore{
		client: client,
		buckets: map[Namespace]string{
			NamespaceAudio: cfg.AudioBucket,
			NamespaceImage: cfg.ImageBucket,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ns, bucket := range s.buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
			logger.Info("Created bucket", logger.String("bucket", bucket), logger.String("namespace", string(ns)))
		}
	}

	return s, nil
}

func (s *MinioStore) bucket(ns Namespace) (string, error) {
	bucket, ok := s.buckets[ns]
	if !ok {
		return "", fmt.Errorf("unknown blob namespace: %s", ns)
	}
	return bucket, nil
}

// Put streams a blob into the given namespace.
func (s *MinioStore) Put(ctx context.Context, ns Namespace, id string, r io.Reader, size int64, contentType, originalName string) error {
	bucket, err := s.bucket(ns)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, bucket, id, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{metaOriginalName: originalName},
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s/%s: %w", bucket, id, err)
	}
	return nil
}

// Open returns a reader over the blob's bytes. The read is driven by ctx, so
// cancelling the request aborts the transfer.
func (s *MinioStore) Open(ctx context.Context, ns Namespace, id string) (io.ReadCloser, error) {
	bucket, err := s.bucket(ns)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s/%s: %w", bucket, id, err)
	}
	return obj, nil
}

// Stat returns size and content metadata for a blob.
func (s *MinioStore) Stat(ctx context.Context, ns Namespace, id string) (ObjectInfo, error) {
	bucket, err := s.bucket(ns)
	if err != nil {
		return ObjectInfo{}, err
	}

	info, err := s.client.StatObject(ctx, bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat object %s/%s: %w", bucket, id, err)
	}

	return ObjectInfo{
		Size:         info.Size,
		ContentType:  info.ContentType,
		OriginalName: info.UserMetadata[metaOriginalName],
	}, nil
}

// Remove deletes a blob. Removing a missing blob is not an error.
func (s *MinioStore) Remove(ctx context.Context, ns Namespace, id string) error {
	bucket, err := s.bucket(ns)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s/%s: %w", bucket, id, err)
	}
	return nil
}

// BucketStats summarizes one namespace bucket for the storage CLI command.
type BucketStats struct {
	Bucket    string
	Objects   int64
	TotalSize int64
}

// Stats walks a namespace and accumulates object count and byte size.
func (s *MinioStore) Stats(ctx context.Context, ns Namespace) (BucketStats, error) {
	bucket, err := s.bucket(ns)
	if err != nil {
		return BucketStats{}, err
	}

	stats := BucketStats{Bucket: bucket}
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return stats, fmt.Errorf("failed to list bucket %s: %w", bucket, obj.Err)
		}
		stats.Objects++
		stats.TotalSize += obj.Size
	}
	return stats, nil
}

// ObjectEntry describes one stored blob in a namespace listing.
type ObjectEntry struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListObjects returns every object in a namespace. Used by the storage CLI
// command.
func (s *MinioStore) ListObjects(ctx context.Context, ns Namespace) ([]ObjectEntry, error) {
	bucket, err := s.bucket(ns)
	if err != nil {
		return nil, err
	}

	var entries []ObjectEntry
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, obj.Err)
		}
		entries = append(entries, ObjectEntry{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return entries, nil
}
