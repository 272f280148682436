package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/storage/feed"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Scheme is the feed URI scheme served by FeedStore: minio://bucket/key.
const Scheme = "minio"

// FeedObject describes a stored feed.
type FeedObject struct {
	URI          string
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// FeedStore reads and writes bulk feeds in object storage.
type FeedStore struct {
	client    *MinIOClient
	logger    logging.Logger
	getObject func(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

func NewFeedStore(client *MinIOClient, log logging.Logger) *FeedStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &FeedStore{client: client, logger: log.Named("minio_feeds")}
	s.getObject = func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return client.GetClient().GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}
	return s
}

// URI returns the feed URI of key in the configured bucket.
func (s *FeedStore) URI(key string) string {
	return Scheme + "://" + s.client.Bucket() + "/" + strings.TrimPrefix(key, "/")
}

// Open implements ingestion.FeedSource. The object is checked up front so
// a missing feed fails here rather than on first read.
func (s *FeedStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := feed.BucketKey(uri)
	if err != nil {
		return nil, errors.FeedFailure(err, uri)
	}
	if _, err := s.client.GetClient().StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, errors.FeedFailure(errors.NotFound("feed object not found").WithCause(err), uri)
		}
		return nil, errors.FeedFailure(err, uri)
	}
	rc, err := s.getObject(ctx, bucket, key)
	if err != nil {
		return nil, errors.FeedFailure(err, uri)
	}
	s.logger.Debug("Feed opened", logging.String("uri", uri))
	return rc, nil
}

// Upload stores r under key. size may be -1 for an unknown length.
func (s *FeedStore) Upload(ctx context.Context, key string, r io.Reader, size int64) (*FeedObject, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return nil, errors.InvalidParam("object key is required")
	}
	opts := minio.PutObjectOptions{ContentType: contentType(key)}
	if size < 0 {
		opts.PartSize = uint64(s.client.config.PartSize)
	}
	info, err := s.client.GetClient().PutObject(ctx, s.client.Bucket(), key, r, size, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "feed upload failed").WithDetail(key)
	}
	s.logger.Info("Feed uploaded", logging.String("key", key), logging.Int64("size", info.Size))
	return &FeedObject{URI: s.URI(key), Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// List returns the feeds under prefix.
func (s *FeedStore) List(ctx context.Context, prefix string) ([]FeedObject, error) {
	var out []FeedObject
	for obj := range s.client.GetClient().ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeExternalService, "list feeds failed")
		}
		out = append(out, FeedObject{URI: s.URI(obj.Key), Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	return out, nil
}

func (s *FeedStore) Delete(ctx context.Context, key string) error {
	if err := s.client.GetClient().RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "feed delete failed").WithDetail(key)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".bz2"):
		return "application/x-bzip2"
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	}
	return "application/x-ndjson"
}

var _ ingestion.FeedSource = (*FeedStore)(nil)

//Personal.AI order the ending
