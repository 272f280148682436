// Package s3 serves bulk feeds stored in Amazon S3 or an S3-compatible
// endpoint.
package s3

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sagerock/ai-law-research/internal/config"
	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/infrastructure/storage/feed"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

const Scheme = "s3"

// API is the subset of *s3.Client used by FeedSource.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// FeedSource opens s3://bucket/key feeds.
type FeedSource struct {
	api    API
	bucket string
	logger logging.Logger
}

// NewFeedSource loads the default AWS credential chain, overridden by
// static keys and a custom endpoint when configured.
func NewFeedSource(ctx context.Context, cfg config.S3Config, logger logging.Logger) (*FeedSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewFeedSourceWithAPI(client, cfg.Bucket, logger), nil
}

func NewFeedSourceWithAPI(api API, bucket string, logger logging.Logger) *FeedSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FeedSource{api: api, bucket: bucket, logger: logger.Named("s3_feeds")}
}

func (s *FeedSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := feed.BucketKey(uri)
	if err != nil {
		return nil, errors.FeedFailure(err, uri)
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errors.FeedFailure(errors.NotFound("feed object not found").WithCause(err), uri)
		}
		return nil, errors.FeedFailure(err, uri)
	}
	s.logger.Debug("Feed opened", logging.String("uri", uri))
	return out.Body, nil
}

// List returns feed URIs under prefix in the configured bucket.
func (s *FeedSource) List(ctx context.Context, prefix string) ([]string, error) {
	if s.bucket == "" {
		return nil, errors.InvalidParam("s3 bucket is not configured")
	}
	var (
		uris  []string
		token *string
	)
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExternalService, "list feeds failed")
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			uris = append(uris, Scheme+"://"+s.bucket+"/"+key)
		}
		if !aws.ToBool(out.IsTruncated) {
			return uris, nil
		}
		token = out.NextContinuationToken
	}
}

var _ ingestion.FeedSource = (*FeedSource)(nil)

//Personal.AI order the ending
