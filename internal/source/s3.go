package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// S3API is the subset of the S3 client used for ranged artifact reads.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves the artifact from an s3://bucket/key object.
type S3Source struct {
	client  S3API
	bucket  string
	key     string
	limiter *rate.Limiter
}

func NewS3Source(ctx context.Context, rawURL, profile string, limiter *rate.Limiter) (*S3Source, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return newS3SourceWithClient(s3.NewFromConfig(cfg), bucket, key, limiter), nil
}

func newS3SourceWithClient(client S3API, bucket, key string, limiter *rate.Limiter) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key, limiter: limiter}
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

func (s *S3Source) Size(ctx context.Context) (int64, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return 0, &FetchError{Op: "head", Target: s.String(), Err: err}
	}
	if head.ContentLength == nil {
		return 0, fmt.Errorf("%w: missing content length", ErrInvalidSize)
	}
	size := aws.ToInt64(head.ContentLength)
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidSize, size)
	}
	log.Debug().Str("op", "source/s3").Int64("size", size).Msgf("Object size probed for %s", s)
	return size, nil
}

func (s *S3Source) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, &FetchError{Op: "get", Target: s.String(), Err: err}
	}
	defer obj.Body.Close()
	payload, err := readExact(limitReader(ctx, obj.Body, s.limiter), end-start+1)
	if err != nil {
		return nil, &FetchError{Op: "get", Target: s.String(), Err: err}
	}
	return payload, nil
}

func parseS3URL(raw string) (string, string, error) {
	trimmed := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", raw)
	}
	return parts[0], parts[1], nil
}
