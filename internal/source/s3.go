package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3API is the part of the S3 client the source uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Source streams an object addressed as s3://bucket/key.
type S3Source struct {
	stream
	profile string
	once    sync.Once
	api     S3API
	initErr error
}

// NewS3Source loads AWS configuration for profile on first use.
func NewS3Source(profile string) *S3Source {
	return &S3Source{profile: profile}
}

func NewS3SourceWithClient(api S3API) *S3Source {
	s := &S3Source{api: api}
	s.once.Do(func() {})
	return s
}

func (s *S3Source) client(ctx context.Context) (S3API, error) {
	s.once.Do(func() {
		opts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
		if s.profile != "" {
			opts = append(opts, config.WithSharedConfigProfile(s.profile))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("error loading AWS config: %w", err)
			return
		}
		s.api = s3.NewFromConfig(cfg)
	})
	return s.api, s.initErr
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(url string) (string, string, error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", url)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", url)
	}
	return bucket, key, nil
}

func statusFromError(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return StatusConnectionFailed
}

func (s *S3Source) Connect(ctx context.Context, url string) (int, error) {
	s.Close()
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return StatusConnectionFailed, err
	}
	api, err := s.client(ctx)
	if err != nil {
		return StatusConnectionFailed, err
	}
	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		status := statusFromError(err)
		log.Debug().Str("op", "source/s3").Err(err).Int("status", status).Msgf("GetObject s3://%s/%s failed", bucket, key)
		return status, fmt.Errorf("error getting object: %w", err)
	}
	length := LengthUnknown
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	s.open(out.Body, length)
	log.Debug().Str("op", "source/s3").Int64("length", length).Msgf("connected to s3://%s/%s", bucket, key)
	return http.StatusOK, nil
}

func (s *S3Source) ProbeLength(ctx context.Context, url string) int64 {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return LengthUnknown
	}
	api, err := s.client(ctx)
	if err != nil {
		return LengthUnknown
	}
	out, err := api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil || out.ContentLength == nil {
		return LengthUnknown
	}
	return *out.ContentLength
}
