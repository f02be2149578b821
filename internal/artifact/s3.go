package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker"

	"store-uptime/internal/config"
	"store-uptime/internal/models"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Sink stores reports in a bucket. Calls go through a circuit breaker so a
// failing bucket fails jobs fast instead of stalling every worker.
type S3Sink struct {
	client  objectAPI
	bucket  string
	prefix  string
	breaker *gobreaker.CircuitBreaker
}

// NewS3Sink builds an S3 client from the artifact settings in cfg.
func NewS3Sink(ctx context.Context, cfg config.Config) (*S3Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ArtifactS3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ArtifactS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ArtifactS3Endpoint)
		}
		o.UsePathStyle = cfg.ArtifactS3PathStyle
	})
	return newS3Sink(client, cfg.ArtifactS3Bucket, cfg.ArtifactS3Prefix), nil
}

func newS3Sink(client objectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "artifact-s3",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (s *S3Sink) key(jobID string) string {
	return s.prefix + ObjectName(jobID)
}

func (s *S3Sink) Put(ctx context.Context, jobID string, rows []models.ReportRow) error {
	buf := &bytes.Buffer{}
	if err := WriteCSV(buf, rows); err != nil {
		return err
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(jobID)),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String("text/csv"),
		})
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *S3Sink) Open(ctx context.Context, jobID string) (io.ReadCloser, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(jobID)),
		})
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			// a missing key is an answer, not a bucket failure
			return nil, nil
		}
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	out, _ := res.(*s3.GetObjectOutput)
	if out == nil {
		return nil, ErrNotFound
	}
	return out.Body, nil
}
