package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// PutObjectAPI is the subset of the S3 client used by S3Store
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads images to a bucket
type S3Store struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// S3Option adjusts how the AWS configuration is loaded
type S3Option = func(*config.LoadOptions) error

// NewS3Store loads the AWS configuration from the environment and builds a
// client. Credentials from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, the
// shared config files or an instance role are used in that order.
func NewS3Store(ctx context.Context, settings conf.S3StorageSettings, opts ...S3Option) (*S3Store, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	loadOpts := []S3Option{}
	if settings.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(settings.Region))
	}
	loadOpts = append(loadOpts, opts...)

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Context("bucket", settings.Bucket).
			Build()
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
		o.UsePathStyle = settings.UsePathStyle
	})
	return NewS3StoreWithClient(client, settings.Bucket, settings.Prefix), nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client PutObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// WithStaticCredentials returns an option that uses fixed credentials
func WithStaticCredentials(accessKeyID, secretAccessKey string) S3Option {
	return config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""))
}

func (s *S3Store) Kind() string { return "s3" }

// Save uploads data and returns its s3:// location
func (s *S3Store) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := path.Join(s.prefix, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", errors.New(err).
			Component("imagestore").
			Category(errors.CategoryStorage).
			Context("bucket", s.bucket).
			Context("key", key).
			Build()
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
