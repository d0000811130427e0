package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Adapter implements Storage using AWS S3.
type S3Adapter struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// S3Options configures S3 client initialization.
type S3Options struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UsePathStyle bool
}

// NewS3 constructs an S3 adapter. Static keys are used when given, otherwise
// the default AWS credential chain applies.
func NewS3(ctx context.Context, opts S3Options) (*S3Adapter, error) {
	var loadOpts []func(*config.LoadOptions) error
	switch {
	case opts.Region != "":
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	case opts.Endpoint != "":
		loadOpts = append(loadOpts, config.WithRegion("us-east-1"))
	}
	if opts.AccessKey != "" || opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &S3Adapter{client: client, presign: s3.NewPresignClient(client)}, nil
}

func (s *S3Adapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.Size > 0 {
		input.ContentLength = aws.Int64(opts.Size)
	}
	if opts.Encrypt {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{Bucket: bucket, Key: key, Size: opts.Size, ETag: aws.ToString(out.ETag)}, nil
}

func (s *S3Adapter) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Adapter) PresignGet(ctx context.Context, bucket, key string, opts PresignOptions) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if cd := opts.contentDisposition(); cd != "" {
		input.ResponseContentDisposition = aws.String(cd)
	}

	out, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(opts.Expiry))
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *S3Adapter) Close() error {
	return nil
}
