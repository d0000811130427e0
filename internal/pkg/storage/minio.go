package storage

import (
	"context"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

// MinIOAdapter implements Storage using MinIO or any S3 compatible server
// reachable through minio-go.
type MinIOAdapter struct {
	client *minio.Client
}

// MinIOOptions configures MinIO client initialization.
type MinIOOptions struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	UseSSL       bool
}

func NewMinIO(opts MinIOOptions) (*MinIOAdapter, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinIOAdapter{client: client}, nil
}

func (m *MinIOAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
	if opts.Encrypt {
		putOpts.ServerSideEncryption = encrypt.NewSSE()
	}

	size := opts.Size
	if size <= 0 {
		size = -1
	}

	info, err := m.client.PutObject(ctx, bucket, key, r, size, putOpts)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{Bucket: bucket, Key: key, Size: info.Size, ETag: info.ETag}, nil
}

func (m *MinIOAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	return m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func (m *MinIOAdapter) PresignGet(ctx context.Context, bucket, key string, opts PresignOptions) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	var params url.Values
	if cd := opts.contentDisposition(); cd != "" {
		params = url.Values{"response-content-disposition": {cd}}
	}

	u, err := m.client.PresignedGetObject(ctx, bucket, key, opts.Expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *MinIOAdapter) Close() error {
	return nil
}
