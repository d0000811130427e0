package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSAdapter implements Storage using Google Cloud Storage. Signing needs a
// service account id and private key; without them PresignGet fails.
type GCSAdapter struct {
	client         *gcs.Client
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
}

// GCSOptions configures GCS client initialization.
type GCSOptions struct {
	// Client provides an existing GCS client. A default client is created when nil.
	Client         *gcs.Client
	GoogleAccessID string
	PrivateKey     []byte
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCSAdapter, error) {
	client := opts.Client
	if client == nil {
		created, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		client = created
	}

	return &GCSAdapter{
		client:         client,
		googleAccessID: opts.GoogleAccessID,
		privateKey:     opts.PrivateKey,
		now:            time.Now,
	}, nil
}

func (g *GCSAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}

	if _, err := io.Copy(w, r); err != nil {
		return ObjectInfo{}, errors.Join(err, w.Close())
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}

	info := ObjectInfo{Bucket: bucket, Key: key, Size: opts.Size}
	if attrs := w.Attrs(); attrs != nil {
		info.Size = attrs.Size
		info.ETag = attrs.Etag
	}
	return info, nil
}

func (g *GCSAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	err := g.client.Bucket(bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCSAdapter) PresignGet(_ context.Context, bucket, key string, opts PresignOptions) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if g.googleAccessID == "" || len(g.privateKey) == 0 {
		return "", ErrMissingSigner
	}

	signOpts := &gcs.SignedURLOptions{
		Method:         http.MethodGet,
		Expires:        g.now().Add(opts.Expiry),
		GoogleAccessID: g.googleAccessID,
		PrivateKey:     g.privateKey,
		Scheme:         gcs.SigningSchemeV4,
	}
	if cd := opts.contentDisposition(); cd != "" {
		signOpts.QueryParameters = url.Values{"response-content-disposition": {cd}}
	}

	return gcs.SignedURL(bucket, key, signOpts)
}

func (g *GCSAdapter) Close() error {
	return g.client.Close()
}
