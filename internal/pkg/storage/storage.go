// Package storage is the object store behind short-lived download artifacts.
//
// Callers write an object once, hand out a presigned GET URL for it and delete
// it when the hand-off fails. Listing, ranged reads and uploads by URL are not
// needed and not offered.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"
)

var (
	// ErrMissingSigner indicates signed URL support is not configured.
	ErrMissingSigner = errors.New("storage: signed url signer not configured")
	// ErrInvalidExpiry is returned for a non-positive presign lifetime.
	ErrInvalidExpiry = errors.New("storage: presign expiry must be positive")
)

// Storage defines the object operations used by the service.
type Storage interface {
	io.Closer

	// PutObject stores data and returns object metadata.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	// DeleteObject removes the object. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error
	// PresignGet returns a signed URL for downloading.
	PresignGet(ctx context.Context, bucket, key string, opts PresignOptions) (string, error)
}

// PutOptions configures upload behavior.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
	// Encrypt asks the backend for server-side encryption with provider managed keys.
	// GCS always encrypts at rest and ignores it.
	Encrypt bool
}

// PresignOptions configures a download URL.
type PresignOptions struct {
	Expiry time.Duration
	// Filename, when set, makes browsers save the object under this name.
	Filename string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

func (o PresignOptions) validate() error {
	if o.Expiry <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidExpiry, o.Expiry)
	}
	return nil
}

// contentDisposition renders the response-content-disposition override.
func (o PresignOptions) contentDisposition() string {
	if o.Filename == "" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": o.Filename})
}
