package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverS3    = "s3"
	DriverGCS   = "gcs"
	DriverMinIO = "minio"
)

var (
	// ErrUnknownDriver indicates an unsupported storage driver.
	ErrUnknownDriver = errors.New("storage: unknown driver")
	// ErrEndpointRequired is returned when MinIO has no endpoint.
	ErrEndpointRequired = errors.New("storage: minio endpoint is required")
)

// FactoryOptions carries the settings of every driver; only the selected one is read.
type FactoryOptions struct {
	S3    S3Options
	GCS   GCSOptions
	MinIO MinIOOptions
}

// NewFromDriver constructs the Storage selected by storage.driver.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverGCS:
		return NewGCS(ctx, opts.GCS)
	case DriverMinIO:
		if opts.MinIO.Endpoint == "" {
			return nil, ErrEndpointRequired
		}
		return NewMinIO(opts.MinIO)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
