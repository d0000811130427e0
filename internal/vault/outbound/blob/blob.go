package blob

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const contentTypeJSON = "application/json"

// Blob keeps vault exports in one bucket of the configured object store.
type Blob struct {
	store  storage.Storage
	bucket string
	ins    instrument.Instrumentation
}

func NewBlob(store storage.Storage, bucket string, ins instrument.Instrumentation) *Blob {
	return &Blob{store: store, bucket: bucket, ins: ins}
}

func (b *Blob) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return b.ins.Tracer("vault.outbound.blob").Start(ctx, name,
		trace.WithAttributes(attribute.String("bucket", b.bucket), attribute.String("key", key)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (b *Blob) PutExport(ctx context.Context, key string, body []byte) (err error) {
	ctx, span := b.startSpan(ctx, "PutExport", key)
	defer func() { endSpan(span, err) }()

	// exports hold plaintext passwords
	_, err = b.store.PutObject(ctx, b.bucket, key, bytes.NewReader(body), storage.PutOptions{
		Size:        int64(len(body)),
		ContentType: contentTypeJSON,
		Encrypt:     true,
	})
	return err
}

func (b *Blob) PresignExport(ctx context.Context, key string, expiry time.Duration) (url string, err error) {
	ctx, span := b.startSpan(ctx, "PresignExport", key)
	defer func() { endSpan(span, err) }()

	return b.store.PresignGet(ctx, b.bucket, key, storage.PresignOptions{
		Expiry:   expiry,
		Filename: "govault-" + path.Base(key),
	})
}

func (b *Blob) DeleteExport(ctx context.Context, key string) (err error) {
	ctx, span := b.startSpan(ctx, "DeleteExport", key)
	defer func() { endSpan(span, err) }()

	return b.store.DeleteObject(ctx, b.bucket, key)
}
