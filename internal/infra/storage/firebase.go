// Package storage implements port.ObjectStorage over the Firebase Cloud
// Storage bucket and over a local directory.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storage")

const service = "storage"

// FirebaseBucket stores objects in the app's default bucket and returns
// Firebase download URLs.
type FirebaseBucket struct {
	bucket *gcs.BucketHandle
	name   string
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// NewFirebaseBucket wraps bucket, whose name is used to build download URLs.
func NewFirebaseBucket(bucket *gcs.BucketHandle, name string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *FirebaseBucket {
	return &FirebaseBucket{bucket: bucket, name: name, cb: cb, cfg: cfg, logger: logger}
}

// DownloadURL is the public URL of an object guarded by a download token.
func DownloadURL(bucket, path, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(path), token)
}

// PathOf parses a download URL of this bucket back into the object path.
func (b *FirebaseBucket) PathOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "firebasestorage.googleapis.com" {
		return "", false
	}
	escaped, ok := strings.CutPrefix(u.EscapedPath(), "/v0/b/"+url.PathEscape(b.name)+"/o/")
	if !ok || escaped == "" {
		return "", false
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return path, true
}

func (b *FirebaseBucket) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "Storage.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("object.path", path))

	// Buffered so a failed attempt can be retried.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	token := uuid.New().String()

	err = resilience.Call(ctx, b.cb, b.cfg, service, func() error {
		w := b.bucket.Object(path).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		b.logger.Error("storage: upload failed", zap.String("path", path), zap.Error(err))
		return "", err
	}

	b.logger.Debug("storage: object uploaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return DownloadURL(b.name, path, token), nil
}

func (b *FirebaseBucket) Delete(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Storage.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("object.path", path))

	return resilience.Call(ctx, b.cb, b.cfg, service, func() error {
		err := b.bucket.Object(path).Delete(ctx)
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "object", ID: path})
		}
		return err
	})
}
