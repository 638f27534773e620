package service

import (
	"context"
	"errors"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.uber.org/zap"
)

// removeObject deletes the stored object behind url once nothing points
// at it anymore. URLs the storage does not own are left alone and
// failures are only logged.
func removeObject(ctx context.Context, storage port.ObjectStorage, logger *zap.Logger, url string) {
	if url == "" {
		return
	}
	path, ok := storage.PathOf(url)
	if !ok {
		return
	}
	err := storage.Delete(ctx, path)
	var nf *domain.ErrNotFound
	if err != nil && !errors.As(err, &nf) {
		logger.Warn("orphaned object not removed", zap.String("path", path), zap.Error(err))
	}
}
