package backends

import (
	"context"
	"fmt"

	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage/gcs"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage/local"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage/s3"
)

// New returns the content store selected by STORAGE_BACKEND.
func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.StorageBackendLocal, "":
		return local.New(cfg.Dir)
	case config.StorageBackendS3:
		return s3.New(ctx, cfg, logg)
	case config.StorageBackendGCS:
		return gcs.New(ctx, cfg, logg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
