package resumes

import (
	"context"
	"time"
)

// StatusCache stores terminal statuses so status polls can skip the database.
// Only completed and failed are ever written since they never change.
type StatusCache interface {
	SetStatus(ctx context.Context, resumeID, status string, ttl time.Duration) error
	GetStatus(ctx context.Context, resumeID string) (string, bool, error)
}

type nopStatusCache struct{}

func (nopStatusCache) SetStatus(context.Context, string, string, time.Duration) error {
	return nil
}

func (nopStatusCache) GetStatus(context.Context, string) (string, bool, error) {
	return "", false, nil
}
