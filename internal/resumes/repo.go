package resumes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/enums"
)

// Repository handles resume persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to resume operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new resume row. A second row with the same file hash is
// rejected by the resumes_file_hash_key constraint.
func (r *Repository) Create(ctx context.Context, resume *models.Resume) error {
	if resume == nil {
		return fmt.Errorf("resume is required")
	}
	return r.db.WithContext(ctx).Create(resume).Error
}

// FindByID loads a resume by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Resume, error) {
	var resume models.Resume
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// FindByHash loads the resume holding the given SHA-256 fingerprint.
func (r *Repository) FindByHash(ctx context.Context, hash string) (*models.Resume, error) {
	var resume models.Resume
	if err := r.db.WithContext(ctx).Where("file_hash = ?", hash).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// CompletionInput is the result payload of a successful processing run.
type CompletionInput struct {
	RawText        string
	StructuredData map[string]any
	AIEnhancements map[string]any
	ProcessedAt    time.Time
}

// Complete moves a processing resume to completed and stores its results.
// It reports false when the row was not in processing.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, in CompletionInput) (bool, error) {
	return r.finish(ctx, id, map[string]any{
		"processing_status": enums.ProcessingStatusCompleted.String(),
		"raw_text":          in.RawText,
		"structured_data":   datatypes.JSONMap(in.StructuredData),
		"ai_enhancements":   datatypes.JSONMap(in.AIEnhancements),
		"processed_at":      in.ProcessedAt,
	})
}

// MarkFailed moves a processing resume to failed. Result columns stay null.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.finish(ctx, id, map[string]any{
		"processing_status": enums.ProcessingStatusFailed.String(),
		"processed_at":      at,
	})
}

func (r *Repository) finish(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("id = ? AND processing_status = ?", id, enums.ProcessingStatusProcessing.String()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
