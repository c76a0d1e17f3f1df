package resumes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/resumeparser-backend/internal/tasks"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/resumeparser-backend/pkg/errors"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/metrics"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

const (
	// TaskProcessResume names the background task in logs and metrics.
	TaskProcessResume  = "resume.process"
	defaultContentType = "application/octet-stream"
	// resumes.file_name is varchar(255)
	maxFileNameBytes = 255
)

type resumeRepository interface {
	Create(ctx context.Context, resume *models.Resume) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resume, error)
	FindByHash(ctx context.Context, hash string) (*models.Resume, error)
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type taskSubmitter interface {
	Submit(ctx context.Context, name string, fields map[string]any, task tasks.Task) error
}

type resumeProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Service exposes the upload workflow and resume lookups.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ResumeDetail, error)
	Status(ctx context.Context, id uuid.UUID) (*ResumeStatus, error)
}

// UploadInput is one multipart upload after transport decoding.
type UploadInput struct {
	FileName    string
	ContentType string
	Body        io.Reader
	Options     types.ProcessingOptions
	WebhookURL  *string
}

// ServiceParams configure the resume service.
type ServiceParams struct {
	Logger          *logger.Logger
	Repo            resumeRepository
	Store           storage.Store
	Tasks           taskSubmitter
	Processor       resumeProcessor
	Cache           StatusCache
	CacheTTL        time.Duration
	Metrics         *metrics.ResumeMetrics
	Upload          config.UploadConfig
	EstimateSeconds int
}

type service struct {
	logg      *logger.Logger
	repo      resumeRepository
	store     storage.Store
	tasks     taskSubmitter
	processor resumeProcessor
	cache     StatusCache
	cacheTTL  time.Duration
	metrics   *metrics.ResumeMetrics
	upload    config.UploadConfig
	estimate  int
	now       func() time.Time
}

// NewService builds the resume service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("resume repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("content store required")
	}
	if params.Tasks == nil {
		return nil, fmt.Errorf("task dispatcher required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	if params.Upload.MaxFileSizeMB <= 0 {
		return nil, fmt.Errorf("upload size limit must be positive")
	}
	cache := params.Cache
	if cache == nil {
		cache = nopStatusCache{}
	}
	return &service{
		logg:      params.Logger,
		repo:      params.Repo,
		store:     params.Store,
		tasks:     params.Tasks,
		processor: params.Processor,
		cache:     cache,
		cacheTTL:  params.CacheTTL,
		metrics:   params.Metrics,
		upload:    params.Upload,
		estimate:  params.EstimateSeconds,
		now:       time.Now,
	}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	ext, err := ValidateExtension(input.FileName)
	if err != nil {
		s.metrics.IncUpload(metrics.UploadRejected)
		return nil, err
	}
	if !ContentTypeMatches(ext, input.ContentType) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"file_name":    input.FileName,
			"content_type": input.ContentType,
		}), "resume.content_type_mismatch")
	}
	if input.Body == nil {
		s.metrics.IncUpload(metrics.UploadRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}

	data, hash, err := ReadAndHash(input.Body, s.upload)
	if err != nil {
		s.metrics.IncUpload(metrics.UploadRejected)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read uploaded file")
	}

	existing, err := s.repo.FindByHash(ctx, hash)
	switch {
	case err == nil:
		return s.reuse(ctx, existing, input.WebhookURL), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.metrics.IncUpload(metrics.UploadError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup resume by hash")
	}

	location, err := s.store.Save(ctx, input.FileName, input.ContentType, data)
	if err != nil {
		s.metrics.IncUpload(metrics.UploadError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store uploaded file")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	var webhook any
	if input.WebhookURL != nil {
		webhook = *input.WebhookURL
	}
	record := &models.Resume{
		ID:               uuid.New(),
		FileName:         storage.TruncateName(input.FileName, maxFileNameBytes),
		FileSize:         int64(len(data)),
		FileType:         contentType,
		FileHash:         hash,
		UploadedAt:       s.now().UTC(),
		ProcessingStatus: enums.ProcessingStatusProcessing,
		Meta: map[string]any{
			models.MetaKeyPath:       location,
			models.MetaKeyWebhookURL: webhook,
			models.MetaKeyOptions:    input.Options.ToMap(),
		},
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.discard(ctx, location)
		if !db.IsUniqueViolation(err, "") {
			s.metrics.IncUpload(metrics.UploadError)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create resume")
		}
		// another upload with the same bytes won the insert
		winner, findErr := s.repo.FindByHash(ctx, hash)
		if findErr != nil {
			s.metrics.IncUpload(metrics.UploadError)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload resume after duplicate insert")
		}
		return s.reuse(ctx, winner, input.WebhookURL), nil
	}

	ctx = s.logg.WithResumeID(ctx, record.ID.String())
	s.metrics.IncUpload(metrics.UploadCreated)
	s.metrics.ObserveUploadSize(record.FileSize)
	s.logg.Info(s.logg.WithField(ctx, "file_size", record.FileSize), "resume.uploaded")

	id := record.ID
	err = s.tasks.Submit(ctx, TaskProcessResume, map[string]any{"resume_id": id.String()}, func(taskCtx context.Context) error {
		return s.processor.Process(taskCtx, id)
	})
	if err != nil {
		return s.unscheduled(ctx, record, input.WebhookURL, err), nil
	}

	return &UploadResult{
		ID:                      id,
		Status:                  enums.ProcessingStatusProcessing.String(),
		Message:                 msgUploaded,
		EstimatedProcessingTime: s.estimate,
		WebhookURL:              input.WebhookURL,
	}, nil
}

func (s *service) reuse(ctx context.Context, existing *models.Resume, webhookURL *string) *UploadResult {
	s.metrics.IncUpload(metrics.UploadDeduplicated)
	s.logg.Info(s.logg.WithResumeID(ctx, existing.ID.String()), "resume.deduplicated")
	return &UploadResult{
		ID:                      existing.ID,
		Status:                  existing.ProcessingStatus.String(),
		Message:                 msgReused,
		EstimatedProcessingTime: s.estimate,
		WebhookURL:              webhookURL,
	}
}

// unscheduled marks the record failed when the dispatcher refuses the task so
// it does not sit in processing forever.
func (s *service) unscheduled(ctx context.Context, record *models.Resume, webhookURL *string, cause error) *UploadResult {
	s.logg.Error(ctx, "resume.processing_not_scheduled", cause)
	status := enums.ProcessingStatusProcessing
	ok, err := s.repo.MarkFailed(ctx, record.ID, s.now().UTC())
	switch {
	case err != nil:
		s.logg.Error(ctx, "resume.mark_failed_error", err)
	case ok:
		status = enums.ProcessingStatusFailed
		if cacheErr := s.cache.SetStatus(ctx, record.ID.String(), status.String(), s.cacheTTL); cacheErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", cacheErr.Error()), "resume.status_cache_write_failed")
		}
	}
	return &UploadResult{
		ID:                      record.ID,
		Status:                  status.String(),
		Message:                 msgNotScheduled,
		EstimatedProcessingTime: 0,
		WebhookURL:              webhookURL,
	}
}

func (s *service) discard(ctx context.Context, location string) {
	if err := s.store.Delete(ctx, location); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"location": location,
			"error":    err.Error(),
		}), "resume.orphan_cleanup_failed")
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ResumeDetail, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return DetailFromModel(record), nil
}

func (s *service) Status(ctx context.Context, id uuid.UUID) (*ResumeStatus, error) {
	cached, found, err := s.cache.GetStatus(ctx, id.String())
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"resume_id": id.String(), "error": err.Error()}), "resume.status_cache_read_failed")
	}
	if found {
		if status, parseErr := enums.ParseProcessingStatus(cached); parseErr == nil && status.IsTerminal() {
			return &ResumeStatus{ID: id, Status: status.String()}, nil
		}
	}

	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.ProcessingStatus.IsTerminal() {
		if err := s.cache.SetStatus(ctx, id.String(), record.ProcessingStatus.String(), s.cacheTTL); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"resume_id": id.String(), "error": err.Error()}), "resume.status_cache_write_failed")
		}
	}
	return &ResumeStatus{ID: id, Status: record.ProcessingStatus.String()}, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Resume, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Resume not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load resume")
	}
	return record, nil
}
