package resumes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/resumeparser-backend/internal/extraction"
	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/enums"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/metrics"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

// Processing steps reported in failure logs.
const (
	stepLoadRecord  = "load_record"
	stepLoadContent = "load_content"
	stepExtract     = "extract"
	stepComplete    = "complete"
)

type processorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Resume, error)
	Complete(ctx context.Context, id uuid.UUID, in CompletionInput) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// ProcessorParams configure the processing task.
type ProcessorParams struct {
	Logger    *logger.Logger
	Repo      processorRepository
	Store     storage.Store
	Extractor extraction.Extractor
	Cache     StatusCache
	CacheTTL  time.Duration
	Metrics   *metrics.ResumeMetrics
	Delay     time.Duration
}

// Processor fills in extraction results for a resume in processing.
type Processor struct {
	logg      *logger.Logger
	repo      processorRepository
	store     storage.Store
	extractor extraction.Extractor
	cache     StatusCache
	cacheTTL  time.Duration
	metrics   *metrics.ResumeMetrics
	delay     time.Duration
	now       func() time.Time
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("resume repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("content store required")
	}
	if params.Extractor == nil {
		return nil, fmt.Errorf("extractor required")
	}
	cache := params.Cache
	if cache == nil {
		cache = nopStatusCache{}
	}
	return &Processor{
		logg:      params.Logger,
		repo:      params.Repo,
		store:     params.Store,
		extractor: params.Extractor,
		cache:     cache,
		cacheTTL:  params.CacheTTL,
		metrics:   params.Metrics,
		delay:     params.Delay,
		now:       time.Now,
	}, nil
}

// Process waits the configured delay, then extracts and stores results for
// the resume. Failures end in status failed; cancellation leaves the row in
// processing and returns the context error.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	ctx = p.logg.WithResumeID(ctx, id.String())

	if err := p.wait(ctx); err != nil {
		return err
	}
	start := time.Now()

	record, err := p.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.logg.Warn(p.logg.WithField(ctx, "step", stepLoadRecord), "resume.processing_target_missing")
		p.metrics.ObserveProcessing(metrics.ProcessingMissing, time.Since(start))
		return nil
	}
	if err != nil {
		return p.fail(ctx, id, stepLoadRecord, err, start)
	}
	if record.ProcessingStatus.IsTerminal() {
		p.metrics.ObserveProcessing(metrics.ProcessingSkipped, time.Since(start))
		return nil
	}

	p.logg.Info(ctx, "resume.processing_started")

	data, err := p.load(ctx, record)
	if err != nil {
		return p.fail(ctx, id, stepLoadContent, err, start)
	}

	opts := optionsFromMeta(record.Meta)
	result, err := p.extract(ctx, extraction.Document{
		FileName:    record.FileName,
		ContentType: record.FileType,
		Data:        data,
	}, opts)
	if err != nil {
		return p.fail(ctx, id, stepExtract, err, start)
	}

	enhancements := result.AIEnhancements
	if enhancements == nil {
		enhancements = map[string]any{"enabled": opts.EnhanceWithAI}
	}
	structured := result.StructuredData
	if structured == nil {
		structured = map[string]any{}
	}

	ok, err := p.repo.Complete(ctx, id, CompletionInput{
		RawText:        result.RawText,
		StructuredData: structured,
		AIEnhancements: enhancements,
		ProcessedAt:    p.now().UTC(),
	})
	if err != nil {
		return p.fail(ctx, id, stepComplete, err, start)
	}
	if !ok {
		p.logg.Info(ctx, "resume.processing_already_finished")
		p.metrics.ObserveProcessing(metrics.ProcessingSkipped, time.Since(start))
		return nil
	}

	p.cacheStatus(ctx, id, enums.ProcessingStatusCompleted)
	p.metrics.ObserveProcessing(metrics.ProcessingCompleted, time.Since(start))
	p.logg.Info(p.logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds()), "resume.processing_completed")
	return nil
}

func (p *Processor) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Processor) load(ctx context.Context, record *models.Resume) ([]byte, error) {
	location, _ := record.Meta[models.MetaKeyPath].(string)
	if location == "" {
		return nil, errors.New("resume has no storage path")
	}
	rc, err := p.store.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// extract calls the extractor and converts a panic into an error so the
// record can still be marked failed.
func (p *Processor) extract(ctx context.Context, doc extraction.Document, opts types.ProcessingOptions) (res *extraction.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	res, err = p.extractor.Extract(ctx, doc, opts)
	if err == nil && res == nil {
		err = errors.New("extractor returned no result")
	}
	return res, err
}

func (p *Processor) fail(ctx context.Context, id uuid.UUID, step string, cause error, start time.Time) error {
	ctx = p.logg.WithField(ctx, "step", step)
	if ctx.Err() != nil {
		p.logg.Warn(ctx, "resume.processing_interrupted")
		p.metrics.ObserveProcessing(metrics.ProcessingCanceled, time.Since(start))
		return ctx.Err()
	}
	p.logg.Error(ctx, "resume.processing_failed", cause)

	ok, err := p.repo.MarkFailed(ctx, id, p.now().UTC())
	if err != nil {
		return fmt.Errorf("mark resume %s failed after %s error: %w", id, step, err)
	}
	if ok {
		p.cacheStatus(ctx, id, enums.ProcessingStatusFailed)
	}
	p.metrics.ObserveProcessing(metrics.ProcessingFailed, time.Since(start))
	return nil
}

func (p *Processor) cacheStatus(ctx context.Context, id uuid.UUID, status enums.ProcessingStatus) {
	if err := p.cache.SetStatus(ctx, id.String(), status.String(), p.cacheTTL); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "resume.status_cache_write_failed")
	}
}

func optionsFromMeta(meta map[string]any) types.ProcessingOptions {
	raw, _ := meta[models.MetaKeyOptions].(map[string]any)
	return types.ProcessingOptionsFromMap(raw)
}
