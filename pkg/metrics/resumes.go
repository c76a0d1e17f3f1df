package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes.
const (
	UploadCreated      = "created"
	UploadDeduplicated = "deduplicated"
	UploadRejected     = "rejected"
	UploadError        = "error"
)

// Processing results.
const (
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
	ProcessingMissing   = "missing"
	ProcessingSkipped   = "skipped"
	ProcessingCanceled  = "canceled"
)

// ResumeMetrics records upload and processing activity.
type ResumeMetrics struct {
	uploads    *prometheus.CounterVec
	uploadSize prometheus.Histogram
	processed  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewResumeMetrics registers the resume metrics on the provided registerer.
func NewResumeMetrics(reg prometheus.Registerer) *ResumeMetrics {
	if reg == nil {
		return &ResumeMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_uploads_total",
		Help: "Resume upload requests by outcome.",
	}, []string{"outcome"})
	uploadSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "resume_upload_bytes",
		Help:    "Size of accepted resume uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_processing_total",
		Help: "Processing task executions by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resume_processing_duration_seconds",
		Help:    "Duration of processing tasks in seconds, excluding the scheduling delay.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(uploads, uploadSize, processed, duration)
	return &ResumeMetrics{
		uploads:    uploads,
		uploadSize: uploadSize,
		processed:  processed,
		duration:   duration,
	}
}

// IncUpload increments the upload counter for the outcome.
func (m *ResumeMetrics) IncUpload(outcome string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveUploadSize records the size of an accepted upload.
func (m *ResumeMetrics) ObserveUploadSize(size int64) {
	if m == nil || m.uploadSize == nil {
		return
	}
	m.uploadSize.Observe(float64(size))
}

// ObserveProcessing records one processing task execution.
func (m *ResumeMetrics) ObserveProcessing(result string, duration time.Duration) {
	if m == nil || m.processed == nil {
		return
	}
	label := normalizeLabel(result)
	m.processed.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
