package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/resumeparser-backend/internal/extraction"
	"github.com/angelmondragon/resumeparser-backend/internal/resumes"
	"github.com/angelmondragon/resumeparser-backend/internal/tasks"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/metrics"
	"github.com/angelmondragon/resumeparser-backend/pkg/migrate"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage/local"
	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

// gatedExtractor blocks until release is closed so tests can observe the
// processing state.
type gatedExtractor struct {
	release chan struct{}
	inner   extraction.Extractor
}

func (g *gatedExtractor) Extract(ctx context.Context, doc extraction.Document, opts types.ProcessingOptions) (*extraction.Result, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.Extract(ctx, doc, opts)
}

type testApp struct {
	handler http.Handler
	conn    *gorm.DB
	gate    *gatedExtractor
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	cfg := &config.Config{
		App: config.AppConfig{
			Name:               "AI Resume Parser",
			APIPrefix:          "/api/v1",
			CORSAllowedOrigins: []string{"*"},
		},
		Upload:     config.UploadConfig{MaxFileSizeMB: 1},
		Processing: config.ProcessingConfig{EstimateSeconds: 30, Workers: 2, QueueSize: 8},
	}

	client, err := db.New(ctx, config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "routes.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Up(ctx, sqlDB, config.DriverSQLite, migrate.Embedded()))

	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	resumeMetrics := metrics.NewResumeMetrics(reg)

	dispatcher, err := tasks.New(tasks.Options{
		Workers:   cfg.Processing.Workers,
		QueueSize: cfg.Processing.QueueSize,
		Metrics:   metrics.NewTaskMetrics(reg),
	}, logg)
	require.NoError(t, err)
	require.NoError(t, dispatcher.Start(ctx))

	gate := &gatedExtractor{release: make(chan struct{}), inner: extraction.StubExtractor{}}
	t.Cleanup(func() {
		select {
		case <-gate.release:
		default:
			close(gate.release)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(shutdownCtx)
	})

	repo := resumes.NewRepository(client.DB())
	processor, err := resumes.NewProcessor(resumes.ProcessorParams{
		Logger:    logg,
		Repo:      repo,
		Store:     store,
		Extractor: gate,
		Metrics:   resumeMetrics,
	})
	require.NoError(t, err)

	svc, err := resumes.NewService(resumes.ServiceParams{
		Logger:          logg,
		Repo:            repo,
		Store:           store,
		Tasks:           dispatcher,
		Processor:       processor,
		Metrics:         resumeMetrics,
		Upload:          cfg.Upload,
		EstimateSeconds: cfg.Processing.EstimateSeconds,
	})
	require.NoError(t, err)

	return &testApp{
		handler: NewRouter(cfg, logg, client, nil, svc, reg),
		conn:    client.DB(),
		gate:    gate,
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, a.conn.Model(&models.Resume{}).Count(&n).Error)
	return n
}

func uploadRequest(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	msg, _ := errBody["message"].(string)
	return msg
}

func TestUploadProcessAndFetch(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, uploadRequest(t, "cv.pdf", []byte("%PDF-1.4 resume bytes"), map[string]string{
		"options":    `{"extractTechnologies":true,"performOCR":false,"enhanceWithAI":true,"anonymize":false,"language":"en"}`,
		"webhookUrl": "https://hooks.example.com/done",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	upload := decode(t, rec)
	assert.Equal(t, "processing", upload["status"])
	assert.Equal(t, "Resume uploaded successfully", upload["message"])
	assert.EqualValues(t, 30, upload["estimatedProcessingTime"])
	assert.Equal(t, "https://hooks.example.com/done", upload["webhookUrl"])
	id, ok := upload["id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": id, "status": "processing"}, decode(t, rec))

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Equal(t, "cv.pdf", detail["file_name"])
	assert.Nil(t, detail["raw_text"])
	assert.Nil(t, detail["structured_data"])
	assert.Nil(t, detail["ai_enhancements"])

	close(app.gate.release)

	require.Eventually(t, func() bool {
		rec := app.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id+"/status", nil))
		return rec.Code == http.StatusOK && decode(t, rec)["status"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	detail = decode(t, rec)
	assert.Equal(t, "completed", detail["status"])
	assert.Equal(t, "This is simulated extracted text from the resume.", detail["raw_text"])
	assert.NotNil(t, detail["structured_data"])
	assert.Equal(t, map[string]any{"enabled": true}, detail["ai_enhancements"])

	// a second upload of the same bytes reuses the record
	rec = app.do(t, uploadRequest(t, "renamed.pdf", []byte("%PDF-1.4 resume bytes"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode(t, rec)
	assert.Equal(t, id, again["id"])
	assert.Equal(t, "completed", again["status"])
	assert.Equal(t, "Resume already exists (by hash). Reusing existing record.", again["message"])
	assert.Equal(t, int64(1), app.count(t))
}

func TestResumeLookupNotFound(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{
		"/api/v1/resumes/" + uuid.NewString(),
		"/api/v1/resumes/" + uuid.NewString() + "/status",
		"/api/v1/resumes/not-a-uuid",
		"/api/v1/resumes/not-a-uuid/status",
	} {
		rec := app.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Resume not found", errorMessage(t, rec), path)
	}
}

func TestUploadRejectsMalformedOptions(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, uploadRequest(t, "cv.pdf", []byte("resume"), map[string]string{"options": "{not json"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON in 'options' field", errorMessage(t, rec))
	assert.Equal(t, int64(0), app.count(t))
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, uploadRequest(t, "setup.exe", []byte("MZ"), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported file type: .exe", errorMessage(t, rec))
	assert.Equal(t, int64(0), app.count(t))
}

func TestUploadRequiresFile(t *testing.T) {
	app := newTestApp(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("options", "{}"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := app.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	app := newTestApp(t)

	content := bytes.Repeat([]byte("a"), 1024*1024+1)
	rec := app.do(t, uploadRequest(t, "big.txt", content, nil))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "File too large. Max 1 MB", errorMessage(t, rec))
	assert.Equal(t, int64(0), app.count(t))

	// far past the multipart allowance the body reader trips first
	content = bytes.Repeat([]byte("a"), 3*1024*1024)
	rec = app.do(t, uploadRequest(t, "huge.txt", content, nil))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int64(0), app.count(t))
}

func TestHealthRootAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AI Resume Parser backend is up", decode(t, rec)["message"])

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode(t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "AI Resume Parser", health["app"])
	assert.Equal(t, "ok", health["db"])
	_, hasCache := health["cache"]
	assert.False(t, hasCache)

	app.do(t, uploadRequest(t, "cv.txt", []byte("plain resume"), nil))
	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `resume_uploads_total{outcome="created"} 1`), rec.Body.String())
}

func TestHealthReportsDependencyErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	cfg := &config.Config{App: config.AppConfig{Name: "AI Resume Parser", APIPrefix: "/api/v1"}}
	handler := NewRouter(cfg, logg, stubPinger{err: context.DeadlineExceeded}, stubPinger{}, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "ok", body["cache"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
