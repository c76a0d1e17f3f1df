package resumes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/resumeparser-backend/internal/extraction"
	"github.com/angelmondragon/resumeparser-backend/internal/tasks"
	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/db"
	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/migrate"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "resumes-test", Output: io.Discard})
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "resumes.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Up(ctx, sqlDB, config.DriverSQLite, migrate.Embedded()))
	return client.DB()
}

func countResumes(t *testing.T, conn *gorm.DB, hash string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Resume{}).Where("file_hash = ?", hash).Count(&n).Error)
	return n
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	deleted []string
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, fileName, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.seq++
	loc := fmt.Sprintf("mem://%d_%s", m.seq, storage.SanitizeFileName(fileName))
	m.objects[loc] = append([]byte(nil), data...)
	return loc, nil
}

func (m *memStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[location]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
	m.deleted = append(m.deleted, location)
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// recordingSubmitter keeps submitted tasks so tests decide when they run.
type recordingSubmitter struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (r *recordingSubmitter) Submit(_ context.Context, _ string, _ map[string]any, task tasks.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recordingSubmitter) submitted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

type nopProcessor struct{}

func (nopProcessor) Process(context.Context, uuid.UUID) error { return nil }

// memCache is an in-memory StatusCache.
type memCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}}
}

func (c *memCache) SetStatus(_ context.Context, id, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = status
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[id]
	return v, ok, nil
}

type fakeExtractor struct {
	result *extraction.Result
	err    error
	panics bool
}

func (f fakeExtractor) Extract(ctx context.Context, _ extraction.Document, _ types.ProcessingOptions) (*extraction.Result, error) {
	if f.panics {
		panic("extractor blew up")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return extraction.StubExtractor{}.Extract(ctx, extraction.Document{}, types.ProcessingOptions{})
}

// panicReader fails the test if anything reads from it.
type panicReader struct{ t *testing.T }

func (p panicReader) Read([]byte) (int, error) {
	p.t.Error("body must not be read")
	return 0, errors.New("unexpected read")
}
