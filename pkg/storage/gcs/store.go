package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	"github.com/angelmondragon/resumeparser-backend/pkg/logger"
	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
)

const (
	scheme      = "gs"
	pingTimeout = 5 * time.Second
)

// Store keeps uploads in a Google Cloud Storage bucket.
type Store struct {
	client *gcstorage.Client
	bucket string
	prefix string
	now    func() time.Time
}

func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Store, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	store := &Store{client: client, bucket: cfg.GCSBucket, prefix: cfg.GCSPrefix, now: time.Now}
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.GCSBucket), "gcs store initialized")
	}
	return store, nil
}

// Save writes data with a DoesNotExist precondition.
func (s *Store) Save(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	var key string
	_, err := storage.PutUnique(ctx, s.now(), fileName, func(ctx context.Context, name string) error {
		key = storage.JoinKey(s.prefix, name)
		return s.write(ctx, key, contentType, data)
	})
	if err != nil {
		return "", err
	}
	return scheme + "://" + s.bucket + "/" + key, nil
}

func (s *Store) write(ctx context.Context, key, contentType string, data []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).If(gcstorage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		if isPreconditionFailed(err) {
			return storage.ErrObjectExists
		}
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return storage.ErrObjectExists
		}
		return fmt.Errorf("gcs finalize %s: %w", key, err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := storage.SplitURI(location, scheme)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", location, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("gcs read %s: %w", location, err)
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, location string) error {
	bucket, key, err := storage.SplitURI(location, scheme)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(bucket).Object(key).Delete(ctx); err != nil && !errors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", location, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return err
}

func (s *Store) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
