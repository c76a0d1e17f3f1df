package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Upload     UploadConfig
	Storage    StorageConfig
	Processing ProcessingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDriver(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Upload.MaxFileSizeMB <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvMaxFileSizeMB)
	}
	return &cfg, nil
}

type AppConfig struct {
	Name               string        `envconfig:"APP_NAME" default:"AI Resume Parser"`
	Env                string        `envconfig:"APP_ENV" default:"dev"`
	Port               string        `envconfig:"PORT" default:"8000"`
	APIPrefix          string        `envconfig:"API_V1_PREFIX" default:"/api/v1"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack       bool          `envconfig:"LOG_WARN_STACK" default:"false"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	URL         string `envconfig:"DATABASE_URL" default:"sqlite:///./app.db"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// Driver and DSN are derived from URL.
	Driver string `ignored:"true"`
	DSN    string `ignored:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	StatusTTL    time.Duration `envconfig:"REDIS_STATUS_TTL" default:"24h"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type UploadConfig struct {
	MaxFileSizeMB int `envconfig:"MAX_FILE_SIZE_MB" default:"10"`
}

// MaxBytes returns the upload limit in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

type StorageConfig struct {
	Backend string `envconfig:"STORAGE_BACKEND" default:"local"`
	Dir     string `envconfig:"UPLOAD_DIR" default:"storage/uploads"`

	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`
	S3Prefix       string `envconfig:"S3_PREFIX" default:"uploads"`

	GCSBucket          string `envconfig:"GCS_BUCKET"`
	GCSCredentialsFile string `envconfig:"GCS_CREDENTIALS_FILE"`
	GCSPrefix          string `envconfig:"GCS_PREFIX" default:"uploads"`
}

func (s *StorageConfig) validate() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case StorageBackendLocal:
		if s.Dir == "" {
			return fmt.Errorf("%s is required for the local storage backend", EnvUploadDir)
		}
	case StorageBackendS3:
		if s.S3Bucket == "" {
			return fmt.Errorf("%s is required for the s3 storage backend", EnvS3Bucket)
		}
	case StorageBackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("%s is required for the gcs storage backend", EnvGCSBucket)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, s.Backend)
	}
	return nil
}

type ProcessingConfig struct {
	Delay           time.Duration `envconfig:"PROCESSING_DELAY" default:"5s"`
	Workers         int           `envconfig:"PROCESSING_WORKERS" default:"4"`
	QueueSize       int           `envconfig:"PROCESSING_QUEUE_SIZE" default:"256"`
	EstimateSeconds int           `envconfig:"PROCESSING_ESTIMATE_SECONDS" default:"30"`
	Extractor       string        `envconfig:"EXTRACTOR" default:"stub"`
}

// resolveDriver derives the gorm driver and its DSN from DATABASE_URL.
func (db *DBConfig) resolveDriver() error {
	raw := strings.TrimSpace(db.URL)
	if raw == "" {
		return fmt.Errorf("%s is required", EnvDatabaseURL)
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "sqlite:///"):
		db.Driver = DriverSQLite
		db.DSN = raw[len("sqlite:///"):]
	case strings.HasPrefix(lower, "sqlite://"):
		db.Driver = DriverSQLite
		db.DSN = raw[len("sqlite://"):]
	case strings.HasPrefix(lower, "file:"):
		db.Driver = DriverSQLite
		db.DSN = raw
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		db.Driver = DriverPostgres
		db.DSN = raw
	default:
		return fmt.Errorf("unsupported %s scheme in %q", EnvDatabaseURL, raw)
	}

	if db.DSN == "" {
		return fmt.Errorf("%s is missing a database path", EnvDatabaseURL)
	}
	return nil
}
