package config

// EnvPrefix is empty so the documented variable names are used verbatim.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
	StorageBackendGCS   = "gcs"
)

const (
	EnvAppName           = "APP_NAME"
	EnvAppEnv            = "APP_ENV"
	EnvPort              = "PORT"
	EnvAPIPrefix         = "API_V1_PREFIX"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvMaxFileSizeMB     = "MAX_FILE_SIZE_MB"
	EnvStorageBackend    = "STORAGE_BACKEND"
	EnvUploadDir         = "UPLOAD_DIR"
	EnvS3Bucket          = "S3_BUCKET"
	EnvGCSBucket         = "GCS_BUCKET"
	EnvRedisURL          = "REDIS_URL"
	EnvProcessingDelay   = "PROCESSING_DELAY"
	EnvProcessingWorkers = "PROCESSING_WORKERS"
	EnvExtractor         = "EXTRACTOR"
)
