package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/resumeparser-backend/pkg/enums"
)

// Keys stored in Resume.Meta.
const (
	MetaKeyPath       = "path"
	MetaKeyWebhookURL = "webhookUrl"
	MetaKeyOptions    = "options"
)

// Resume is one logically distinct upload, unique by content hash.
type Resume struct {
	ID               uuid.UUID              `gorm:"column:id;type:varchar(36);primaryKey"`
	FileName         string                 `gorm:"column:file_name;not null"`
	FileSize         int64                  `gorm:"column:file_size;not null"`
	FileType         string                 `gorm:"column:file_type;not null"`
	FileHash         string                 `gorm:"column:file_hash;not null;uniqueIndex:resumes_file_hash_key"`
	UploadedAt       time.Time              `gorm:"column:uploaded_at;autoCreateTime"`
	ProcessedAt      *time.Time             `gorm:"column:processed_at"`
	ProcessingStatus enums.ProcessingStatus `gorm:"column:processing_status;not null;default:pending"`
	RawText          *string                `gorm:"column:raw_text"`
	StructuredData   datatypes.JSONMap      `gorm:"column:structured_data"`
	AIEnhancements   datatypes.JSONMap      `gorm:"column:ai_enhancements"`
	Meta             datatypes.JSONMap      `gorm:"column:meta"`
}

func (Resume) TableName() string {
	return "resumes"
}
