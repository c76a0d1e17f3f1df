package resumes

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/resumeparser-backend/pkg/db/models"
	"github.com/angelmondragon/resumeparser-backend/pkg/enums"
)

const (
	msgUploaded     = "Resume uploaded successfully"
	msgReused       = "Resume already exists (by hash). Reusing existing record."
	msgNotScheduled = "Resume stored but processing could not be scheduled"
)

// UploadResult is returned for every accepted upload, new or reused.
type UploadResult struct {
	ID                      uuid.UUID `json:"id"`
	Status                  string    `json:"status"`
	Message                 string    `json:"message"`
	EstimatedProcessingTime int       `json:"estimatedProcessingTime"`
	WebhookURL              *string   `json:"webhookUrl"`
}

// ResumeDetail is the full record projection. Result fields are null until
// the resume is completed.
type ResumeDetail struct {
	ID             uuid.UUID      `json:"id"`
	Status         string         `json:"status"`
	FileName       string         `json:"file_name"`
	RawText        *string        `json:"raw_text"`
	StructuredData map[string]any `json:"structured_data"`
	AIEnhancements map[string]any `json:"ai_enhancements"`
}

// ResumeStatus is the polling projection.
type ResumeStatus struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// DetailFromModel maps a resume row to its public projection.
func DetailFromModel(m *models.Resume) *ResumeDetail {
	if m == nil {
		return nil
	}
	detail := &ResumeDetail{
		ID:       m.ID,
		Status:   m.ProcessingStatus.String(),
		FileName: m.FileName,
	}
	if m.ProcessingStatus == enums.ProcessingStatusCompleted {
		text := ""
		if m.RawText != nil {
			text = *m.RawText
		}
		detail.RawText = &text
		detail.StructuredData = nonNilMap(m.StructuredData)
		detail.AIEnhancements = nonNilMap(m.AIEnhancements)
	}
	return detail
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
