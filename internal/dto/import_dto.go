package dto

import (
	"time"

	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
)

type StartImportResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}

type ImportStatusResponse struct {
	Session store.Snapshot `json:"session"`
}

type ImportLogResponse struct {
	Id               uuid.UUID `json:"id"`
	SourceDocumentId string    `json:"source_document_id"`
	RequestId        string    `json:"request_id"`
	Status           string    `json:"status"`
	ErrorCategory    string    `json:"error_category,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	DraftCount       int       `json:"draft_count"`
	SkippedCount     int       `json:"skipped_count"`
	CreatedAt        time.Time `json:"created_at"`
}
