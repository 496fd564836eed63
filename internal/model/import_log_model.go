package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ImportLog is the audit record of one import attempt. Diagnostics holds the
// raw payload returned by the parsing backend for support correlation.
type ImportLog struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId           uuid.UUID      `gorm:"type:uuid;not null;index:idx_import_logs_user_created,priority:1"`
	SourceDocumentId string         `gorm:"type:varchar(64);index"`
	RequestId        string         `gorm:"type:varchar(64)"`
	Status           string         `gorm:"type:varchar(20);not null"` // COMPLETED | FAILED | CANCELLED
	ErrorCategory    string         `gorm:"type:varchar(20)"`
	ErrorMessage     string         `gorm:"type:text"`
	DraftCount       int            `gorm:"default:0"`
	SkippedCount     int            `gorm:"default:0"`
	Diagnostics      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index:idx_import_logs_user_created,priority:2"`
}

func (ImportLog) TableName() string {
	return "import_logs"
}
