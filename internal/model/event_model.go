package model

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Id               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserId           uuid.UUID  `gorm:"type:uuid;not null;index:idx_events_user_start,priority:1"`
	CourseCode       string     `gorm:"type:varchar(32)"`
	Type             string     `gorm:"type:varchar(20);not null;default:'other'"`
	Title            string     `gorm:"type:varchar(255);not null"`
	StartAt          time.Time  `gorm:"not null;index:idx_events_user_start,priority:2"`
	EndAt            *time.Time `gorm:""`
	AllDay           bool       `gorm:"default:false"`
	Location         string     `gorm:"type:varchar(255)"`
	Notes            string     `gorm:"type:text"`
	RecurrenceRule   string     `gorm:"type:varchar(128)"`
	ReminderMinutes  *int       `gorm:""`
	Confidence       *float64   `gorm:""`
	SourceDocumentId string     `gorm:"type:varchar(64);index"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}
