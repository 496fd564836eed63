package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a calendar event extracted from a syllabus.
type EventType string

const (
	EventTypeAssignment EventType = "assignment"
	EventTypeQuiz       EventType = "quiz"
	EventTypeMidterm    EventType = "midterm"
	EventTypeFinal      EventType = "final"
	EventTypeLab        EventType = "lab"
	EventTypeLecture    EventType = "lecture"
	EventTypeOther      EventType = "other"
)

// ParseEventType maps an arbitrary string (e.g. from the AI parser) to a known
// EventType, defaulting to EventTypeOther.
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventTypeAssignment, EventTypeQuiz, EventTypeMidterm,
		EventTypeFinal, EventTypeLab, EventTypeLecture:
		return EventType(s)
	default:
		return EventTypeOther
	}
}

type Event struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	CourseCode       string
	Type             EventType
	Title            string
	Start            time.Time
	End              *time.Time
	AllDay           bool
	Location         string
	Notes            string
	RecurrenceRule   string
	ReminderMinutes  *int
	Confidence       *float64 // set only for AI-extracted drafts
	SourceDocumentId string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// Validate checks the domain invariants of a single event. Used both for drafts
// coming back from the parser and for user edits.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if e.Start.IsZero() {
		return fmt.Errorf("event start is required")
	}
	if e.End != nil && e.End.Before(e.Start) {
		return fmt.Errorf("event end %s is before start %s", e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("confidence %f out of range [0,1]", *e.Confidence)
	}
	return nil
}
