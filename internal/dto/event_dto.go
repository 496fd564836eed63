package dto

import (
	"time"

	"syllabus-calendar-be/internal/entity"

	"github.com/google/uuid"
)

type UpsertEventRequest struct {
	Id              uuid.UUID  `json:"id"`
	CourseCode      string     `json:"course_code"`
	Type            string     `json:"type"`
	Title           string     `json:"title" validate:"required"`
	Start           time.Time  `json:"start" validate:"required"`
	End             *time.Time `json:"end"`
	AllDay          bool       `json:"all_day"`
	Location        string     `json:"location"`
	Notes           string     `json:"notes"`
	RecurrenceRule  string     `json:"recurrence_rule"`
	ReminderMinutes *int       `json:"reminder_minutes"`
}

type EventResponse struct {
	Id               uuid.UUID  `json:"id"`
	CourseCode       string     `json:"course_code,omitempty"`
	Type             string     `json:"type"`
	Title            string     `json:"title"`
	Start            time.Time  `json:"start"`
	End              *time.Time `json:"end,omitempty"`
	AllDay           bool       `json:"all_day"`
	Location         string     `json:"location,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	RecurrenceRule   string     `json:"recurrence_rule,omitempty"`
	ReminderMinutes  *int       `json:"reminder_minutes,omitempty"`
	Confidence       *float64   `json:"confidence,omitempty"`
	SourceDocumentId string     `json:"source_document_id,omitempty"`
	NextOccurrence   time.Time  `json:"next_occurrence"`
	Dirty            bool       `json:"dirty"`
}

type ListEventsResponse struct {
	State  string          `json:"state"` // UNINITIALIZED | LOADED
	Events []EventResponse `json:"events"`
}

type AutoApproveRequest struct {
	Events []UpsertEventRequest `json:"events" validate:"required,min=1,dive"`
}

type ReconcileResult struct {
	Inserted int         `json:"inserted"`
	Skipped  int         `json:"skipped"`
	EventIds []uuid.UUID `json:"event_ids"`
}

func EventToResponse(e *entity.Event, next time.Time, dirty bool) EventResponse {
	return EventResponse{
		Id:               e.Id,
		CourseCode:       e.CourseCode,
		Type:             string(e.Type),
		Title:            e.Title,
		Start:            e.Start,
		End:              e.End,
		AllDay:           e.AllDay,
		Location:         e.Location,
		Notes:            e.Notes,
		RecurrenceRule:   e.RecurrenceRule,
		ReminderMinutes:  e.ReminderMinutes,
		Confidence:       e.Confidence,
		SourceDocumentId: e.SourceDocumentId,
		NextOccurrence:   next,
		Dirty:            dirty,
	}
}
