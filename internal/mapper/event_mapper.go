package mapper

import (
	"time"

	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/model"
)

type EventMapper struct{}

func NewEventMapper() *EventMapper {
	return &EventMapper{}
}

func (m *EventMapper) ToEntity(e *model.Event) *entity.Event {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.Event{
		Id:               e.Id,
		UserId:           e.UserId,
		CourseCode:       e.CourseCode,
		Type:             entity.ParseEventType(e.Type),
		Title:            e.Title,
		Start:            e.StartAt,
		End:              e.EndAt,
		AllDay:           e.AllDay,
		Location:         e.Location,
		Notes:            e.Notes,
		RecurrenceRule:   e.RecurrenceRule,
		ReminderMinutes:  e.ReminderMinutes,
		Confidence:       e.Confidence,
		SourceDocumentId: e.SourceDocumentId,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *EventMapper) ToModel(e *entity.Event) *model.Event {
	if e == nil {
		return nil
	}

	return &model.Event{
		Id:               e.Id,
		UserId:           e.UserId,
		CourseCode:       e.CourseCode,
		Type:             string(e.Type),
		Title:            e.Title,
		StartAt:          e.Start,
		EndAt:            e.End,
		AllDay:           e.AllDay,
		Location:         e.Location,
		Notes:            e.Notes,
		RecurrenceRule:   e.RecurrenceRule,
		ReminderMinutes:  e.ReminderMinutes,
		Confidence:       e.Confidence,
		SourceDocumentId: e.SourceDocumentId,
		CreatedAt:        e.CreatedAt,
	}
}

func (m *EventMapper) ToEntities(models []*model.Event) []*entity.Event {
	entities := make([]*entity.Event, 0, len(models))
	for _, mdl := range models {
		entities = append(entities, m.ToEntity(mdl))
	}
	return entities
}

func (m *EventMapper) ToModels(entities []*entity.Event) []*model.Event {
	models := make([]*model.Event, 0, len(entities))
	for _, ent := range entities {
		models = append(models, m.ToModel(ent))
	}
	return models
}
