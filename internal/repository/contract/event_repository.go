package contract

import (
	"context"

	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/repository/specification"

	"github.com/google/uuid"
)

// EventRepository is the remote event backend: row-oriented persistence keyed
// by event identifier, scoped per user through specifications.
type EventRepository interface {
	CreateBatch(ctx context.Context, events []*entity.Event) error
	Upsert(ctx context.Context, event *entity.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Event, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Event, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
