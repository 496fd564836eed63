package contract

import (
	"context"

	"syllabus-calendar-be/internal/model"
	"syllabus-calendar-be/internal/repository/specification"
)

type ImportLogRepository interface {
	Create(ctx context.Context, log *model.ImportLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ImportLog, error)
}
