package unitofwork

import (
	"context"

	"syllabus-calendar-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	EventRepository() contract.EventRepository
	ImportLogRepository() contract.ImportLogRepository
}
