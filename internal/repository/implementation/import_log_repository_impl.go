package implementation

import (
	"context"

	"syllabus-calendar-be/internal/model"
	"syllabus-calendar-be/internal/repository/contract"
	"syllabus-calendar-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ImportLogRepositoryImpl struct {
	db *gorm.DB
}

func NewImportLogRepository(db *gorm.DB) contract.ImportLogRepository {
	return &ImportLogRepositoryImpl{db: db}
}

func (r *ImportLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ImportLogRepositoryImpl) Create(ctx context.Context, log *model.ImportLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *ImportLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ImportLog, error) {
	var logs []*model.ImportLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
