package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnedBy scopes a query to a single authenticated user. Every remote backend
// access goes through this ("eq. filter by user id" semantics).
type OwnedBy struct {
	UserID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// BySourceDocument filters events produced by one import.
type BySourceDocument struct {
	DocumentID string
}

func (s BySourceDocument) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_document_id = ?", s.DocumentID)
}

// InsertionOrder sorts by creation time, which is the canonical ordering of the
// event collection.
type InsertionOrder struct{}

func (s InsertionOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
