package memory

import (
	"time"

	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ImportSessionRepository keeps in-flight import sessions in memory, keyed by
// user id. Sessions are ephemeral: they expire on their own if nothing cleans
// them up after completion.
type ImportSessionRepository struct {
	cache *cache.Cache
}

func NewImportSessionRepository() *ImportSessionRepository {
	// Sessions expire after 1 hour of inactivity, purged every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ImportSessionRepository{
		cache: c,
	}
}

func (r *ImportSessionRepository) Save(session *store.ImportSession) {
	r.cache.Set(session.UserId.String(), session, cache.DefaultExpiration)
}

func (r *ImportSessionRepository) Get(userId uuid.UUID) (*store.ImportSession, bool) {
	if x, found := r.cache.Get(userId.String()); found {
		return x.(*store.ImportSession), true
	}
	return nil, false
}

func (r *ImportSessionRepository) Delete(userId uuid.UUID) {
	r.cache.Delete(userId.String())
}
