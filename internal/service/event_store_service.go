package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"syllabus-calendar-be/internal/dto"
	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/pkg/logger"
	"syllabus-calendar-be/internal/repository/specification"
	"syllabus-calendar-be/internal/repository/unitofwork"
	"syllabus-calendar-be/pkg/events"
	pktNats "syllabus-calendar-be/pkg/nats"
	"syllabus-calendar-be/pkg/recurrence"

	"github.com/google/uuid"
)

const (
	StoreStateUninitialized = "UNINITIALIZED"
	StoreStateLoaded        = "LOADED"
)

type IEventStoreService interface {
	Fetch(ctx context.Context, userId uuid.UUID) error
	Refresh(ctx context.Context, userId uuid.UUID) error
	Reconcile(ctx context.Context, userId uuid.UUID, drafts []*entity.Event, sourceDocumentId string) (*dto.ReconcileResult, error)
	Update(ctx context.Context, userId uuid.UUID, event *entity.Event) (*entity.Event, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
	Clear(userId uuid.UUID)
	AutoApprove(ctx context.Context, userId uuid.UUID, events []*entity.Event) error
	List(userId uuid.UUID, now time.Time) *dto.ListEventsResponse
	State(userId uuid.UUID) string
}

// cachedItem is one event in the local cache plus its sync metadata.
type cachedItem struct {
	event        *entity.Event
	dirty        bool
	lastSyncedAt time.Time
}

// userCache is the locally cached collection for one authenticated user:
// insertion-ordered, identifier-unique, with pending deletes awaiting remote
// confirmation.
type userCache struct {
	loaded         bool
	order          []uuid.UUID
	items          map[uuid.UUID]*cachedItem
	pendingDeletes map[uuid.UUID]struct{}
	lastFetchAt    time.Time
}

func newUserCache() *userCache {
	return &userCache{
		items:          make(map[uuid.UUID]*cachedItem),
		pendingDeletes: make(map[uuid.UUID]struct{}),
	}
}

type eventStoreService struct {
	uowFactory     unitofwork.RepositoryFactory
	logger         logger.ILogger
	eventPublisher *pktNats.Publisher
	remoteTimeout  time.Duration

	// mu guards caches: a single-writer discipline for the whole mutation
	// path, which keeps the identifier-uniqueness invariant safe under
	// concurrent callers.
	mu     sync.Mutex
	caches map[uuid.UUID]*userCache
}

func NewEventStoreService(
	uowFactory unitofwork.RepositoryFactory,
	sysLogger logger.ILogger,
	eventPublisher *pktNats.Publisher,
	remoteTimeout time.Duration,
) IEventStoreService {
	return &eventStoreService{
		uowFactory:     uowFactory,
		logger:         sysLogger,
		eventPublisher: eventPublisher,
		remoteTimeout:  remoteTimeout,
		caches:         make(map[uuid.UUID]*userCache),
	}
}

func (s *eventStoreService) withRemoteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.remoteTimeout)
}

func (s *eventStoreService) cacheFor(userId uuid.UUID) *userCache {
	c, ok := s.caches[userId]
	if !ok {
		c = newUserCache()
		s.caches[userId] = c
	}
	return c
}

// Fetch pulls the authoritative collection from the remote backend and
// rebuilds the local cache from it. Unflushed local state survives the pull:
// a dirty item keeps its local version and pending deletes stay pending, so
// a fetch never silently discards an edit that has not reached remote yet.
func (s *eventStoreService) Fetch(ctx context.Context, userId uuid.UUID) error {
	rctx, cancel := s.withRemoteTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(rctx)
	remote, err := uow.EventRepository().FindAll(rctx,
		specification.OwnedBy{UserID: userId},
		specification.InsertionOrder{},
	)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.caches[userId]
	cache := newUserCache()
	cache.loaded = true
	cache.lastFetchAt = time.Now()
	for _, e := range remote {
		if old != nil {
			if _, pending := old.pendingDeletes[e.Id]; pending {
				continue
			}
			if item, ok := old.items[e.Id]; ok && item.dirty {
				cache.order = append(cache.order, e.Id)
				cache.items[e.Id] = item
				continue
			}
		}
		cache.order = append(cache.order, e.Id)
		cache.items[e.Id] = &cachedItem{
			event:        e,
			lastSyncedAt: cache.lastFetchAt,
		}
	}
	if old != nil {
		// Dirty items the remote does not know about yet.
		for _, id := range old.order {
			if item := old.items[id]; item.dirty {
				if _, exists := cache.items[id]; !exists {
					cache.order = append(cache.order, id)
					cache.items[id] = item
				}
			}
		}
		cache.pendingDeletes = old.pendingDeletes
	}
	s.caches[userId] = cache
	return nil
}

// Refresh flushes pending local mutations to the remote backend first, then
// pulls. If the flush cannot complete, the pull is skipped so no local change
// is lost.
func (s *eventStoreService) Refresh(ctx context.Context, userId uuid.UUID) error {
	if err := s.flushPending(ctx, userId); err != nil {
		return err
	}
	return s.Fetch(ctx, userId)
}

// pendingPush pairs the snapshot sent to remote with the live cache pointer
// it was taken from, so a later markSynced can tell whether the item changed
// again in the meantime.
type pendingPush struct {
	live *entity.Event
	snap entity.Event
}

func (s *eventStoreService) flushPending(ctx context.Context, userId uuid.UUID) error {
	s.mu.Lock()
	cache := s.cacheFor(userId)
	pushes := make([]pendingPush, 0)
	for _, id := range cache.order {
		if item := cache.items[id]; item.dirty {
			pushes = append(pushes, pendingPush{live: item.event, snap: *item.event})
		}
	}
	deletes := make([]uuid.UUID, 0, len(cache.pendingDeletes))
	for id := range cache.pendingDeletes {
		deletes = append(deletes, id)
	}
	s.mu.Unlock()

	if len(pushes) == 0 && len(deletes) == 0 {
		return nil
	}

	rctx, cancel := s.withRemoteTimeout(ctx)
	defer cancel()
	uow := s.uowFactory.NewUnitOfWork(rctx)

	for i := range pushes {
		p := &pushes[i]
		if err := uow.EventRepository().Upsert(rctx, &p.snap); err != nil {
			return fmt.Errorf("flush pending update %s: %w", p.snap.Id, err)
		}
		s.markSynced(userId, p.snap.Id, p.live)
	}
	for _, id := range deletes {
		if err := uow.EventRepository().Delete(rctx, id); err != nil {
			return fmt.Errorf("flush pending delete %s: %w", id, err)
		}
		s.confirmDelete(userId, id)
	}
	return nil
}

// markSynced clears the dirty flag only when the cached item is still the
// exact version that was pushed. An edit that landed while the push was in
// flight stays dirty and goes out on the next flush.
func (s *eventStoreService) markSynced(userId, id uuid.UUID, pushed *entity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cacheFor(userId).items[id]
	if !ok || item.event != pushed {
		return
	}
	item.dirty = false
	item.lastSyncedAt = time.Now()
}

func (s *eventStoreService) confirmDelete(userId, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cacheFor(userId).pendingDeletes, id)
}

// Reconcile merges a list of drafts from one import into the collection.
// Matching is by identifier equality only; drafts always receive fresh
// identifiers, so reconciliation is purely additive and never overwrites
// existing entries that merely look similar. The merge is atomic: one remote
// transaction, one locked cache swap — observers never see a partial import.
func (s *eventStoreService) Reconcile(ctx context.Context, userId uuid.UUID, drafts []*entity.Event, sourceDocumentId string) (*dto.ReconcileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, entity.ClassifyImportError(err, "")
	}

	now := time.Now()
	accepted := make([]*entity.Event, 0, len(drafts))
	skipped := 0
	for _, draft := range drafts {
		draft.Id = uuid.New()
		draft.UserId = userId
		draft.SourceDocumentId = sourceDocumentId
		draft.CreatedAt = now
		if err := draft.Validate(); err != nil {
			skipped++
			s.logger.Warn("EventStore", "Skipping invalid draft", map[string]interface{}{
				"title": draft.Title,
				"error": err.Error(),
			})
			continue
		}
		accepted = append(accepted, draft)
	}

	if len(accepted) > 0 {
		rctx, cancel := s.withRemoteTimeout(ctx)
		defer cancel()

		uow := s.uowFactory.NewUnitOfWork(rctx)
		if err := uow.Begin(rctx); err != nil {
			return nil, fmt.Errorf("reconcile begin: %w", err)
		}
		if err := uow.EventRepository().CreateBatch(rctx, accepted); err != nil {
			uow.Rollback()
			return nil, fmt.Errorf("reconcile insert: %w", err)
		}
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("reconcile commit: %w", err)
		}

		s.mu.Lock()
		cache := s.cacheFor(userId)
		for _, e := range accepted {
			cache.order = append(cache.order, e.Id)
			cache.items[e.Id] = &cachedItem{
				event:        e,
				lastSyncedAt: time.Now(),
			}
		}
		cache.loaded = true
		s.mu.Unlock()
	}

	result := &dto.ReconcileResult{
		Inserted: len(accepted),
		Skipped:  skipped,
	}
	for _, e := range accepted {
		result.EventIds = append(result.EventIds, e.Id)
	}

	s.publishReconciled(ctx, userId, sourceDocumentId, result)
	return result, nil
}

func (s *eventStoreService) publishReconciled(ctx context.Context, userId uuid.UUID, sourceDocumentId string, result *dto.ReconcileResult) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{
		Type: "EVENTS_RECONCILED",
		Data: map[string]interface{}{
			"user_id":            userId,
			"source_document_id": sourceDocumentId,
			"inserted":           result.Inserted,
			"skipped":            result.Skipped,
		},
		OccurredAt: time.Now(),
	}
	// Notification fanout is auxiliary; a publish failure never fails the merge.
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("EventStore", "Failed to publish EVENTS_RECONCILED event", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Update applies a user edit by identifier; unknown identifiers are inserted,
// which lets "create new" flows reuse the edit path. The local cache is
// updated optimistically; a failed remote push leaves the item dirty for the
// next refresh instead of rolling back.
func (s *eventStoreService) Update(ctx context.Context, userId uuid.UUID, event *entity.Event) (*entity.Event, error) {
	if event.Id == uuid.Nil {
		event.Id = uuid.New()
	}
	event.UserId = userId
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	now := time.Now()
	event.UpdatedAt = &now

	if err := event.Validate(); err != nil {
		return nil, entity.NewImportError(entity.ErrorCategoryValidation, err.Error(), "")
	}

	s.mu.Lock()
	cache := s.cacheFor(userId)
	if existing, ok := cache.items[event.Id]; ok {
		event.CreatedAt = existing.event.CreatedAt
		existing.event = event
		existing.dirty = true
	} else {
		cache.order = append(cache.order, event.Id)
		cache.items[event.Id] = &cachedItem{event: event, dirty: true}
	}
	s.mu.Unlock()

	rctx, cancel := s.withRemoteTimeout(ctx)
	defer cancel()
	uow := s.uowFactory.NewUnitOfWork(rctx)

	pushed := *event
	if err := uow.EventRepository().Upsert(rctx, &pushed); err != nil {
		// Local change is retained; the dirty flag schedules a retry.
		s.logger.Warn("EventStore", "Remote push failed, keeping local change dirty", map[string]interface{}{
			"event_id": event.Id,
			"error":    err.Error(),
		})
		return event, nil
	}

	s.markSynced(userId, event.Id, event)
	return event, nil
}

// Delete removes by identifier from local cache and remote backend. Deleting
// an absent identifier is a no-op, not an error.
func (s *eventStoreService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	cache := s.cacheFor(userId)
	if _, ok := cache.items[id]; ok {
		delete(cache.items, id)
		for i, oid := range cache.order {
			if oid == id {
				cache.order = append(cache.order[:i], cache.order[i+1:]...)
				break
			}
		}
	}
	cache.pendingDeletes[id] = struct{}{}
	s.mu.Unlock()

	rctx, cancel := s.withRemoteTimeout(ctx)
	defer cancel()
	uow := s.uowFactory.NewUnitOfWork(rctx)

	if err := uow.EventRepository().Delete(rctx, id); err != nil {
		// A timed-out delete is not a silent success: it stays pending and is
		// retried on the next refresh.
		s.logger.Warn("EventStore", "Remote delete failed, keeping delete pending", map[string]interface{}{
			"event_id": id,
			"error":    err.Error(),
		})
		return nil
	}

	s.confirmDelete(userId, id)
	return nil
}

// Clear wipes the local cache without touching remote state. Used exclusively
// during sign-out so no residual data is visible to the next authenticated
// user on the same device.
func (s *eventStoreService) Clear(userId uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, userId)
}

// AutoApprove bulk-inserts events as already accepted, bypassing
// reconciliation. Used for preview/demo flows.
func (s *eventStoreService) AutoApprove(ctx context.Context, userId uuid.UUID, list []*entity.Event) error {
	now := time.Now()
	for _, e := range list {
		if e.Id == uuid.Nil {
			e.Id = uuid.New()
		}
		e.UserId = userId
		e.CreatedAt = now
		if err := e.Validate(); err != nil {
			return entity.NewImportError(entity.ErrorCategoryValidation, err.Error(), "")
		}
	}

	rctx, cancel := s.withRemoteTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(rctx)
	if err := uow.Begin(rctx); err != nil {
		return fmt.Errorf("auto-approve begin: %w", err)
	}
	if err := uow.EventRepository().CreateBatch(rctx, list); err != nil {
		uow.Rollback()
		return fmt.Errorf("auto-approve insert: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("auto-approve commit: %w", err)
	}

	s.mu.Lock()
	cache := s.cacheFor(userId)
	for _, e := range list {
		cache.order = append(cache.order, e.Id)
		cache.items[e.Id] = &cachedItem{event: e, lastSyncedAt: time.Now()}
	}
	cache.loaded = true
	s.mu.Unlock()
	return nil
}

// List returns a snapshot of the collection ordered by next occurrence, so
// recurring events sort by their projected date rather than their original
// (possibly long past) start.
func (s *eventStoreService) List(userId uuid.UUID, now time.Time) *dto.ListEventsResponse {
	s.mu.Lock()
	cache, ok := s.caches[userId]
	if !ok {
		s.mu.Unlock()
		return &dto.ListEventsResponse{
			State:  StoreStateUninitialized,
			Events: []dto.EventResponse{},
		}
	}

	type projected struct {
		resp dto.EventResponse
		next time.Time
	}
	items := make([]projected, 0, len(cache.order))
	for _, id := range cache.order {
		item := cache.items[id]
		next := recurrence.NextOccurrence(item.event.RecurrenceRule, item.event.Start, now)
		items = append(items, projected{
			resp: dto.EventToResponse(item.event, next, item.dirty),
			next: next,
		})
	}
	state := StoreStateUninitialized
	if cache.loaded {
		state = StoreStateLoaded
	}
	s.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].next.Before(items[j].next)
	})

	resp := &dto.ListEventsResponse{
		State:  state,
		Events: make([]dto.EventResponse, 0, len(items)),
	}
	for _, it := range items {
		resp.Events = append(resp.Events, it.resp)
	}
	return resp
}

func (s *eventStoreService) State(userId uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.caches[userId]; ok && cache.loaded {
		return StoreStateLoaded
	}
	return StoreStateUninitialized
}
