package service

import (
	"context"
	"fmt"
	"sync"

	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/model"
	"syllabus-calendar-be/internal/repository/contract"
	"syllabus-calendar-be/internal/repository/specification"
	"syllabus-calendar-be/internal/repository/unitofwork"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
)

// fakeEventRepo is an in-memory EventRepository. Specifications are ignored;
// tests operate on a single user so scoping is not exercised here.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []*entity.Event

	failCreateBatch bool
	failUpsert      bool
	failDelete      bool
	failFindAll     bool

	// onUpsert fires once, outside the repo lock, at the start of the next
	// Upsert. Lets a test interleave a concurrent edit with an in-flight push.
	onUpsert func(*entity.Event)

	deleteCalls int
	upsertCalls int
}

func (r *fakeEventRepo) CreateBatch(ctx context.Context, events []*entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateBatch {
		return fmt.Errorf("insert rejected")
	}
	for _, e := range events {
		copied := *e
		r.events = append(r.events, &copied)
	}
	return nil
}

func (r *fakeEventRepo) Upsert(ctx context.Context, event *entity.Event) error {
	r.mu.Lock()
	r.upsertCalls++
	failed := r.failUpsert
	hook := r.onUpsert
	r.onUpsert = nil
	r.mu.Unlock()

	if hook != nil {
		hook(event)
	}
	if failed {
		return fmt.Errorf("remote unavailable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.Id == event.Id {
			copied := *event
			r.events[i] = &copied
			return nil
		}
	}
	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if r.failDelete {
		return fmt.Errorf("remote unavailable")
	}
	for i, e := range r.events {
		if e.Id == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeEventRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil, nil
	}
	copied := *r.events[0]
	return &copied, nil
}

func (r *fakeEventRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFindAll {
		return nil, fmt.Errorf("remote unavailable")
	}
	out := make([]*entity.Event, 0, len(r.events))
	for _, e := range r.events {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeEventRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events)), nil
}

func (r *fakeEventRepo) snapshot() []*entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Event, 0, len(r.events))
	for _, e := range r.events {
		copied := *e
		out = append(out, &copied)
	}
	return out
}

type fakeImportLogRepo struct {
	mu   sync.Mutex
	logs []*model.ImportLog
}

func (r *fakeImportLogRepo) Create(ctx context.Context, log *model.ImportLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *log
	r.logs = append(r.logs, &copied)
	return nil
}

func (r *fakeImportLogRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ImportLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ImportLog, 0, len(r.logs))
	for _, l := range r.logs {
		copied := *l
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeImportLogRepo) snapshot() []*model.ImportLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ImportLog, 0, len(r.logs))
	for _, l := range r.logs {
		copied := *l
		out = append(out, &copied)
	}
	return out
}

// fakeUow satisfies unitofwork.UnitOfWork against the in-memory repos.
type fakeUow struct {
	events  *fakeEventRepo
	logs    *fakeImportLogRepo
	beginN  int
	commitN int
	rollbkN int

	failBegin  bool
	failCommit bool
}

func (u *fakeUow) Begin(ctx context.Context) error {
	u.beginN++
	if u.failBegin {
		return fmt.Errorf("begin failed")
	}
	return nil
}

func (u *fakeUow) Commit() error {
	u.commitN++
	if u.failCommit {
		return fmt.Errorf("commit failed")
	}
	return nil
}

func (u *fakeUow) Rollback() error {
	u.rollbkN++
	return nil
}

func (u *fakeUow) EventRepository() contract.EventRepository {
	return u.events
}

func (u *fakeUow) ImportLogRepository() contract.ImportLogRepository {
	return u.logs
}

type fakeFactory struct {
	uow *fakeUow
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		uow: &fakeUow{
			events: &fakeEventRepo{},
			logs:   &fakeImportLogRepo{},
		},
	}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// fakeProgressPublisher records every snapshot it is asked to publish.
type fakeProgressPublisher struct {
	mu        sync.Mutex
	snapshots []store.Snapshot
}

func (p *fakeProgressPublisher) PublishProgress(snapshot store.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
}

func (p *fakeProgressPublisher) all() []store.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]store.Snapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// fakeExtractor returns canned text, an error, or blocks until cancelled.
type fakeExtractor struct {
	text       string
	err        error
	blockUntil chan struct{} // if set, Extract waits for ctx or this channel
}

func (e *fakeExtractor) Extract(ctx context.Context, doc store.DocumentRef) (string, error) {
	if e.blockUntil != nil {
		select {
		case <-ctx.Done():
			return "", entity.ClassifyImportError(ctx.Err(), "")
		case <-e.blockUntil:
		}
	}
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}
