package service

import (
	"context"
	"testing"
	"time"

	"syllabus-calendar-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreUnderTest() (IEventStoreService, *fakeFactory) {
	factory := newFakeFactory()
	svc := NewEventStoreService(factory, nopLogger{}, nil, 5*time.Second)
	return svc, factory
}

func seedRemoteEvents(f *fakeFactory, userId uuid.UUID, titles ...string) []*entity.Event {
	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	seeded := make([]*entity.Event, 0, len(titles))
	for i, title := range titles {
		e := &entity.Event{
			Id:        uuid.New(),
			UserId:    userId,
			Type:      entity.EventTypeLecture,
			Title:     title,
			Start:     base.Add(time.Duration(i) * 24 * time.Hour),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		f.uow.events.events = append(f.uow.events.events, e)
		seeded = append(seeded, e)
	}
	return seeded
}

func TestFetchLoadsRemoteCollection(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seedRemoteEvents(factory, userId, "Lecture 1", "Lecture 2")

	require.Equal(t, StoreStateUninitialized, svc.State(userId))
	require.NoError(t, svc.Fetch(context.Background(), userId))
	assert.Equal(t, StoreStateLoaded, svc.State(userId))

	res := svc.List(userId, time.Now())
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Lecture 1", res.Events[0].Title)
}

func TestReconcileIsAdditive(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seedRemoteEvents(factory, userId, "Existing A", "Existing B")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	confidence := 0.9
	drafts := []*entity.Event{
		{Title: "HW 1", Start: time.Date(2025, 9, 10, 23, 59, 0, 0, time.UTC), Type: entity.EventTypeAssignment, Confidence: &confidence},
		{Title: "Midterm", Start: time.Date(2025, 10, 15, 14, 0, 0, 0, time.UTC), Type: entity.EventTypeMidterm, Confidence: &confidence},
	}

	result, err := svc.Reconcile(context.Background(), userId, drafts, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Skipped)

	// |existing| + |drafts|, nothing overwritten
	res := svc.List(userId, time.Now())
	assert.Len(t, res.Events, 4)
	assert.Len(t, factory.uow.events.snapshot(), 4)

	// Drafts received fresh identifiers and kept their confidence.
	for _, er := range res.Events {
		if er.Title == "HW 1" {
			assert.NotEqual(t, uuid.Nil, er.Id)
			require.NotNil(t, er.Confidence)
			assert.Equal(t, 0.9, *er.Confidence)
			assert.Equal(t, "doc-1", er.SourceDocumentId)
		}
	}
}

func TestReconcileSkipsInvalidDrafts(t *testing.T) {
	svc, _ := newStoreUnderTest()
	userId := uuid.New()

	drafts := []*entity.Event{
		{Title: "Valid", Start: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)},
		{Title: "", Start: time.Date(2025, 9, 11, 0, 0, 0, 0, time.UTC)}, // missing title
		{Title: "No start"},                                              // missing start
	}

	result, err := svc.Reconcile(context.Background(), userId, drafts, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 2, result.Skipped)
}

func TestReconcileFailureLeavesCollectionUntouched(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seedRemoteEvents(factory, userId, "Existing")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	factory.uow.events.failCreateBatch = true
	drafts := []*entity.Event{
		{Title: "Doomed", Start: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)},
	}

	_, err := svc.Reconcile(context.Background(), userId, drafts, "doc-3")
	require.Error(t, err)
	assert.GreaterOrEqual(t, factory.uow.rollbkN, 1)

	res := svc.List(userId, time.Now())
	assert.Len(t, res.Events, 1)
	assert.Equal(t, "Existing", res.Events[0].Title)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seeded := seedRemoteEvents(factory, userId, "To delete")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	require.NoError(t, svc.Delete(context.Background(), userId, seeded[0].Id))
	assert.Empty(t, svc.List(userId, time.Now()).Events)

	// Deleting the same id again, or a never-seen id, is not an error.
	require.NoError(t, svc.Delete(context.Background(), userId, seeded[0].Id))
	require.NoError(t, svc.Delete(context.Background(), userId, uuid.New()))
}

func TestDeleteRemoteFailureRetriedOnRefresh(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seeded := seedRemoteEvents(factory, userId, "Flaky delete")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	factory.uow.events.failDelete = true
	require.NoError(t, svc.Delete(context.Background(), userId, seeded[0].Id))

	// Locally gone, remotely still there.
	assert.Empty(t, svc.List(userId, time.Now()).Events)
	assert.Len(t, factory.uow.events.snapshot(), 1)

	// Refresh flushes the pending delete before pulling.
	factory.uow.events.failDelete = false
	require.NoError(t, svc.Refresh(context.Background(), userId))
	assert.Empty(t, factory.uow.events.snapshot())
	assert.Empty(t, svc.List(userId, time.Now()).Events)
}

func TestUpdateKeepsLocalChangeWhenRemoteFails(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seeded := seedRemoteEvents(factory, userId, "Original title")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	factory.uow.events.failUpsert = true
	edited := *seeded[0]
	edited.Title = "Edited title"

	saved, err := svc.Update(context.Background(), userId, &edited)
	require.NoError(t, err)
	assert.Equal(t, "Edited title", saved.Title)

	// Local cache shows the edit, flagged dirty; remote still has the original.
	res := svc.List(userId, time.Now())
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Edited title", res.Events[0].Title)
	assert.True(t, res.Events[0].Dirty)
	assert.Equal(t, "Original title", factory.uow.events.snapshot()[0].Title)

	// Refresh pushes the dirty edit and clears the flag.
	factory.uow.events.failUpsert = false
	require.NoError(t, svc.Refresh(context.Background(), userId))
	res = svc.List(userId, time.Now())
	require.Len(t, res.Events, 1)
	assert.False(t, res.Events[0].Dirty)
	assert.Equal(t, "Edited title", factory.uow.events.snapshot()[0].Title)
}

func TestFlushKeepsEditMadeDuringPushDirty(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seeded := seedRemoteEvents(factory, userId, "Original")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	// First edit cannot reach remote, so it stays dirty for the next flush.
	factory.uow.events.failUpsert = true
	edited := *seeded[0]
	edited.Title = "First edit"
	_, err := svc.Update(context.Background(), userId, &edited)
	require.NoError(t, err)

	// While the flush is pushing "First edit", a second edit lands whose own
	// remote push fails. The newer edit must not lose its dirty flag just
	// because the older push succeeded.
	factory.uow.events.failUpsert = false
	factory.uow.events.onUpsert = func(*entity.Event) {
		factory.uow.events.failUpsert = true
		second := edited
		second.Title = "Second edit"
		_, uerr := svc.Update(context.Background(), userId, &second)
		require.NoError(t, uerr)
		factory.uow.events.failUpsert = false
	}

	require.NoError(t, svc.Refresh(context.Background(), userId))

	// Local cache shows the newer edit, still dirty; remote has the older one.
	res := svc.List(userId, time.Now())
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Second edit", res.Events[0].Title)
	assert.True(t, res.Events[0].Dirty)
	assert.Equal(t, "First edit", factory.uow.events.snapshot()[0].Title)

	// The next refresh pushes it through.
	require.NoError(t, svc.Refresh(context.Background(), userId))
	res = svc.List(userId, time.Now())
	require.Len(t, res.Events, 1)
	assert.False(t, res.Events[0].Dirty)
	assert.Equal(t, "Second edit", factory.uow.events.snapshot()[0].Title)
}

func TestRefreshAbortsPullWhenFlushFails(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seeded := seedRemoteEvents(factory, userId, "Original")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	factory.uow.events.failUpsert = true
	edited := *seeded[0]
	edited.Title = "Local edit"
	_, err := svc.Update(context.Background(), userId, &edited)
	require.NoError(t, err)

	// Flush cannot complete, so refresh must not drop the local edit.
	err = svc.Refresh(context.Background(), userId)
	require.Error(t, err)

	res := svc.List(userId, time.Now())
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Local edit", res.Events[0].Title)
	assert.True(t, res.Events[0].Dirty)
}

func TestUpdateRejectsInvalidEvent(t *testing.T) {
	svc, _ := newStoreUnderTest()
	userId := uuid.New()

	_, err := svc.Update(context.Background(), userId, &entity.Event{Title: ""})
	require.Error(t, err)

	ie, ok := err.(*entity.ImportError)
	require.True(t, ok)
	assert.Equal(t, entity.ErrorCategoryValidation, ie.Category)
}

func TestClearWipesLocalOnly(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()
	seedRemoteEvents(factory, userId, "Kept remotely")
	require.NoError(t, svc.Fetch(context.Background(), userId))

	svc.Clear(userId)

	assert.Equal(t, StoreStateUninitialized, svc.State(userId))
	assert.Empty(t, svc.List(userId, time.Now()).Events)
	// Remote data untouched.
	assert.Len(t, factory.uow.events.snapshot(), 1)
}

func TestClearIsolatesUsers(t *testing.T) {
	svc, factory := newStoreUnderTest()
	alice := uuid.New()
	bob := uuid.New()
	seedRemoteEvents(factory, alice, "Alice event")
	require.NoError(t, svc.Fetch(context.Background(), alice))

	svc.Clear(alice)

	// A fresh user sees nothing from the previous session's cache.
	assert.Equal(t, StoreStateUninitialized, svc.State(bob))
	assert.Empty(t, svc.List(bob, time.Now()).Events)
}

func TestListOrdersByNextOccurrence(t *testing.T) {
	svc, factory := newStoreUnderTest()
	userId := uuid.New()

	// A weekly recurring lecture whose original start is long past, and a
	// one-off event in between the original start and its next occurrence.
	recurring := &entity.Event{
		Id:             uuid.New(),
		UserId:         userId,
		Title:          "Weekly lecture",
		Start:          time.Date(2025, 9, 2, 10, 30, 0, 0, time.UTC), // Tuesday
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=TU",
		CreatedAt:      time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	oneOff := &entity.Event{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     "Quiz",
		Start:     time.Date(2025, 10, 10, 9, 0, 0, 0, time.UTC), // Friday
		CreatedAt: time.Date(2025, 9, 1, 1, 0, 0, 0, time.UTC),
	}
	factory.uow.events.events = append(factory.uow.events.events, recurring, oneOff)
	require.NoError(t, svc.Fetch(context.Background(), userId))

	// Wednesday Oct 1: the lecture's next occurrence is Tuesday Oct 7,
	// before the quiz on Oct 10 even though its original start is earlier.
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	res := svc.List(userId, now)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Weekly lecture", res.Events[0].Title)
	assert.Equal(t, time.Date(2025, 10, 7, 10, 30, 0, 0, time.UTC), res.Events[0].NextOccurrence)
	assert.Equal(t, "Quiz", res.Events[1].Title)
}
