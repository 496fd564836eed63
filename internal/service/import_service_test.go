package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"syllabus-calendar-be/internal/config"
	"syllabus-calendar-be/internal/dto"
	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/repository/memory"
	"syllabus-calendar-be/pkg/extractor"
	"syllabus-calendar-be/pkg/parser"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodParserBody = `{
	"events": [
		{"title": "Homework 1", "type": "assignment", "start": "2025-09-10T23:59:00Z", "confidence": 0.9},
		{"title": "Final Exam", "type": "final", "start": "2025-12-15T09:00:00Z", "confidence": 0.95}
	],
	"diagnostics": {"model": "test"}
}`

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{
		MaxDocumentBytes:  1 << 20,
		AllowedMimeTypes:  []string{"application/pdf"},
		MaxTextChars:      60000,
		RemoteTimeoutSecs: 5,
	}
}

func testDocument() store.DocumentRef {
	return store.DocumentRef{
		Path:      "/tmp/syllabus.pdf",
		Name:      "syllabus.pdf",
		MimeType:  "application/pdf",
		SizeBytes: 1024,
	}
}

type importFixture struct {
	svc      IImportService
	store    IEventStoreService
	factory  *fakeFactory
	progress *fakeProgressPublisher
	sessions *memory.ImportSessionRepository
}

func newImportFixture(parserURL string, parserTimeout time.Duration, ext extractor.Extractor) *importFixture {
	factory := newFakeFactory()
	progress := &fakeProgressPublisher{}
	sessions := memory.NewImportSessionRepository()
	eventStore := NewEventStoreService(factory, nopLogger{}, nil, 5*time.Second)

	svc := NewImportService(
		sessions,
		ext,
		parser.NewClient(parserURL, parserTimeout),
		eventStore,
		progress,
		factory,
		nil,
		nopLogger{},
		testImportConfig(),
	)

	return &importFixture{
		svc:      svc,
		store:    eventStore,
		factory:  factory,
		progress: progress,
		sessions: sessions,
	}
}

func (f *importFixture) waitForStage(t *testing.T, userId uuid.UUID, stage store.Stage) store.Snapshot {
	t.Helper()
	var snap store.Snapshot
	require.Eventually(t, func() bool {
		session, ok := f.sessions.Get(userId)
		if !ok {
			return false
		}
		snap = session.Snapshot()
		return snap.Stage == stage
	}, 3*time.Second, 20*time.Millisecond, "session never reached stage %s (last: %+v)", stage, snap)
	return snap
}

func TestStartRejectsUnsupportedMimeType(t *testing.T) {
	f := newImportFixture("http://localhost:0", time.Second, &fakeExtractor{text: "irrelevant"})
	userId := uuid.New()

	doc := testDocument()
	doc.MimeType = "image/png"

	_, err := f.svc.Start(context.Background(), userId, doc)
	require.Error(t, err)

	ie, ok := err.(*entity.ImportError)
	require.True(t, ok)
	assert.Equal(t, entity.ErrorCategoryValidation, ie.Category)

	// Fail-fast: no session was ever created.
	status, err := f.svc.Status(userId)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestStartRejectsOversizedDocument(t *testing.T) {
	f := newImportFixture("http://localhost:0", time.Second, &fakeExtractor{text: "irrelevant"})
	userId := uuid.New()

	doc := testDocument()
	doc.SizeBytes = 2 << 20

	_, err := f.svc.Start(context.Background(), userId, doc)
	require.Error(t, err)

	ie, ok := err.(*entity.ImportError)
	require.True(t, ok)
	assert.Equal(t, entity.ErrorCategoryValidation, ie.Category)
}

func TestImportPipelineCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 5*time.Second, &fakeExtractor{text: "CS101 Syllabus\n\nHomework 1 due Sep 10"})
	userId := uuid.New()

	res, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.SessionId)

	snap := f.waitForStage(t, userId, store.StageCompleted)
	assert.Equal(t, 1.0, snap.Progress)

	// Both parsed events were reconciled into the collection.
	require.Eventually(t, func() bool {
		return len(f.factory.uow.events.snapshot()) == 2
	}, time.Second, 20*time.Millisecond)

	// Audit log written with counts.
	require.Eventually(t, func() bool {
		logs := f.factory.uow.logs.snapshot()
		return len(logs) == 1 && logs[0].Status == "COMPLETED"
	}, time.Second, 20*time.Millisecond)
	logEntry := f.factory.uow.logs.snapshot()[0]
	assert.Equal(t, 2, logEntry.DraftCount)
	assert.Equal(t, 0, logEntry.SkippedCount)
	assert.NotEmpty(t, logEntry.Diagnostics)

	// Progress never decreased across published frames.
	frames := f.progress.all()
	require.NotEmpty(t, frames)
	last := 0.0
	for _, fr := range frames {
		assert.GreaterOrEqual(t, fr.Progress, last)
		last = fr.Progress
	}
}

func TestImportFailsWithServerCategoryOnParserError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 5*time.Second, &fakeExtractor{text: "some text"})
	userId := uuid.New()

	_, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)

	snap := f.waitForStage(t, userId, store.StageFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, entity.ErrorCategoryServer, snap.Error.Category)
	assert.NotEmpty(t, snap.Error.RequestId)

	// Nothing was inserted.
	assert.Empty(t, f.factory.uow.events.snapshot())

	require.Eventually(t, func() bool {
		logs := f.factory.uow.logs.snapshot()
		return len(logs) == 1 && logs[0].Status == "FAILED"
	}, time.Second, 20*time.Millisecond)
	assert.Equal(t, "server", f.factory.uow.logs.snapshot()[0].ErrorCategory)
}

func TestImportTimeoutMapsToNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 30*time.Millisecond, &fakeExtractor{text: "some text"})
	userId := uuid.New()

	_, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)

	snap := f.waitForStage(t, userId, store.StageFailed)
	require.NotNil(t, snap.Error)
	assert.Equal(t, entity.ErrorCategoryNetwork, snap.Error.Category)
}

func TestCancelDuringExtractionKeepsCollectionUntouched(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	f := newImportFixture("http://localhost:0", time.Second, &fakeExtractor{text: "text", blockUntil: block})
	userId := uuid.New()

	_, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(userId))

	snap := f.waitForStage(t, userId, store.StageCancelled)
	assert.Equal(t, store.StageCancelled, snap.Stage)

	// The pipeline never reached reconciliation.
	require.Eventually(t, func() bool {
		logs := f.factory.uow.logs.snapshot()
		return len(logs) == 1 && logs[0].Status == "CANCELLED"
	}, time.Second, 20*time.Millisecond)
	assert.Empty(t, f.factory.uow.events.snapshot())
}

// reconcileGate signals when reconciliation is entered, then holds the merge
// until its context is interrupted.
type reconcileGate struct {
	IEventStoreService
	entered chan struct{}
}

func (g *reconcileGate) Reconcile(ctx context.Context, userId uuid.UUID, drafts []*entity.Event, sourceDocumentId string) (*dto.ReconcileResult, error) {
	close(g.entered)
	<-ctx.Done()
	return g.IEventStoreService.Reconcile(ctx, userId, drafts, sourceDocumentId)
}

func TestCancelAfterParsingKeepsCollectionUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	factory := newFakeFactory()
	progress := &fakeProgressPublisher{}
	sessions := memory.NewImportSessionRepository()
	gate := &reconcileGate{
		IEventStoreService: NewEventStoreService(factory, nopLogger{}, nil, 5*time.Second),
		entered:            make(chan struct{}),
	}
	svc := NewImportService(
		sessions,
		&fakeExtractor{text: "some text"},
		parser.NewClient(srv.URL, 5*time.Second),
		gate,
		progress,
		factory,
		nil,
		nopLogger{},
		testImportConfig(),
	)

	userId := uuid.New()
	_, err := svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)

	// Parsing succeeded; cancel before reconciliation can finish.
	select {
	case <-gate.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline never reached reconciliation")
	}
	require.NoError(t, svc.Cancel(userId))

	session, ok := sessions.Get(userId)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return session.Snapshot().Stage == store.StageCancelled
	}, 3*time.Second, 20*time.Millisecond)

	// Cancellation is atomic: no drafts landed and the outcome is CANCELLED.
	require.Eventually(t, func() bool {
		logs := factory.uow.logs.snapshot()
		return len(logs) == 1 && logs[0].Status == "CANCELLED"
	}, time.Second, 20*time.Millisecond)
	assert.Empty(t, factory.uow.events.snapshot())
}

func TestCancelWithoutSessionFails(t *testing.T) {
	f := newImportFixture("http://localhost:0", time.Second, &fakeExtractor{text: "text"})

	err := f.svc.Cancel(uuid.New())
	require.Error(t, err)

	ie, ok := err.(*entity.ImportError)
	require.True(t, ok)
	assert.Equal(t, entity.ErrorCategoryValidation, ie.Category)
}

func TestRetryAfterFailureSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 5*time.Second, &fakeExtractor{text: "some text"})
	userId := uuid.New()

	_, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)
	f.waitForStage(t, userId, store.StageFailed)

	_, err = f.svc.RetryLast(context.Background(), userId)
	require.NoError(t, err)

	f.waitForStage(t, userId, store.StageCompleted)
	assert.Len(t, f.factory.uow.events.snapshot(), 2)
}

func TestRetryRequiresFailedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 5*time.Second, &fakeExtractor{text: "some text"})
	userId := uuid.New()

	// No session at all.
	_, err := f.svc.RetryLast(context.Background(), userId)
	require.Error(t, err)

	// Completed session is not retryable either.
	_, err = f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)
	f.waitForStage(t, userId, store.StageCompleted)

	_, err = f.svc.RetryLast(context.Background(), userId)
	require.Error(t, err)
	ie, ok := err.(*entity.ImportError)
	require.True(t, ok)
	assert.Equal(t, entity.ErrorCategoryValidation, ie.Category)
}

func TestNewImportCancelsPrevious(t *testing.T) {
	block := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodParserBody))
	}))
	defer srv.Close()

	f := newImportFixture(srv.URL, 5*time.Second, &fakeExtractor{text: "some text", blockUntil: block})
	userId := uuid.New()

	first, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)

	second, err := f.svc.Start(context.Background(), userId, testDocument())
	require.NoError(t, err)
	require.NotEqual(t, first.SessionId, second.SessionId)

	// Unblock the extractor; only the second session may proceed.
	close(block)

	snap := f.waitForStage(t, userId, store.StageCompleted)
	assert.Equal(t, second.SessionId, snap.Id)

	// The first session was cancelled, so exactly one import reconciled.
	assert.Len(t, f.factory.uow.events.snapshot(), 2)
}
