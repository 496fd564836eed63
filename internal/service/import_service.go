package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"syllabus-calendar-be/internal/config"
	"syllabus-calendar-be/internal/dto"
	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/model"
	"syllabus-calendar-be/internal/pkg/logger"
	"syllabus-calendar-be/internal/repository/memory"
	"syllabus-calendar-be/internal/repository/specification"
	"syllabus-calendar-be/internal/repository/unitofwork"
	"syllabus-calendar-be/pkg/events"
	"syllabus-calendar-be/pkg/extractor"
	pktNats "syllabus-calendar-be/pkg/nats"
	"syllabus-calendar-be/pkg/parser"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Progress bands per pipeline stage. Progress only ever moves forward within
// a session.
const (
	progressExtractStart   = 0.05
	progressExtractDone    = 0.30
	progressPreprocessDone = 0.60
	progressParseDone      = 0.90
	progressComplete       = 1.0
)

type IImportService interface {
	Start(ctx context.Context, userId uuid.UUID, doc store.DocumentRef) (*dto.StartImportResponse, error)
	Cancel(userId uuid.UUID) error
	RetryLast(ctx context.Context, userId uuid.UUID) (*dto.StartImportResponse, error)
	Status(userId uuid.UUID) (*dto.ImportStatusResponse, error)
	Logs(ctx context.Context, userId uuid.UUID, limit, offset int) ([]dto.ImportLogResponse, error)
}

type importService struct {
	sessions       *memory.ImportSessionRepository
	extractor      extractor.Extractor
	parserClient   *parser.Client
	eventStore     IEventStoreService
	progress       IProgressPublisherService
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	cfg            config.ImportConfig
}

func NewImportService(
	sessions *memory.ImportSessionRepository,
	docExtractor extractor.Extractor,
	parserClient *parser.Client,
	eventStore IEventStoreService,
	progress IProgressPublisherService,
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
	cfg config.ImportConfig,
) IImportService {
	return &importService{
		sessions:       sessions,
		extractor:      docExtractor,
		parserClient:   parserClient,
		eventStore:     eventStore,
		progress:       progress,
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         sysLogger,
		cfg:            cfg,
	}
}

// Start validates the document and launches the import pipeline in the
// background. One session per user: a still-running previous import is
// cancelled first (last request wins).
func (s *importService) Start(ctx context.Context, userId uuid.UUID, doc store.DocumentRef) (*dto.StartImportResponse, error) {
	if err := s.validateDocument(doc); err != nil {
		return nil, err
	}

	if prev, ok := s.sessions.Get(userId); ok && !prev.Snapshot().Stage.Terminal() {
		s.logger.Info("ImportService", "Cancelling previous import session", map[string]interface{}{
			"user_id":    userId,
			"session_id": prev.Id,
		})
		prev.Cancel()
	}

	session := store.NewImportSession(userId, doc)
	s.sessions.Save(session)

	// The pipeline must outlive the HTTP request that started it, so it runs
	// on its own cancellable context, not the request context.
	pipelineCtx, cancel := context.WithCancel(context.Background())
	session.BindCancel(cancel)

	go s.runPipeline(pipelineCtx, session)

	return &dto.StartImportResponse{SessionId: session.Id}, nil
}

func (s *importService) validateDocument(doc store.DocumentRef) *entity.ImportError {
	allowed := false
	for _, mime := range s.cfg.AllowedMimeTypes {
		if strings.EqualFold(mime, doc.MimeType) {
			allowed = true
			break
		}
	}
	if !allowed {
		return entity.NewImportError(
			entity.ErrorCategoryValidation,
			fmt.Sprintf("unsupported document type %q", doc.MimeType),
			"",
		)
	}
	if doc.SizeBytes > s.cfg.MaxDocumentBytes {
		return entity.NewImportError(
			entity.ErrorCategoryValidation,
			fmt.Sprintf("document of %d bytes exceeds the %d byte limit", doc.SizeBytes, s.cfg.MaxDocumentBytes),
			"",
		)
	}
	return nil
}

// Cancel aborts the user's in-flight import. Cancelling an already-terminal
// session is a no-op.
func (s *importService) Cancel(userId uuid.UUID) error {
	session, ok := s.sessions.Get(userId)
	if !ok {
		return entity.NewImportError(entity.ErrorCategoryValidation, "no import session to cancel", "")
	}
	session.Cancel()
	s.progress.PublishProgress(session.Snapshot())
	return nil
}

// RetryLast re-runs the import of the last failed session's document.
func (s *importService) RetryLast(ctx context.Context, userId uuid.UUID) (*dto.StartImportResponse, error) {
	session, ok := s.sessions.Get(userId)
	if !ok {
		return nil, entity.NewImportError(entity.ErrorCategoryValidation, "no previous import session", "")
	}
	snap := session.Snapshot()
	if snap.Stage != store.StageFailed {
		return nil, entity.NewImportError(
			entity.ErrorCategoryValidation,
			fmt.Sprintf("cannot retry an import in stage %s", snap.Stage),
			"",
		)
	}
	return s.Start(ctx, userId, snap.Document)
}

func (s *importService) Status(userId uuid.UUID) (*dto.ImportStatusResponse, error) {
	session, ok := s.sessions.Get(userId)
	if !ok {
		return nil, nil
	}
	return &dto.ImportStatusResponse{Session: session.Snapshot()}, nil
}

func (s *importService) Logs(ctx context.Context, userId uuid.UUID, limit, offset int) ([]dto.ImportLogResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.ImportLogRepository().FindAll(ctx,
		specification.OwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}

	out := make([]dto.ImportLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, dto.ImportLogResponse{
			Id:               l.Id,
			SourceDocumentId: l.SourceDocumentId,
			RequestId:        l.RequestId,
			Status:           l.Status,
			ErrorCategory:    l.ErrorCategory,
			ErrorMessage:     l.ErrorMessage,
			DraftCount:       l.DraftCount,
			SkippedCount:     l.SkippedCount,
			CreatedAt:        l.CreatedAt,
		})
	}
	return out, nil
}

// runPipeline drives one import end to end: extract, preprocess, parse,
// reconcile. Cancellation is observed between stages, so a cancelled session
// never reaches reconciliation and the event collection stays untouched.
func (s *importService) runPipeline(ctx context.Context, session *store.ImportSession) {
	userId := session.UserId
	sourceDocumentId := documentFingerprint(session.Document)

	transition := func(stage store.Stage, progress float64, status string) {
		session.Transition(stage, progress, status)
		s.progress.PublishProgress(session.Snapshot())
	}

	fail := func(err *entity.ImportError) {
		session.Fail(err)
		s.progress.PublishProgress(session.Snapshot())
		s.writeLog(userId, sourceDocumentId, err.RequestId, "FAILED", err, 0, 0, nil)
		s.publishLifecycleEvent(ctx, "IMPORT_FAILED", map[string]interface{}{
			"user_id":    userId,
			"session_id": session.Id,
			"category":   err.Category,
		})
	}

	cancelled := func() bool {
		if session.IsCancelled() || ctx.Err() != nil {
			s.progress.PublishProgress(session.Snapshot())
			s.writeLog(userId, sourceDocumentId, "", "CANCELLED", nil, 0, 0, nil)
			return true
		}
		return false
	}

	// Stage 1: extraction
	transition(store.StageExtracting, progressExtractStart, "Extracting text from document")
	text, err := s.extractor.Extract(ctx, session.Document)
	if err != nil {
		if cancelled() {
			return
		}
		fail(entity.ClassifyImportError(err, ""))
		return
	}
	if cancelled() {
		return
	}
	transition(store.StageExtracting, progressExtractDone, "Text extracted")

	// Stage 2: preprocessing
	transition(store.StagePreprocessing, progressExtractDone+0.05, "Preparing text for parsing")
	text = preprocessText(text, s.cfg.MaxTextChars)
	if cancelled() {
		return
	}
	transition(store.StagePreprocessing, progressPreprocessDone, "Text prepared")

	// Stage 3: parsing
	transition(store.StageParsing, progressPreprocessDone+0.05, "Parsing events from syllabus")
	result, err := s.parserClient.Parse(ctx, text)
	if err != nil {
		if cancelled() {
			return
		}
		fail(entity.ClassifyImportError(err, ""))
		return
	}
	if cancelled() {
		return
	}
	transition(store.StageParsing, progressParseDone, fmt.Sprintf("Parsed %d candidate events", len(result.Drafts)))

	// Stage 4: reconciliation. All or nothing: a failure here leaves the
	// collection exactly as it was.
	transition(store.StageReconciling, progressParseDone+0.02, "Merging events into your calendar")
	drafts := make([]*entity.Event, 0, len(result.Drafts))
	for i := range result.Drafts {
		drafts = append(drafts, draftToEntity(&result.Drafts[i]))
	}
	reconciled, err := s.eventStore.Reconcile(ctx, userId, drafts, sourceDocumentId)
	if err != nil {
		if cancelled() {
			return
		}
		fail(entity.ClassifyImportError(err, result.RequestId))
		return
	}

	transition(store.StageCompleted, progressComplete,
		fmt.Sprintf("Import complete: %d events added", reconciled.Inserted))

	var diagnostics datatypes.JSON
	if len(result.Diagnostics) > 0 {
		diagnostics = datatypes.JSON(result.Diagnostics)
	}
	s.writeLog(userId, sourceDocumentId, result.RequestId, "COMPLETED", nil, reconciled.Inserted, reconciled.Skipped, diagnostics)
	s.publishLifecycleEvent(ctx, "IMPORT_COMPLETED", map[string]interface{}{
		"user_id":    userId,
		"session_id": session.Id,
		"inserted":   reconciled.Inserted,
		"skipped":    reconciled.Skipped,
	})
}

// writeLog persists the audit record of one import attempt. Audit failures are
// logged and swallowed: they never change the outcome the user sees.
func (s *importService) writeLog(
	userId uuid.UUID,
	sourceDocumentId, requestId, status string,
	importErr *entity.ImportError,
	draftCount, skippedCount int,
	diagnostics datatypes.JSON,
) {
	entry := &model.ImportLog{
		Id:               uuid.New(),
		UserId:           userId,
		SourceDocumentId: sourceDocumentId,
		RequestId:        requestId,
		Status:           status,
		DraftCount:       draftCount,
		SkippedCount:     skippedCount,
		Diagnostics:      diagnostics,
	}
	if importErr != nil {
		entry.ErrorCategory = string(importErr.Category)
		entry.ErrorMessage = importErr.Message
		if entry.RequestId == "" {
			entry.RequestId = importErr.RequestId
		}
	}

	// Fresh context: the pipeline context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ImportLogRepository().Create(ctx, entry); err != nil {
		s.logger.Error("ImportService", "Failed to write import log", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
	}
}

func (s *importService) publishLifecycleEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	evt := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := s.eventPublisher.Publish(pubCtx, evt); err != nil {
		s.logger.Warn("ImportService", "Failed to publish lifecycle event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

// preprocessText normalizes line endings, strips trailing whitespace, collapses
// runs of blank lines, and truncates to the configured character limit so the
// parsing backend never sees an oversized payload.
func preprocessText(text string, maxChars int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}
	text = strings.TrimSpace(strings.Join(out, "\n"))

	if maxChars > 0 && len(text) > maxChars {
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// documentFingerprint derives a stable id for a source document, so repeated
// imports of the same file correlate in the audit log.
func documentFingerprint(doc store.DocumentRef) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", doc.Name, doc.SizeBytes)))
	return hex.EncodeToString(h[:8])
}

func draftToEntity(d *parser.DraftEvent) *entity.Event {
	confidence := d.Confidence
	return &entity.Event{
		CourseCode:     d.CourseCode,
		Type:           entity.ParseEventType(d.Type),
		Title:          d.Title,
		Start:          d.Start,
		End:            d.End,
		AllDay:         d.AllDay,
		Location:       d.Location,
		Notes:          d.Notes,
		RecurrenceRule: d.Recurrence,
		Confidence:     &confidence,
	}
}
