package store

import (
	"context"
	"sync"
	"time"

	"syllabus-calendar-be/internal/entity"

	"github.com/google/uuid"
)

// Stage of an in-flight import pipeline.
type Stage string

const (
	StageIdle          Stage = "IDLE"
	StageExtracting    Stage = "EXTRACTING"
	StagePreprocessing Stage = "PREPROCESSING"
	StageParsing       Stage = "PARSING"
	StageReconciling   Stage = "RECONCILING"
	StageCompleted     Stage = "COMPLETED"
	StageCancelled     Stage = "CANCELLED"
	StageFailed        Stage = "FAILED"
)

// Terminal reports whether no further transitions are allowed for this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCancelled || s == StageFailed
}

// DocumentRef points at the source document of an import.
type DocumentRef struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// ImportSession represents one in-flight import in memory. One session exists
// per user at most; a newer import replaces (and cancels) the previous one.
// All mutation goes through the methods below, which also enforce that progress
// is monotonically non-decreasing and terminal stages are final.
type ImportSession struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Document  DocumentRef
	StartedAt time.Time

	mu        sync.RWMutex
	stage     Stage
	progress  float64
	status    string
	err       *entity.ImportError
	cancelled bool
	cancel    context.CancelFunc
}

// Snapshot is an immutable view of the session state for observers.
type Snapshot struct {
	Id        uuid.UUID           `json:"id"`
	UserId    uuid.UUID           `json:"user_id"`
	Document  DocumentRef         `json:"document"`
	Stage     Stage               `json:"stage"`
	Progress  float64             `json:"progress"`
	Status    string              `json:"status"`
	Error     *entity.ImportError `json:"error,omitempty"`
	StartedAt time.Time           `json:"started_at"`
}

func NewImportSession(userId uuid.UUID, doc DocumentRef) *ImportSession {
	return &ImportSession{
		Id:        uuid.New(),
		UserId:    userId,
		Document:  doc,
		StartedAt: time.Now(),
		stage:     StageIdle,
		status:    "Waiting to start",
	}
}

// BindCancel attaches the pipeline context's cancel function so Cancel() can
// interrupt the next suspension point, not just set a flag.
func (s *ImportSession) BindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Transition moves the session to a new stage. Ignored once terminal.
// Progress never decreases for a given session.
func (s *ImportSession) Transition(stage Stage, progress float64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage.Terminal() {
		return
	}
	s.stage = stage
	if progress > s.progress {
		s.progress = progress
	}
	s.status = status
}

// Fail moves the session to FAILED with the given typed error.
func (s *ImportSession) Fail(err *entity.ImportError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage.Terminal() {
		return
	}
	s.stage = StageFailed
	s.err = err
	s.status = "Import failed: " + err.Message
}

// Cancel flags the session and interrupts the pipeline context. The pipeline
// observes this before its next network or disk operation.
func (s *ImportSession) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancelled = true
	if !s.stage.Terminal() {
		s.stage = StageCancelled
		s.status = "Import cancelled"
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *ImportSession) IsCancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancelled
}

func (s *ImportSession) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Id:        s.Id,
		UserId:    s.UserId,
		Document:  s.Document,
		Stage:     s.stage,
		Progress:  s.progress,
		Status:    s.status,
		Error:     s.err,
		StartedAt: s.StartedAt,
	}
}
