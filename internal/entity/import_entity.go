package entity

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrorCategory is the failure taxonomy for the import pipeline. Categories are
// assigned at the point of failure, never inferred later from a generic error.
type ErrorCategory string

const (
	ErrorCategoryNetwork         ErrorCategory = "network"
	ErrorCategoryServer          ErrorCategory = "server"
	ErrorCategoryInvalidResponse ErrorCategory = "invalid-response"
	ErrorCategoryValidation      ErrorCategory = "validation"
	ErrorCategoryUnknown         ErrorCategory = "unknown"
)

// ImportError is the typed error state of a failed import stage. RequestId
// correlates the failure with server-side logs of the parsing backend.
type ImportError struct {
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	RequestId  string        `json:"request_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func (e *ImportError) Error() string {
	return string(e.Category) + ": " + e.Message
}

// NewImportError builds an ImportError with the timestamp captured now
// (at failure time, not at display time).
func NewImportError(category ErrorCategory, message, requestId string) *ImportError {
	return &ImportError{
		Category:   category,
		Message:    message,
		RequestId:  requestId,
		OccurredAt: time.Now(),
	}
}

// ClassifyImportError maps an arbitrary error into the taxonomy. Errors that are
// already ImportError pass through unchanged; context deadline/cancellation and
// transport errors map to network; everything else is unknown.
func ClassifyImportError(err error, requestId string) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewImportError(ErrorCategoryNetwork, err.Error(), requestId)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewImportError(ErrorCategoryNetwork, err.Error(), requestId)
	}

	return NewImportError(ErrorCategoryUnknown, err.Error(), requestId)
}
