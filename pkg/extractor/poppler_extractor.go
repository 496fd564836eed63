package extractor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
)

// PopplerExtractor extracts text from PDFs by shelling out to pdftotext.
// It handles digitally-generated PDFs; scanned-image syllabi should use the
// OCR provider instead.
type PopplerExtractor struct {
	BinPath string
}

func NewPopplerExtractor() *PopplerExtractor {
	return &PopplerExtractor{
		BinPath: "pdftotext",
	}
}

func (p *PopplerExtractor) Extract(ctx context.Context, doc store.DocumentRef) (string, error) {
	requestId := uuid.NewString()

	// pdftotext -layout <file> - writes extracted text to stdout
	cmd := exec.CommandContext(ctx, p.BinPath, "-layout", doc.Path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", entity.ClassifyImportError(ctx.Err(), requestId)
		}
		return "", entity.NewImportError(
			entity.ErrorCategoryValidation,
			"document could not be read: "+strings.TrimSpace(stderr.String()),
			requestId,
		)
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", entity.NewImportError(
			entity.ErrorCategoryValidation,
			"no extractable text in document",
			requestId,
		)
	}

	return text, nil
}
