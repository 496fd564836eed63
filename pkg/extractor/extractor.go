package extractor

import (
	"context"

	"syllabus-calendar-be/pkg/store"
)

// Extractor converts a source document into raw text. Implementations must be
// cancellable via the context and classify their failures into the import
// error taxonomy.
type Extractor interface {
	Extract(ctx context.Context, doc store.DocumentRef) (string, error)
}
