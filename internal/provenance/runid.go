package provenance

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRun creates provenance metadata for one compiler invocation,
// stitching a stable run identifier into GENERATED_BY so every word
// compiled in the same run can be correlated later, the same
// cross-process correlation internal/backend/jit's CompiledFunction
// handles use their RunID for.
func NewRun(generatedBy string) (*Metadata, uuid.UUID) {
	runID := uuid.New()
	return New(fmt.Sprintf("%s (run %s)", generatedBy, runID)), runID
}
