package diff

import (
	"fmt"

	dErrors "regassist/pkg/domain-errors"
)

var errResourceLimit = dErrors.New(dErrors.CodeResourceLimit, "clause count exceeds limit")

// ResourceLimitError rejects a comparison whose input is too large to align.
// Count is the offending clause count so callers can split the document.
type ResourceLimitError struct {
	Count int
	Limit int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("diff: %d clauses exceeds limit of %d", e.Count, e.Limit)
}

func (e *ResourceLimitError) Unwrap() error {
	return errResourceLimit
}
