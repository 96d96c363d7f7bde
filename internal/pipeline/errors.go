package pipeline

import (
	"fmt"

	id "regassist/pkg/domain"
)

// Stage names one step of the compliance pipeline.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageSegment   Stage = "segment"
	StageClassify  Stage = "classify"
	StageDiff      Stage = "diff"
	StageChecklist Stage = "checklist"
)

// StageError is a fatal failure of one stage. It carries what a caller
// needs to retry: which document, which version, which stage.
type StageError struct {
	DocumentID id.DocumentID
	Version    string
	Stage      Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for document %s version %q: %v", e.Stage, e.DocumentID, e.Version, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
