// Package risk assigns a risk level and tags to clauses.
//
// RuleBased is a pure lexicon scorer and is always available. External
// delegates to a scoring service under a per-call timeout and falls back to
// RuleBased, recording an audit entry, whenever the service fails.
package risk

import (
	"context"
	"time"

	"regassist/internal/document"
)

// Source records which implementation produced an assessment.
type Source string

const (
	SourceRuleBased Source = "rule_based"
	SourceExternal  Source = "external"
	SourceFallback  Source = "fallback"
)

// Assessment is the outcome of classifying one clause.
type Assessment struct {
	Level      document.RiskLevel
	Tags       []string
	Source     Source
	Confidence float64
	// Score is the lexicon score; zero for external assessments.
	Score   int
	Latency time.Duration
}

// Classifier is the classification capability shared by all implementations.
type Classifier interface {
	Classify(ctx context.Context, clause document.Clause) (Assessment, error)
}
