package diff

import (
	"fmt"

	"regassist/internal/document"
	"regassist/internal/platform/metrics"
	dErrors "regassist/pkg/domain-errors"
)

const (
	// DefaultMaxClauses bounds each side of a comparison.
	DefaultMaxClauses = 5000

	// DefaultThreshold is the content similarity a changed pair must exceed
	// to count as modified rather than removed plus added.
	DefaultThreshold = 0.3
)

// Engine compares clause sequences. It holds configuration only and is safe
// for concurrent use.
type Engine struct {
	maxClauses int
	threshold  float64
	metrics    *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxClauses sets the per-side clause ceiling.
func WithMaxClauses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxClauses = n
		}
	}
}

// WithThreshold sets the modified-match similarity threshold in [0, 1).
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t >= 0 && t < 1 {
			e.threshold = t
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		maxClauses: DefaultMaxClauses,
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compare aligns before (sourceVersion) with after (targetVersion). Every clause
// of both inputs appears in exactly one segment of the result.
//
// Errors: *ResourceLimitError when either side exceeds the clause ceiling,
// CodeValidation when a side repeats a clause id.
func (e *Engine) Compare(sourceVersion string, before []document.Clause, targetVersion string, after []document.Clause) (*Result, error) {
	for _, side := range [][]document.Clause{before, after} {
		if len(side) > e.maxClauses {
			return nil, &ResourceLimitError{Count: len(side), Limit: e.maxClauses}
		}
		if err := uniqueIDs(side); err != nil {
			return nil, err
		}
	}

	oldP := profiles(before)
	newP := profiles(after)
	pairs := align(oldP, newP, e.threshold)

	res := &Result{
		SourceVersion: sourceVersion,
		TargetVersion: targetVersion,
		Segments:      make([]Segment, 0, len(before)+len(after)-len(pairs)),
	}
	emit := func(s Segment) {
		res.Segments = append(res.Segments, s)
		res.Stats.add(s.Type)
	}

	oi, ni := 0, 0
	flush := func(oldEnd, newEnd int) {
		for ; oi < oldEnd; oi++ {
			emit(removed(before[oi]))
		}
		for ; ni < newEnd; ni++ {
			emit(added(after[ni]))
		}
	}
	for _, p := range pairs {
		flush(p.oldIdx, p.newIdx)
		emit(matched(before[oi], after[ni], oldP[oi].hash == newP[ni].hash, p.similarity))
		oi++
		ni++
	}
	flush(len(before), len(after))

	e.metrics.AddDiffSegments(string(Added), res.Stats.Added)
	e.metrics.AddDiffSegments(string(Removed), res.Stats.Removed)
	e.metrics.AddDiffSegments(string(Modified), res.Stats.Modified)
	e.metrics.AddDiffSegments(string(Unchanged), res.Stats.Unchanged)
	return res, nil
}

func uniqueIDs(clauses []document.Clause) error {
	seen := make(map[string]struct{}, len(clauses))
	for _, c := range clauses {
		if _, dup := seen[c.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate clause id %q", c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

func profiles(clauses []document.Clause) []profile {
	out := make([]profile, len(clauses))
	for i, c := range clauses {
		out[i] = newProfile(c)
	}
	return out
}

func removed(c document.Clause) Segment {
	return Segment{
		Type:        Removed,
		OldClauseID: c.ID,
		OldOrdinal:  c.Ordinal,
		Title:       c.Title,
		Text:        c.Content,
	}
}

func added(c document.Clause) Segment {
	return Segment{
		Type:        Added,
		NewClauseID: c.ID,
		NewOrdinal:  c.Ordinal,
		Title:       c.Title,
		Text:        c.Content,
	}
}

func matched(o, n document.Clause, identical bool, similarity float64) Segment {
	s := Segment{
		Type:        Unchanged,
		OldClauseID: o.ID,
		NewClauseID: n.ID,
		OldOrdinal:  o.Ordinal,
		NewOrdinal:  n.Ordinal,
		Title:       n.Title,
		Text:        n.Content,
		Similarity:  1,
	}
	if identical {
		if o.Title != n.Title {
			s.Summary = fmt.Sprintf("Retitled from %q", o.Title)
		}
		return s
	}
	s.Type = Modified
	s.Similarity = similarity
	s.Lines = Lines(splitLines(o.Content), splitLines(n.Content))
	s.Summary = summarize(similarity, s.Lines)
	return s
}

func summarize(similarity float64, lines []LineEdit) string {
	var plus, minus int
	for _, l := range lines {
		switch l.Op {
		case LineAdded:
			plus++
		case LineRemoved:
			minus++
		}
	}
	kind := "Substantial changes"
	switch {
	case similarity >= 0.9:
		kind = "Minor text updates"
	case similarity >= 0.6:
		kind = "Moderate changes"
	}
	return fmt.Sprintf("%s (+%d -%d lines)", kind, plus, minus)
}
