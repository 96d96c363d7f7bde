package risk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"regassist/internal/document"
)

// DefaultMaxInFlight bounds concurrent classifications of one document.
const DefaultMaxInFlight = 4

// ClassifyAll classifies clauses concurrently with at most maxInFlight
// calls in flight. Results keep the input order and each clause comes back
// as an annotated copy. The first error cancels the remaining calls.
func ClassifyAll(ctx context.Context, c Classifier, clauses []document.Clause, maxInFlight int) ([]document.Clause, []Assessment, error) {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	assessments := make([]Assessment, len(clauses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, clause := range clauses {
		g.Go(func() error {
			a, err := c.Classify(gctx, clause)
			if err != nil {
				return err
			}
			assessments[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	annotated := make([]document.Clause, len(clauses))
	for i, clause := range clauses {
		annotated[i] = clause.WithRisk(assessments[i].Level, assessments[i].Tags)
	}
	return annotated, assessments, nil
}
