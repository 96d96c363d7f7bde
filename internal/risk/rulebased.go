package risk

import (
	"context"

	"regassist/internal/document"
	"regassist/internal/risk/ruleset"
	strutil "regassist/pkg/platform/strings"
)

// RuleBased scores clause text against the ruleset lexicon. It holds no
// mutable state: identical text always yields an identical assessment.
type RuleBased struct {
	rules *ruleset.Ruleset
}

// NewRuleBased creates a classifier over rules, or the embedded default when nil.
func NewRuleBased(rules *ruleset.Ruleset) *RuleBased {
	if rules == nil {
		rules = ruleset.Default()
	}
	return &RuleBased{rules: rules}
}

// Version returns the ruleset version the classifier applies.
func (c *RuleBased) Version() string {
	return c.rules.Version
}

func (c *RuleBased) Classify(_ context.Context, clause document.Clause) (Assessment, error) {
	return c.Assess(clause), nil
}

// Assess classifies without a context; it never fails.
func (c *RuleBased) Assess(clause document.Clause) Assessment {
	tokens := document.Tokens(clause.Title + "\n" + clause.Content)
	score := 0
	var tags []string
	for _, k := range c.rules.Risk.Keywords {
		n := ruleset.Count(tokens, k.Term)
		if n == 0 {
			continue
		}
		score += k.Weight * min(n, c.rules.Risk.CountCap)
		if k.Tag != "" {
			tags = append(tags, k.Tag)
		}
	}
	return Assessment{
		Level:      c.level(score),
		Tags:       strutil.SortedSet(tags),
		Source:     SourceRuleBased,
		Confidence: 1,
		Score:      score,
	}
}

func (c *RuleBased) level(score int) document.RiskLevel {
	switch {
	case score >= c.rules.Risk.HighThreshold:
		return document.RiskHigh
	case score >= c.rules.Risk.MediumThreshold:
		return document.RiskMedium
	default:
		return document.RiskLow
	}
}
