package checklist

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/platform/metrics"
	"regassist/internal/risk/ruleset"
	dErrors "regassist/pkg/domain-errors"
	strutil "regassist/pkg/platform/strings"
)

var itemNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:regassist:checklist-item"))

// Generator derives checklist items under one ruleset. It is safe for
// concurrent use.
type Generator struct {
	rules     *ruleset.Ruleset
	mandatory *regexp.Regexp
	optional  *regexp.Regexp
	metrics   *metrics.Metrics
}

// Option configures a Generator.
type Option func(*Generator)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New creates a generator over rules, or the embedded default when nil.
func New(rules *ruleset.Ruleset, opts ...Option) *Generator {
	if rules == nil {
		rules = ruleset.Default()
	}
	g := &Generator{
		rules:     rules,
		mandatory: termPattern(rules.Obligations.Mandatory),
		optional:  termPattern(rules.Obligations.Optional),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RulesetVersion is the ruleset version items are derived under.
func (g *Generator) RulesetVersion() string {
	return g.rules.Version
}

// Generate derives items from clauses in ordinal order, then extraction
// order within a clause. Tasks whose normalized text was already emitted
// are dropped; the first occurrence wins.
func (g *Generator) Generate(clauses []document.Clause) []Item {
	ordered := slices.Clone(clauses)
	slices.SortStableFunc(ordered, func(a, b document.Clause) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})

	seen := make(map[string]struct{})
	var items []Item
	for _, c := range ordered {
		for _, cand := range g.candidates(c) {
			key := strutil.NormalizeKey(cand.text())
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			item := g.item(c, cand, key)
			g.metrics.IncrementChecklistItem(string(item.Priority))
			items = append(items, item)
		}
	}
	return items
}

// GenerateFromDiff derives items from the added and modified segments of
// res. target must hold the clauses of res.TargetVersion.
//
// Errors: CodeValidation when a changed segment references a clause that
// is not in target.
func (g *Generator) GenerateFromDiff(res *diff.Result, target []document.Clause) ([]Item, error) {
	byID := make(map[string]document.Clause, len(target))
	for _, c := range target {
		byID[c.ID] = c
	}
	changed := res.Changed()
	clauses := make([]document.Clause, 0, len(changed))
	for _, s := range changed {
		c, ok := byID[s.NewClauseID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("segment references clause %s missing from version %s", s.NewClauseID, res.TargetVersion))
		}
		clauses = append(clauses, c)
	}
	return g.Generate(clauses), nil
}

type candidate struct {
	// phrase is the task wording before capitalization; empty when the
	// modal ends the sentence.
	phrase    string
	sentence  string
	mandatory bool
	// intro marks a sentence ending in a colon that opens a list.
	intro bool
}

func (c candidate) text() string {
	if c.phrase == "" {
		return capitalize(clean(c.sentence))
	}
	return capitalize(c.phrase)
}

// candidates extracts tasks from one clause in reading order. A list item
// without its own modal inherits the modal of the open stem, and a stem
// that received items is replaced by them.
func (g *Generator) candidates(c document.Clause) []candidate {
	var out []candidate
	stem := -1
	consumed := make(map[int]bool)
	for _, u := range units(c.Content) {
		for i, s := range sentences(u.text) {
			isItem := (u.listItem && i == 0) || listMarker.MatchString(s)
			if isItem {
				s = listMarker.ReplaceAllString(s, "")
			} else {
				stem = -1
			}

			if cand, ok := g.obligation(s); ok {
				out = append(out, cand)
				if cand.intro && !isItem {
					stem = len(out) - 1
				}
				continue
			}
			if isItem && stem >= 0 {
				parent := out[stem]
				phrase := clean(s)
				if parent.phrase != "" {
					phrase = parent.phrase + " " + phrase
				}
				out = append(out, candidate{
					phrase:    phrase,
					sentence:  parent.sentence + " " + s,
					mandatory: parent.mandatory,
				})
				consumed[stem] = true
			}
		}
	}
	if len(consumed) == 0 {
		return out
	}
	kept := make([]candidate, 0, len(out)-len(consumed))
	for i, cand := range out {
		if !consumed[i] {
			kept = append(kept, cand)
		}
	}
	return kept
}

// obligation reports whether sentence s carries modal language and, if so,
// the task it expresses. Mandatory terms take precedence over optional ones.
func (g *Generator) obligation(s string) (candidate, bool) {
	mandatory := true
	loc := g.mandatory.FindStringIndex(s)
	if loc == nil && g.optional != nil {
		mandatory = false
		loc = g.optional.FindStringIndex(s)
	}
	if loc == nil {
		return candidate{}, false
	}
	rest := s[loc[1]:]
	if strings.HasSuffix(strings.ToLower(s[loc[0]:loc[1]]), "not") {
		rest = "not " + rest
	}
	return candidate{
		phrase:    imperative(rest),
		sentence:  s,
		mandatory: mandatory,
		intro:     strings.HasSuffix(s, ":"),
	}, true
}

func (g *Generator) item(c document.Clause, cand candidate, key string) Item {
	tokens := document.Tokens(cand.sentence)
	ref := SourceRef{ClauseID: c.ID, Version: c.Version}
	return Item{
		ID:          uuid.NewSHA1(itemNamespace, []byte(g.rules.Version+"\x00"+ref.String()+"\x00"+key)).String(),
		Text:        cand.text(),
		Priority:    g.priority(c, cand, tokens),
		Owner:       g.rules.Owner(tokens),
		SourceRef:   ref,
		IsMandatory: cand.mandatory,
	}
}

// priority: optional items are always Low. Mandatory items are High when
// the clause is high risk or the obligation names a deadline or penalty.
func (g *Generator) priority(c document.Clause, cand candidate, tokens []string) Priority {
	if !cand.mandatory {
		return PriorityLow
	}
	if c.RiskLevel == document.RiskHigh ||
		ruleset.ContainsAny(tokens, g.rules.Obligations.Deadline) ||
		ruleset.ContainsAny(tokens, g.rules.Obligations.Penalty) {
		return PriorityHigh
	}
	return PriorityMedium
}
