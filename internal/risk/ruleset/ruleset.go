// Package ruleset loads the versioned rules behind rule-based classification
// and checklist derivation.
//
// Rulesets are YAML documents. Terms are matched against lower-case word
// tokens; a multi-word term matches consecutive tokens and a trailing "*"
// makes the last word a prefix match ("outsourc*" matches "outsourcing").
package ruleset

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"regassist/internal/document"
	dErrors "regassist/pkg/domain-errors"
)

//go:embed default.yaml
var defaultYAML []byte

// Ruleset is one immutable version of the rules.
type Ruleset struct {
	Version     string          `yaml:"version"`
	Risk        RiskRules       `yaml:"risk"`
	Obligations ObligationRules `yaml:"obligations"`
	Owners      OwnerRules      `yaml:"owners"`
}

type RiskRules struct {
	HighThreshold   int       `yaml:"high_threshold"`
	MediumThreshold int       `yaml:"medium_threshold"`
	CountCap        int       `yaml:"count_cap"`
	Keywords        []Keyword `yaml:"keywords"`
}

// Keyword contributes Weight per occurrence (up to the cap) and, when
// present at all, adds Tag to the clause.
type Keyword struct {
	Term   string `yaml:"term"`
	Weight int    `yaml:"weight"`
	Tag    string `yaml:"tag"`
}

type ObligationRules struct {
	Mandatory []string `yaml:"mandatory"`
	Optional  []string `yaml:"optional"`
	Deadline  []string `yaml:"deadline"`
	Penalty   []string `yaml:"penalty"`
}

type OwnerRules struct {
	Default string      `yaml:"default"`
	Rules   []OwnerRule `yaml:"rules"`
}

type OwnerRule struct {
	Match string `yaml:"match"`
	Owner string `yaml:"owner"`
}

var loadDefault = sync.OnceValues(func() (*Ruleset, error) {
	return Parse(defaultYAML)
})

// Default returns the embedded ruleset.
func Default() *Ruleset {
	rs, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded ruleset is invalid: %v", err))
	}
	return rs
}

// Load reads a ruleset file, or returns Default when path is empty.
func Load(path string) (*Ruleset, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML ruleset. Unknown fields are rejected.
func Parse(data []byte) (*Ruleset, error) {
	var rs Ruleset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid ruleset yaml")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the invariants classification relies on.
func (rs *Ruleset) Validate() error {
	switch {
	case strings.TrimSpace(rs.Version) == "":
		return dErrors.New(dErrors.CodeValidation, "ruleset version is required")
	case rs.Risk.MediumThreshold <= 0:
		return dErrors.New(dErrors.CodeValidation, "risk.medium_threshold must be positive")
	case rs.Risk.HighThreshold <= rs.Risk.MediumThreshold:
		return dErrors.New(dErrors.CodeValidation, "risk.high_threshold must exceed risk.medium_threshold")
	case rs.Risk.CountCap <= 0:
		return dErrors.New(dErrors.CodeValidation, "risk.count_cap must be positive")
	case len(rs.Obligations.Mandatory) == 0:
		return dErrors.New(dErrors.CodeValidation, "obligations.mandatory must list at least one term")
	case strings.TrimSpace(rs.Owners.Default) == "":
		return dErrors.New(dErrors.CodeValidation, "owners.default is required")
	}
	for i, k := range rs.Risk.Keywords {
		if strings.TrimSpace(k.Term) == "" || k.Weight <= 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("risk.keywords[%d] needs a term and a positive weight", i))
		}
	}
	return nil
}

// Owner returns the owner of the first rule matching the tokens, or the default owner.
func (rs *Ruleset) Owner(tokens []string) string {
	for _, r := range rs.Owners.Rules {
		if Count(tokens, r.Match) > 0 {
			return r.Owner
		}
	}
	return rs.Owners.Default
}

// Count returns how many times term occurs in tokens.
func Count(tokens []string, term string) int {
	words := document.Tokens(term)
	if len(words) == 0 {
		return 0
	}
	prefix := strings.HasSuffix(strings.TrimSpace(term), "*")
	n := 0
	for i := 0; i+len(words) <= len(tokens); i++ {
		if matchAt(tokens[i:i+len(words)], words, prefix) {
			n++
		}
	}
	return n
}

// ContainsAny reports whether any of terms occurs in tokens.
func ContainsAny(tokens []string, terms []string) bool {
	for _, t := range terms {
		if Count(tokens, t) > 0 {
			return true
		}
	}
	return false
}

func matchAt(window, words []string, prefix bool) bool {
	last := len(words) - 1
	for j, w := range words {
		if j == last && prefix {
			if !strings.HasPrefix(window[j], w) {
				return false
			}
			continue
		}
		if window[j] != w {
			return false
		}
	}
	return true
}
