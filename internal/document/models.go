// Package document turns raw regulatory text into ordered, addressable clauses.
//
// Normalize canonicalizes decoded text into lines and Segment groups those
// lines into clauses at top-level heading granularity. Both are pure functions
// of their inputs and safe to call concurrently.
package document

import (
	"time"

	id "regassist/pkg/domain"
)

// RiskLevel grades a clause. The zero value means the clause has not been classified.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel accepts the lower-case wire form ("low", "medium", "high").
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}

func (r RiskLevel) String() string {
	return string(r)
}

// Metadata describes the document a version of text belongs to.
type Metadata struct {
	DocumentID   id.DocumentID `json:"documentId"`
	Title        string        `json:"title,omitempty"`
	Regulator    string        `json:"regulator,omitempty"`
	Jurisdiction string        `json:"jurisdiction,omitempty"`
	Sector       string        `json:"sector,omitempty"`
	VersionLabel string        `json:"version"`
	Date         time.Time     `json:"date,omitzero"`
}

// RawDocument is the ingestion input handed over by the upload collaborator.
type RawDocument struct {
	Content  []byte
	Encoding string
	Metadata Metadata
}

// Line is one normalized line of text. Page is 1-based and advances on form feeds.
type Line struct {
	Text string
	Page int
}

// Clause is a titled unit of regulatory text within one document version.
// Clauses are never mutated after segmentation; classification returns annotated copies.
type Clause struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Page      int       `json:"page"`
	Ordinal   int       `json:"ordinal"`
	RiskLevel RiskLevel `json:"riskLevel,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Ref returns the "id@version" reference used in exports and audit details.
func (c Clause) Ref() string {
	return c.ID + "@" + c.Version
}

// WithRisk returns a copy of the clause carrying the given assessment.
func (c Clause) WithRisk(level RiskLevel, tags []string) Clause {
	c.RiskLevel = level
	c.Tags = append([]string(nil), tags...)
	return c
}
