// Package diff compares two versions of a document at clause granularity.
//
// Clauses are aligned by a weighted longest-common-subsequence over a
// similarity score, so the matching never crosses: relative order is always
// preserved. Modified clauses additionally carry a line-level edit script.
package diff

// SegmentType classifies one unit of change.
type SegmentType string

const (
	Added     SegmentType = "added"
	Removed   SegmentType = "removed"
	Modified  SegmentType = "modified"
	Unchanged SegmentType = "unchanged"
)

// LineOp annotates one content line of a modified clause.
type LineOp string

const (
	LineEqual   LineOp = "unchanged"
	LineAdded   LineOp = "added"
	LineRemoved LineOp = "removed"
)

type LineEdit struct {
	Op   LineOp `json:"op"`
	Text string `json:"text"`
}

// Segment is one change between the source and target version. Added
// segments carry only the new clause, removed segments only the old one.
type Segment struct {
	Type        SegmentType `json:"type"`
	OldClauseID string      `json:"oldClauseId,omitempty"`
	NewClauseID string      `json:"newClauseId,omitempty"`
	OldOrdinal  int         `json:"oldOrdinal,omitempty"`
	NewOrdinal  int         `json:"newOrdinal,omitempty"`
	Title       string      `json:"title"`
	// Text is the target content, or the source content for removals.
	Text string `json:"text"`
	// Similarity is the content similarity of a matched pair in [0, 1].
	Similarity float64    `json:"similarity,omitempty"`
	Lines      []LineEdit `json:"lines,omitempty"`
	Summary    string     `json:"summary,omitempty"`
}

// Stats counts segments by type.
type Stats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Result is the ordered change script between two versions. Segments follow
// the target order; removals sit where they were relative to the clauses
// that survived around them.
type Result struct {
	SourceVersion string    `json:"sourceVersion"`
	TargetVersion string    `json:"targetVersion"`
	Segments      []Segment `json:"segments"`
	Stats         Stats     `json:"stats"`
}

// Changed returns the added and modified segments in order.
func (r *Result) Changed() []Segment {
	var out []Segment
	for _, s := range r.Segments {
		if s.Type == Added || s.Type == Modified {
			out = append(out, s)
		}
	}
	return out
}

func (s *Stats) add(t SegmentType) {
	switch t {
	case Added:
		s.Added++
	case Removed:
		s.Removed++
	case Modified:
		s.Modified++
	case Unchanged:
		s.Unchanged++
	}
}
