// Package checklist derives actionable compliance tasks from clauses.
//
// Each sentence carrying modal-obligation language yields one task; a
// sentence ending in a colon hands its modal to the list items that follow
// it. Generation is a pure function of the clauses and the ruleset.
package checklist

// Priority ranks a checklist item.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// SourceRef points back at the clause an item was derived from.
type SourceRef struct {
	ClauseID string `json:"clauseId"`
	Version  string `json:"version"`
}

func (r SourceRef) String() string {
	return r.ClauseID + "@" + r.Version
}

// Item is one generated task. Checked belongs to the caller; generation
// always leaves it false.
type Item struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Priority    Priority  `json:"priority"`
	Owner       string    `json:"owner"`
	SourceRef   SourceRef `json:"sourceRef"`
	IsMandatory bool      `json:"isMandatory"`
	Checked     bool      `json:"checked"`
}

// Table is the flat export of a checklist. Rows follow item order.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ExportColumns are the columns of every exported table.
var ExportColumns = []string{"task", "priority", "owner", "sourceRef"}

// Export flattens items into a table.
func Export(items []Item) Table {
	t := Table{
		Columns: append([]string(nil), ExportColumns...),
		Rows:    make([][]string, 0, len(items)),
	}
	for _, it := range items {
		t.Rows = append(t.Rows, []string{it.Text, string(it.Priority), it.Owner, it.SourceRef.String()})
	}
	return t
}
