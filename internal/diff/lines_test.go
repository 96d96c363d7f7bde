package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"regassist/internal/document"
)

func apply(edits []LineEdit) (from, to []string) {
	for _, e := range edits {
		switch e.Op {
		case LineEqual:
			from = append(from, e.Text)
			to = append(to, e.Text)
		case LineRemoved:
			from = append(from, e.Text)
		case LineAdded:
			to = append(to, e.Text)
		}
	}
	return from, to
}

func TestLines(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		changes int
	}{
		{"identical", "a\nb\nc", "a\nb\nc", 0},
		{"replace middle", "a\nb\nc", "a\nx\nc", 2},
		{"insert", "a\nc", "a\nb\nc", 1},
		{"delete", "a\nb\nc", "a\nc", 1},
		{"from empty", "", "a\nb", 2},
		{"to empty", "a\nb", "", 2},
		{"classic", "a\nb\nc\na\nb\nb\na", "c\nb\na\nb\na\nc", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := splitLines(tt.a), splitLines(tt.b)
			edits := Lines(a, b)

			from, to := apply(edits)
			assert.Equal(t, strings.Join(a, "\n"), strings.Join(from, "\n"))
			assert.Equal(t, strings.Join(b, "\n"), strings.Join(to, "\n"))

			changes := 0
			for _, e := range edits {
				if e.Op != LineEqual {
					changes++
				}
			}
			assert.Equal(t, tt.changes, changes)
		})
	}
}

func TestSimilarity(t *testing.T) {
	old := document.Clause{Content: govOld[1]}
	updated := document.Clause{Content: govNew[1]}

	assert.InDelta(t, 0.8, Similarity(old, updated), 1e-9)
	assert.Equal(t, Similarity(old, updated), Similarity(updated, old))
	assert.Equal(t, 1.0, Similarity(old, document.Clause{Content: strings.ToUpper(govOld[1])}))
	assert.Equal(t, 0.0, Similarity(old, document.Clause{Content: "Records must be retained for five years."}))
}
