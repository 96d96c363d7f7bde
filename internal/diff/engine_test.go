package diff

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regassist/internal/document"
	dErrors "regassist/pkg/domain-errors"
)

// version builds clauses from title/content pairs with ids unique per version.
func version(label string, specs ...[2]string) []document.Clause {
	out := make([]document.Clause, len(specs))
	for i, s := range specs {
		out[i] = document.Clause{
			ID:      fmt.Sprintf("%s-%d", label, i+1),
			Version: label,
			Title:   s[0],
			Content: s[1],
			Ordinal: i + 1,
		}
	}
	return out
}

var (
	scope      = [2]string{"Article 1 - Subject matter", "This Regulation lays down uniform requirements concerning the security of network and information systems."}
	govOld     = [2]string{"Article 5 - Governance", "Financial entities shall have in place an internal governance framework for ICT risk."}
	govNew     = [2]string{"Article 5 - Governance", "Financial entities shall have in place an internal governance and control framework that ensures an effective and prudent management of ICT risk."}
	penalties  = [2]string{"Article 50 - Penalties", "Member States shall lay down rules on administrative penalties and remedial measures."}
	thirdParty = [2]string{"Article 28 - Third-party risk", "Financial entities shall manage ICT third-party risk as an integral component of ICT risk."}
)

func assertPartition(t *testing.T, before, after []document.Clause, res *Result) {
	t.Helper()
	oldSeen := map[string]int{}
	newSeen := map[string]int{}
	for _, s := range res.Segments {
		if s.OldClauseID != "" {
			oldSeen[s.OldClauseID]++
		}
		if s.NewClauseID != "" {
			newSeen[s.NewClauseID]++
		}
		switch s.Type {
		case Added:
			assert.Empty(t, s.OldClauseID)
			assert.NotEmpty(t, s.NewClauseID)
		case Removed:
			assert.NotEmpty(t, s.OldClauseID)
			assert.Empty(t, s.NewClauseID)
		default:
			assert.NotEmpty(t, s.OldClauseID)
			assert.NotEmpty(t, s.NewClauseID)
		}
	}
	require.Len(t, oldSeen, len(before))
	require.Len(t, newSeen, len(after))
	for _, c := range before {
		assert.Equal(t, 1, oldSeen[c.ID], "old clause %s", c.ID)
	}
	for _, c := range after {
		assert.Equal(t, 1, newSeen[c.ID], "new clause %s", c.ID)
	}
	assert.Equal(t, len(res.Segments), res.Stats.Added+res.Stats.Removed+res.Stats.Modified+res.Stats.Unchanged)
}

func types(res *Result) []SegmentType {
	out := make([]SegmentType, len(res.Segments))
	for i, s := range res.Segments {
		out[i] = s.Type
	}
	return out
}

func TestCompareIdenticalIsAllUnchanged(t *testing.T) {
	a := version("v1", scope, govOld, thirdParty, penalties)
	res, err := New().Compare("v1", a, "v1", a)
	require.NoError(t, err)

	require.Len(t, res.Segments, len(a))
	for i, s := range res.Segments {
		assert.Equal(t, Unchanged, s.Type)
		assert.Equal(t, a[i].ID, s.OldClauseID)
		assert.Equal(t, a[i].ID, s.NewClauseID)
	}
	assert.Equal(t, Stats{Unchanged: 4}, res.Stats)
}

func TestCompareIdenticalDuplicateContentStaysAligned(t *testing.T) {
	boiler := [2]string{"Article 9", "Reserved."}
	a := version("v1", boiler, boiler, boiler)
	res, err := New().Compare("v1", a, "v1", a)
	require.NoError(t, err)
	for i, s := range res.Segments {
		assert.Equal(t, Unchanged, s.Type)
		assert.Equal(t, a[i].ID, s.OldClauseID)
		assert.Equal(t, a[i].ID, s.NewClauseID)
	}
}

func TestCompareModifiedClause(t *testing.T) {
	before := version("2023", govOld)
	after := version("2024", govNew)

	res, err := New().Compare("2023", before, "2024", after)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)

	seg := res.Segments[0]
	assert.Equal(t, Modified, seg.Type)
	assert.Equal(t, "2023-1", seg.OldClauseID)
	assert.Equal(t, "2024-1", seg.NewClauseID)
	assert.Greater(t, seg.Similarity, DefaultThreshold)
	assert.Less(t, seg.Similarity, 1.0)
	assert.Equal(t, govNew[1], seg.Text)
	assert.Equal(t, []LineEdit{
		{Op: LineRemoved, Text: govOld[1]},
		{Op: LineAdded, Text: govNew[1]},
	}, seg.Lines)
	assert.Contains(t, seg.Summary, "+1 -1 lines")
	assert.Equal(t, "2023", res.SourceVersion)
	assert.Equal(t, "2024", res.TargetVersion)
}

func TestCompareWhitespaceOnlyChangeIsUnchanged(t *testing.T) {
	edited := [2]string{govOld[0], "Financial  entities shall have in place an internal\ngovernance framework for ICT risk."}
	res, err := New().Compare("v1", version("v1", govOld), "v2", version("v2", edited))
	require.NoError(t, err)
	assert.Equal(t, []SegmentType{Unchanged}, types(res))
}

func TestCompareDissimilarPairIsRemovedAndAdded(t *testing.T) {
	before := version("v1", [2]string{"Article 7", "Member States shall designate competent authorities."})
	after := version("v2", [2]string{"Article 7", "Records must be retained for five years."})

	res, err := New().Compare("v1", before, "v2", after)
	require.NoError(t, err)
	assert.Equal(t, []SegmentType{Removed, Added}, types(res))
	assertPartition(t, before, after, res)
}

func TestCompareRemovalKeepsSourcePosition(t *testing.T) {
	before := version("v1", scope, govOld, penalties)
	after := version("v2", scope, penalties, thirdParty)

	res, err := New().Compare("v1", before, "v2", after)
	require.NoError(t, err)
	assert.Equal(t, []SegmentType{Unchanged, Removed, Unchanged, Added}, types(res))
	assert.Equal(t, "v1-2", res.Segments[1].OldClauseID)
	assert.Equal(t, "v2-3", res.Segments[3].NewClauseID)
	assertPartition(t, before, after, res)
}

func TestCompareNeverCrosses(t *testing.T) {
	before := version("v1", scope, penalties)
	after := version("v2", penalties, scope)

	res, err := New().Compare("v1", before, "v2", after)
	require.NoError(t, err)
	assert.Equal(t, Stats{Added: 1, Removed: 1, Unchanged: 1}, res.Stats)
	assertPartition(t, before, after, res)

	lastOld, lastNew := 0, 0
	for _, s := range res.Segments {
		if s.Type == Unchanged || s.Type == Modified {
			assert.Greater(t, s.OldOrdinal, lastOld)
			assert.Greater(t, s.NewOrdinal, lastNew)
			lastOld, lastNew = s.OldOrdinal, s.NewOrdinal
		}
	}
}

func TestCompareIsSymmetric(t *testing.T) {
	type key struct {
		t        SegmentType
		from, to string
	}
	collect := func(res *Result, swap bool) map[key]bool {
		out := map[key]bool{}
		for _, s := range res.Segments {
			from, to := s.OldClauseID, s.NewClauseID
			typ := s.Type
			if swap {
				from, to = to, from
				switch typ {
				case Added:
					typ = Removed
				case Removed:
					typ = Added
				}
			}
			out[key{typ, from, to}] = true
		}
		return out
	}

	tests := []struct {
		name string
		a, b []document.Clause
		want Stats
	}{
		{
			name: "unique best alignment",
			a:    version("a", scope, govOld, penalties),
			b:    version("b", scope, govNew, thirdParty),
			want: Stats{Unchanged: 1, Modified: 1, Added: 1, Removed: 1},
		},
		{
			// a-1/b-2 and a-2/b-1 score the same and sit equally far from
			// their positions; only one of the crossing pairs can be kept
			name: "mirrored tie",
			a: version("a",
				[2]string{"Article 1", "alpha beta gamma delta"},
				[2]string{"Article 2", "kappa lambda mu nu"}),
			b: version("b",
				[2]string{"Article 1", "kappa lambda mu xi"},
				[2]string{"Article 2", "alpha beta gamma epsilon"}),
			want: Stats{Modified: 1, Added: 1, Removed: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab, err := New().Compare("a", tt.a, "b", tt.b)
			require.NoError(t, err)
			ba, err := New().Compare("b", tt.b, "a", tt.a)
			require.NoError(t, err)

			assert.Equal(t, collect(ab, false), collect(ba, true))
			assert.Equal(t, ab.Stats.Added, ba.Stats.Removed)
			assert.Equal(t, ab.Stats.Removed, ba.Stats.Added)
			assert.Equal(t, tt.want, ab.Stats)
		})
	}
}

func TestCompareEmptySides(t *testing.T) {
	a := version("v1", scope, govOld)

	res, err := New().Compare("v0", nil, "v1", a)
	require.NoError(t, err)
	assert.Equal(t, []SegmentType{Added, Added}, types(res))

	res, err = New().Compare("v1", a, "v2", nil)
	require.NoError(t, err)
	assert.Equal(t, []SegmentType{Removed, Removed}, types(res))

	res, err = New().Compare("v0", nil, "v0", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
}

func TestCompareRejectsOversizedInput(t *testing.T) {
	a := version("v1", scope, govOld, penalties)

	_, err := New(WithMaxClauses(2)).Compare("v1", a, "v2", a[:1])
	require.Error(t, err)

	var limitErr *ResourceLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 3, limitErr.Count)
	assert.Equal(t, 2, limitErr.Limit)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeResourceLimit))
}

func TestCompareRejectsDuplicateIDs(t *testing.T) {
	a := version("v1", scope, govOld)
	a[1].ID = a[0].ID

	_, err := New().Compare("v1", a, "v2", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCompareIsDeterministic(t *testing.T) {
	a := version("a", scope, govOld, penalties, thirdParty)
	b := version("b", govNew, scope, thirdParty)

	first, err := New().Compare("a", a, "b", b)
	require.NoError(t, err)
	for range 5 {
		again, err := New().Compare("a", a, "b", b)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assertPartition(t, a, b, first)
}
