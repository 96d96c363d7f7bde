package diff

import (
	"hash/fnv"
	"math"
	"slices"

	"regassist/internal/document"
)

// stopwords carry no signal about what a clause regulates.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "for": {},
	"to": {}, "that": {}, "which": {}, "by": {}, "on": {}, "with": {}, "be": {}, "is": {},
	"are": {}, "as": {}, "at": {}, "it": {}, "its": {}, "this": {}, "these": {}, "such": {},
	"from": {}, "any": {}, "all": {},
}

// profile is the precomputed comparison view of one clause.
type profile struct {
	hash    string
	content []string // sorted, unique
	title   []string // sorted, unique
	// ident fingerprints title and content; it does not depend on the side
	// the clause came from.
	ident uint64
}

func newProfile(c document.Clause) profile {
	h := fnv.New64a()
	h.Write([]byte(c.Title))
	h.Write([]byte{0})
	h.Write([]byte(c.Content))
	return profile{
		hash:    document.ContentHash(c.Content),
		content: tokenSet(c.Content, true),
		title:   tokenSet(c.Title, false),
		ident:   h.Sum64(),
	}
}

// pairKey is the same for (a, b) and (b, a). It fits in 32 bits so sums
// over a whole alignment cannot overflow.
func pairKey(a, b profile) int64 {
	lo, hi := a.ident, b.ident
	if lo > hi {
		lo, hi = hi, lo
	}
	return int64(mix64(lo^mix64(hi)) >> 32)
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func tokenSet(text string, dropStopwords bool) []string {
	all := document.Tokens(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if dropStopwords {
			if _, ok := stopwords[t]; ok {
				continue
			}
		}
		out = append(out, t)
	}
	if len(out) == 0 && dropStopwords {
		// text made only of stopwords still has an identity
		out = append(out, all...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// dice is 2|A∩B| / (|A|+|B|) over sorted unique sets; two empty sets are identical.
func dice(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	shared := 0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

// Similarity returns the content similarity of two clauses in [0, 1]. It is
// symmetric, and 1 for content that differs only in whitespace or case.
func Similarity(a, b document.Clause) float64 {
	pa, pb := newProfile(a), newProfile(b)
	if pa.hash == pb.hash {
		return 1
	}
	return dice(pa.content, pb.content)
}

const exactBonus = 1000

// score rates a candidate pair. ok is false when the pair may not be matched:
// content must be identical or more similar than threshold.
func score(a, b profile, threshold float64) (quality int64, similarity float64, ok bool) {
	exact := a.hash == b.hash
	similarity = 1
	if !exact {
		similarity = dice(a.content, b.content)
		if similarity <= threshold {
			return 0, similarity, false
		}
	}
	q := int64(math.Round(1000 * (0.75*similarity + 0.25*dice(a.title, b.title))))
	if exact {
		q += exactBonus
	}
	return max(q, 1), similarity, true
}
