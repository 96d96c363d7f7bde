package diff

// step records which move produced a DP cell.
type step uint8

const (
	stepNone step = iota
	stepSkipOld
	stepSkipNew
	stepMatch
)

// cell orders alignments: higher total quality wins, then lower total
// displacement between matched positions, then the lower sum of pair keys.
// Every key is independent of which side is old, so swapping the inputs
// selects the mirrored alignment.
type cell struct {
	quality      int64
	displacement int64
	tie          int64
}

func (c cell) better(o cell) bool {
	if c.quality != o.quality {
		return c.quality > o.quality
	}
	if c.displacement != o.displacement {
		return c.displacement < o.displacement
	}
	return c.tie < o.tie
}

// pair is one matched (old, new) index pair.
type pair struct {
	oldIdx, newIdx int
	similarity     float64
}

// align returns the non-crossing matching of maximum total quality. Among
// equal-quality matchings the one whose pairs sit closest to their original
// positions wins, then the one with the lower pair-key sum. Only clauses with
// identical title and content can still tie; those prefer matching over
// skipping, then skipping the old clause. The result is ascending in both
// indices.
func align(oldP, newP []profile, threshold float64) []pair {
	n, m := len(oldP), len(newP)
	width := m + 1
	moves := make([]step, (n+1)*width)
	prev := make([]cell, width)
	cur := make([]cell, width)

	for j := 1; j <= m; j++ {
		moves[j] = stepSkipNew
	}
	for i := 1; i <= n; i++ {
		cur[0] = cell{}
		moves[i*width] = stepSkipOld
		for j := 1; j <= m; j++ {
			best, move := prev[j], stepSkipOld
			if c := cur[j-1]; c.better(best) {
				best, move = c, stepSkipNew
			}
			if q, _, ok := score(oldP[i-1], newP[j-1], threshold); ok {
				c := cell{
					quality:      prev[j-1].quality + q,
					displacement: prev[j-1].displacement + abs(int64(i-j)),
					tie:          prev[j-1].tie + pairKey(oldP[i-1], newP[j-1]),
				}
				if !best.better(c) {
					best, move = c, stepMatch
				}
			}
			cur[j] = best
			moves[i*width+j] = move
		}
		prev, cur = cur, prev
	}

	var pairs []pair
	for i, j := n, m; i > 0 || j > 0; {
		switch moves[i*width+j] {
		case stepMatch:
			_, sim, _ := score(oldP[i-1], newP[j-1], threshold)
			pairs = append(pairs, pair{oldIdx: i - 1, newIdx: j - 1, similarity: sim})
			i--
			j--
		case stepSkipOld:
			i--
		default:
			j--
		}
	}
	for l, r := 0, len(pairs)-1; l < r; l, r = l+1, r-1 {
		pairs[l], pairs[r] = pairs[r], pairs[l]
	}
	return pairs
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
