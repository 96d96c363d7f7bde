package diff

import "strings"

// Lines returns a minimal edit script turning a into b (Myers' O(ND)
// algorithm).
func Lines(a, b []string) []LineEdit {
	n, m := len(a), len(b)
	if n+m == 0 {
		return nil
	}
	offset := n + m
	v := make([]int, 2*offset+2)
	var trace [][]int

search:
	for d := 0; d <= n+m; d++ {
		trace = append(trace, append([]int(nil), v...))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break search
			}
		}
	}

	edits := make([]LineEdit, 0, n+m)
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		vd := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && vd[offset+k-1] < vd[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vd[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			edits = append(edits, LineEdit{Op: LineEqual, Text: a[x-1]})
			x--
			y--
		}
		if d == 0 {
			break
		}
		if x == prevX {
			edits = append(edits, LineEdit{Op: LineAdded, Text: b[y-1]})
			y--
		} else {
			edits = append(edits, LineEdit{Op: LineRemoved, Text: a[x-1]})
			x--
		}
	}
	for l, r := 0, len(edits)-1; l < r; l, r = l+1, r-1 {
		edits[l], edits[r] = edits[r], edits[l]
	}
	return edits
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}
