package ejectart

import "sort"

// LineList is a frequency-sorted view over an AtomicData's lines,
// supporting the range queries the packet propagation kernel needs: a
// packet's comoving frequency only ever redshifts (decreases) as it
// propagates, so walking the list from a hint index downward in
// frequency never needs to look backward.
type LineList struct {
	lines []Line // sorted descending by NuTMin
}

// NewLineList builds a sorted, de-duplicated line list from raw lines.
// Two lines are duplicates only if they share the same (ion, lower,
// upper) transition and their rest frequencies agree to within
// mergeRelTol: same-transition entries that merely round to the same
// frequency are really one blended line for opacity purposes, so their
// oscillator strengths and decay rates are summed and the stronger of
// their two collision strengths is kept. Lines from unrelated
// transitions are never merged even if their frequencies coincide.
func NewLineList(lines []Line) *LineList {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NuTMin > sorted[j].NuTMin })

	const mergeRelTol = 1e-10
	merged := sorted[:0:0]
	for _, ln := range sorted {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			sameTransition := last.IonIndex == ln.IonIndex && last.Lower == ln.Lower && last.Upper == ln.Upper
			if sameTransition && relClose(last.NuTMin, ln.NuTMin, mergeRelTol) {
				last.GfValue += ln.GfValue
				last.Aji += ln.Aji
				last.CollStr = maxCollStr(last.CollStr, ln.CollStr)
				last.Forbidden = last.Forbidden && ln.Forbidden
				continue
			}
		}
		merged = append(merged, ln)
	}
	return &LineList{lines: merged}
}

func maxCollStr(a, b Real) Real {
	if a == NoCollStr {
		return b
	}
	if b == NoCollStr {
		return a
	}
	if b > a {
		return b
	}
	return a
}

func relClose(a, b, tol Real) bool {
	if a == b {
		return true
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	denom := a
	if denom == 0 {
		denom = b
	}
	if denom == 0 {
		return true
	}
	return d/denom < tol
}

// Len reports the number of distinct lines.
func (ll *LineList) Len() int { return len(ll.lines) }

// At returns the line at sorted index i.
func (ll *LineList) At(i int) Line { return ll.lines[i] }

// Lookup returns the index of the highest-frequency line at or after
// hint whose frequency is <= nu, or -1 if every line at or after hint
// sits above nu. hint lower-bounds the search: a packet's next-
// transition hint only ever moves forward as it redshifts through the
// descending list, so a caller re-querying with the index just past
// its last interaction never re-examines a line it has already ruled
// out this propagation step.
func (ll *LineList) Lookup(nu Real, hint int) int {
	if hint < 0 {
		hint = 0
	}
	n := len(ll.lines)
	if hint >= n || ll.lines[n-1].NuTMin > nu {
		return -1
	}
	lo, hi := hint, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if ll.lines[mid].NuTMin <= nu {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}
