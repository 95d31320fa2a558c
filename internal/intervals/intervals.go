// Package intervals implements normalized interval arithmetic over inclusive
// integer ranges. A Set is kept sorted and merged at all times, which lets
// length and overlap computations run as linear sweeps. All operations are
// unit-agnostic: a range may describe lines or bytes, the caller decides.
package intervals

import "sort"

// Range is an inclusive [Start, End] interval.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the range is well-formed.
func (r Range) Valid() bool {
	return r.Start <= r.End
}

// Length returns the number of covered units.
func (r Range) Length() int {
	return r.End - r.Start + 1
}

// Set is a normalized sequence of ranges: sorted by start, with no two
// ranges overlapping or touching. The zero value is an empty set.
type Set []Range

// New builds a normalized Set from arbitrary ranges. Invalid ranges
// (start > end) are dropped.
func New(ranges ...Range) Set {
	valid := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	return normalize(valid)
}

// normalize sorts and merges ranges. Touching endpoints merge too, so that
// half-open vs inclusive boundary slop never creates spurious gaps.
func normalize(ranges []Range) Set {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := sorted[:1]
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+1 {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return Set(merged)
}

// Union returns the normalized union of two sets.
func Union(a, b Set) Set {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	combined := make([]Range, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	return normalize(combined)
}

// Intersect returns the normalized intersection of two sets using a linear
// sweep over both sequences.
func Intersect(a, b Set) Set {
	var out Set
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if start <= end {
			out = append(out, Range{Start: start, End: end})
		}
		// Advance whichever range ends first; on a tie advance both.
		switch {
		case a[i].End < b[j].End:
			i++
		case b[j].End < a[i].End:
			j++
		default:
			i++
			j++
		}
	}
	return out
}

// IntersectionLength returns the total overlapping length of two sets.
func IntersectionLength(a, b Set) int {
	return Intersect(a, b).TotalLength()
}

// TotalLength returns the sum of range lengths. Empty sets have length 0.
func (s Set) TotalLength() int {
	total := 0
	for _, r := range s {
		total += r.Length()
	}
	return total
}

// Contains reports whether the point falls inside any range.
func (s Set) Contains(point int) bool {
	idx := sort.Search(len(s), func(i int) bool { return s[i].End >= point })
	return idx < len(s) && s[idx].Start <= point
}

// ContainsRange reports whether a whole range is covered by a single range
// of the set. Normalization guarantees a covered range cannot straddle two
// set entries.
func (s Set) ContainsRange(r Range) bool {
	if !r.Valid() {
		return false
	}
	idx := sort.Search(len(s), func(i int) bool { return s[i].End >= r.End })
	return idx < len(s) && s[idx].Start <= r.Start
}

// Overlaps reports whether the range intersects any range of the set.
func (s Set) Overlaps(r Range) bool {
	if !r.Valid() {
		return false
	}
	idx := sort.Search(len(s), func(i int) bool { return s[i].End >= r.Start })
	return idx < len(s) && s[idx].Start <= r.End
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
