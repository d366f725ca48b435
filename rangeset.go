package meshdb

import "sort"

// HandleRun is one run-length pair of a Range: the closed interval
// [First, Last] of consecutive handles, with First <= Last.
type HandleRun struct {
	First, Last Handle
}

func (r HandleRun) size() uint64 {
	return uint64(r.Last-r.First) + 1
}

// Range is a sorted set of handles stored as run-length pairs (spec.md
// §3/§4.2). Adjacent or overlapping runs are always merged, so the pair
// list is the canonical compact form: r.runs[i].Last+1 < r.runs[i+1].First
// for every i. This is the container C8 and every bulk operation use to
// describe "a large consecutive block of entities" in O(runs) instead of
// O(handles).
//
// There is no teacher analog for a run-length interval set — bitmask256
// (bitmask.go) is the closest thing the teacher has to a compact handle
// set, but it only ever represents up to 256 *component ids*, tested by
// containment, never iterated or merged as intervals. Range reuses the
// teacher's sorted-slice-plus-binary-search idiom (see mask.go's linear
// scans and world.go's maskToArcIndex lookups) at the interval-list level
// instead.
type Range struct {
	runs []HandleRun
}

// NewRange builds a Range containing the given handles.
func NewRange(handles ...Handle) *Range {
	r := &Range{}
	for _, h := range handles {
		r.Insert(h)
	}
	return r
}

// NewRangeFromRun builds a Range containing exactly [first, last].
func NewRangeFromRun(first, last Handle) *Range {
	r := &Range{}
	if first <= last {
		r.runs = append(r.runs, HandleRun{first, last})
	}
	return r
}

// NumRuns returns the number of disjoint runs.
func (r *Range) NumRuns() int { return len(r.runs) }

// IsEmpty reports whether the range holds no handles.
func (r *Range) IsEmpty() bool { return len(r.runs) == 0 }

// Runs returns the underlying run list. Callers must not mutate it.
func (r *Range) Runs() []HandleRun { return r.runs }

// Size returns the number of handles represented, summing run lengths
// rather than counting individually.
func (r *Range) Size() uint64 {
	var n uint64
	for _, run := range r.runs {
		n += run.size()
	}
	return n
}

// Min returns the smallest handle in the range, or InvalidHandle if empty.
func (r *Range) Min() Handle {
	if len(r.runs) == 0 {
		return InvalidHandle
	}
	return r.runs[0].First
}

// Max returns the largest handle in the range, or InvalidHandle if empty.
func (r *Range) Max() Handle {
	if len(r.runs) == 0 {
		return InvalidHandle
	}
	return r.runs[len(r.runs)-1].Last
}

// Clone returns an independent copy of r.
func (r *Range) Clone() *Range {
	c := &Range{runs: make([]HandleRun, len(r.runs))}
	copy(c.runs, r.runs)
	return c
}

// lowerRunIndex returns the index of the first run whose Last is >= h.
// This is LowerBound's "position into the run list" (spec.md §4.2).
func (r *Range) lowerRunIndex(h Handle) int {
	return sort.Search(len(r.runs), func(i int) bool {
		return r.runs[i].Last >= h
	})
}

// LowerBound returns the index of the first run that could contain h (the
// first run with Last >= h), for callers that want to resume iteration
// from a given handle.
func (r *Range) LowerBound(h Handle) int { return r.lowerRunIndex(h) }

// UpperBound returns the index of the first run that starts strictly
// after h.
func (r *Range) UpperBound(h Handle) int {
	return sort.Search(len(r.runs), func(i int) bool {
		return r.runs[i].First > h
	})
}

// Contains reports whether h is a member of the range.
func (r *Range) Contains(h Handle) bool {
	i := r.lowerRunIndex(h)
	return i < len(r.runs) && r.runs[i].First <= h
}

// ContainsRange reports whether every handle in [first, last] is a member.
func (r *Range) ContainsRange(first, last Handle) bool {
	if first > last {
		return true
	}
	i := r.lowerRunIndex(first)
	return i < len(r.runs) && r.runs[i].First <= first && r.runs[i].Last >= last
}

// Insert adds a single handle to the range.
func (r *Range) Insert(h Handle) { r.InsertRange(h, h) }

// InsertRange adds every handle in [first, last], merging with any
// overlapping or abutting existing runs.
func (r *Range) InsertRange(first, last Handle) {
	if first > last {
		return
	}
	lo := sort.Search(len(r.runs), func(i int) bool {
		return r.runs[i].Last+1 >= first
	})
	hi := lo
	for hi < len(r.runs) && r.runs[hi].First <= last+1 {
		if r.runs[hi].First < first {
			first = r.runs[hi].First
		}
		if r.runs[hi].Last > last {
			last = r.runs[hi].Last
		}
		hi++
	}
	merged := HandleRun{first, last}
	r.runs = append(r.runs[:lo], append([]HandleRun{merged}, r.runs[hi:]...)...)
}

// Erase removes a single handle from the range, splitting its run if
// necessary.
func (r *Range) Erase(h Handle) { r.EraseRange(h, h) }

// EraseRange removes every handle in [first, last] from the range.
func (r *Range) EraseRange(first, last Handle) {
	if first > last || len(r.runs) == 0 {
		return
	}
	lo := r.lowerRunIndex(first)
	if lo == len(r.runs) {
		return
	}
	out := make([]HandleRun, 0, len(r.runs)+1)
	out = append(out, r.runs[:lo]...)
	i := lo
	for i < len(r.runs) && r.runs[i].First <= last {
		run := r.runs[i]
		if run.First < first {
			out = append(out, HandleRun{run.First, first - 1})
		}
		if run.Last > last {
			out = append(out, HandleRun{last + 1, run.Last})
		}
		i++
	}
	out = append(out, r.runs[i:]...)
	r.runs = out
}

// Union returns a new Range containing every handle in r or other.
func (r *Range) Union(other *Range) *Range {
	out := &Range{runs: make([]HandleRun, 0, len(r.runs)+len(other.runs))}
	i, j := 0, 0
	for i < len(r.runs) || j < len(other.runs) {
		var next HandleRun
		switch {
		case i >= len(r.runs):
			next = other.runs[j]
			j++
		case j >= len(other.runs):
			next = r.runs[i]
			i++
		case r.runs[i].First <= other.runs[j].First:
			next = r.runs[i]
			i++
		default:
			next = other.runs[j]
			j++
		}
		out.appendMerge(next)
	}
	return out
}

// appendMerge appends run to out.runs, merging with the last run if it
// overlaps or abuts.
func (out *Range) appendMerge(run HandleRun) {
	n := len(out.runs)
	if n > 0 && run.First <= out.runs[n-1].Last+1 {
		if run.Last > out.runs[n-1].Last {
			out.runs[n-1].Last = run.Last
		}
		return
	}
	out.runs = append(out.runs, run)
}

// Intersect returns a new Range containing handles present in both r and
// other, via a linear merge over both run lists (spec.md §4.2).
func (r *Range) Intersect(other *Range) *Range {
	out := &Range{}
	i, j := 0, 0
	for i < len(r.runs) && j < len(other.runs) {
		a, b := r.runs[i], other.runs[j]
		lo := a.First
		if b.First > lo {
			lo = b.First
		}
		hi := a.Last
		if b.Last < hi {
			hi = b.Last
		}
		if lo <= hi {
			out.runs = append(out.runs, HandleRun{lo, hi})
		}
		if a.Last < b.Last {
			i++
		} else {
			j++
		}
	}
	return out
}

// Subtract returns a new Range containing handles present in r but not in
// other.
func (r *Range) Subtract(other *Range) *Range {
	out := &Range{}
	i, j := 0, 0
	for i < len(r.runs) {
		cur := r.runs[i]
		for j < len(other.runs) && other.runs[j].Last < cur.First {
			j++
		}
		k := j
		for k < len(other.runs) && other.runs[k].First <= cur.Last {
			if other.runs[k].First > cur.First {
				out.runs = append(out.runs, HandleRun{cur.First, other.runs[k].First - 1})
			}
			cur.First = other.runs[k].Last + 1
			k++
			if cur.First > cur.Last {
				break
			}
		}
		if cur.First <= cur.Last {
			out.runs = append(out.runs, cur)
		}
		i++
	}
	return out
}

// All returns an iterator over every handle in the range, in ascending
// order. Go 1.23 range-over-func, the idiom plus3-ooftn's ecs package
// uses for its component-storage iteration (generic_component_storage.go
// imports "iter").
func (r *Range) All() func(yield func(Handle) bool) {
	return func(yield func(Handle) bool) {
		for _, run := range r.runs {
			for h := run.First; ; h++ {
				if !yield(h) {
					return
				}
				if h == run.Last {
					break
				}
			}
		}
	}
}

// Backward returns an iterator over every handle in the range, in
// descending order.
func (r *Range) Backward() func(yield func(Handle) bool) {
	return func(yield func(Handle) bool) {
		for i := len(r.runs) - 1; i >= 0; i-- {
			run := r.runs[i]
			for h := run.Last; ; h-- {
				if !yield(h) {
					return
				}
				if h == run.First {
					break
				}
			}
		}
	}
}

// ToSlice materializes the range as a flat slice of handles. Prefer All
// for large ranges.
func (r *Range) ToSlice() []Handle {
	out := make([]Handle, 0, r.Size())
	for h := range r.All() {
		out = append(out, h)
	}
	return out
}
