package meshdb

// RangeBlock is one maximal chunk emitted by RangeSequenceIterator: either
// a live, same-sequence run ([First,Last], Err == nil, Sequence set), or a
// "hole" describing handles in the input range that are not live
// (Err wraps EntityNotFound or TypeOutOfRange; spec.md §4.5).
type RangeBlock struct {
	Sequence *sequence
	First    Handle
	Last     Handle
	Err      error
}

// RangeSequenceIterator is the range/sequence intersection iterator
// (spec.md §4.5, component C5): given a Range and a sequenceManager, it
// walks the range once and emits maximal blocks that are each either
// entirely live-and-same-sequence or entirely a documented failure. It
// has no teacher analog — lazyecs only ever iterates whole archetypes
// (query.go's Query[T].Next steps one entity at a time through
// archetype.entities) — so the block-at-a-time, hole-aware walk here is
// new code, but it reuses the teacher's two building blocks: binary
// search into a sorted collection (world.go's maskToArcIndex lookup,
// generalized in seqmanager.go's sort.Search calls) and a mutation-
// generation guard (world.mutationVersion) to detect the structural
// mutation that spec.md §5 says makes concurrent stepping undefined
// behavior.
type RangeSequenceIterator struct {
	mgr        *sequenceManager
	generation uint64
	runs       []HandleRun
	runIdx     int
	cur        Handle
	runLast    Handle
	haveCur    bool
}

// NewRangeSequenceIterator creates an iterator over r, borrowing mgr for
// its lifetime. Mutating mgr (any Allocate/Release call) while this
// iterator is in use is undefined behavior per spec.md §5; Next reports
// it rather than silently returning wrong blocks.
func NewRangeSequenceIterator(mgr *sequenceManager, r *Range) *RangeSequenceIterator {
	return &RangeSequenceIterator{mgr: mgr, generation: mgr.Generation(), runs: r.Runs()}
}

// typeMaxHandle returns the largest representable handle of type t.
func typeMaxHandle(t EntityType) Handle {
	h, _ := EncodeHandle(t, handleIDMask)
	return h
}

func minHandle(a, b Handle) Handle {
	if a < b {
		return a
	}
	return b
}

// Next advances the iterator and returns the next block. The second
// return value is false once the input range is exhausted.
func (it *RangeSequenceIterator) Next() (RangeBlock, bool) {
	if it.mgr.Generation() != it.generation {
		return RangeBlock{Err: newErr("RangeSequenceIterator.Next", Failure, InvalidHandle)}, false
	}

	for {
		if !it.haveCur || it.cur > it.runLast {
			if it.runIdx >= len(it.runs) {
				return RangeBlock{}, false
			}
			run := it.runs[it.runIdx]
			it.runIdx++
			it.cur = run.First
			it.runLast = run.Last
			it.haveCur = true
		}

		cur := it.cur
		t := cur.Type()

		// Boundary policy (spec.md §4.5): handles belonging to the set
		// subsystem (or anything beyond the closed type enum) are never
		// valid starting points for a live-entity walk.
		if t >= EntitySet {
			end := minHandle(it.runLast, typeMaxHandle(t))
			it.cur = end + 1
			return RangeBlock{First: cur, Last: end, Err: newErr("Next", TypeOutOfRange, cur)}, true
		}

		tmax := typeMaxHandle(t)

		seq, err := it.mgr.Find(cur)
		if err != nil {
			end := minHandle(it.runLast, tmax)
			if next, ok := it.mgr.nextSequenceAfter(t, cur); ok {
				end = minHandle(end, next.start-1)
			}
			it.cur = end + 1
			return RangeBlock{First: cur, Last: end, Err: newErr("Next", EntityNotFound, cur)}, true
		}

		idx := seq.indexOf(cur)
		if !seq.IsLive(idx) {
			endIdx := seq.free.nextClear(idx, seq.used) - 1
			end := seq.start + Handle(endIdx)
			end = minHandle(end, minHandle(it.runLast, tmax))
			it.cur = end + 1
			return RangeBlock{Sequence: seq, First: cur, Last: end, Err: newErr("Next", EntityNotFound, cur)}, true
		}

		endIdx := seq.used - 1
		if nextFree := seq.free.nextSet(idx); nextFree != -1 && nextFree-1 < endIdx {
			endIdx = nextFree - 1
		}
		end := seq.start + Handle(endIdx)
		end = minHandle(end, minHandle(it.runLast, tmax))
		it.cur = end + 1
		return RangeBlock{Sequence: seq, First: cur, Last: end}, true
	}
}

// All returns a range-over-func iterator over every block, for callers
// that don't need early termination control finer than a `break`.
func (it *RangeSequenceIterator) All() func(yield func(RangeBlock) bool) {
	return func(yield func(RangeBlock) bool) {
		for {
			block, ok := it.Next()
			if !ok {
				return
			}
			if !yield(block) {
				return
			}
		}
	}
}
