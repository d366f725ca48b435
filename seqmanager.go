package meshdb

import (
	"fmt"
	"log/slog"
	"sort"
)

// sequenceManager owns a per-type ordered list of sequences and is the
// sole authority on handle liveness (spec.md §4.4). It is the direct
// analog of the teacher's archetypeRegistry (world.go: maskToArcIndex +
// archetypes slice) — both map a discriminator (component mask there,
// entity type here) to the storage blocks for that discriminator — but
// here the per-type list must stay sorted by start handle, because C5
// (rangeiter.go) needs ordered lookup by handle, not by a hash key.
type sequenceManager struct {
	byType     [MaxType + 1][]*sequence
	nextID     [MaxType + 1]uint64
	generation uint64

	// growthFloor and initialCapacity are NewDatabase's
	// WithGrowthFloor/WithInitialEntityCapacity knobs (SPEC_FULL.md §9),
	// applied to every sequence this manager creates. Zero-value
	// initialCapacity means "no pre-sizing hint."
	growthFloor     int
	initialCapacity int
	log             *slog.Logger
}

func newSequenceManager() *sequenceManager {
	m := &sequenceManager{growthFloor: defaultGrowthFloor, log: discardLog}
	for t := range m.nextID {
		m.nextID[t] = 1
	}
	return m
}

// Generation returns the manager's mutation counter. The range/sequence
// iterator (rangeiter.go) captures this at creation and is not safe to
// step again once it changes, per spec.md §5's "monotonically-increasing
// generation counter checked on each step" — grounded on the teacher's
// world.mutationVersion / archetypeRegistry.archetypeVersion counters,
// which exist for the same reason (detect structural changes that would
// invalidate cached indices).
func (m *sequenceManager) Generation() uint64 { return m.generation }

// EntityMap returns the (read-only) list of sequences for t, sorted by
// start handle.
func (m *sequenceManager) EntityMap(t EntityType) []*sequence {
	if t > MaxType {
		return nil
	}
	return m.byType[t]
}

// Find returns the unique sequence containing h, or EntityNotFound.
func (m *sequenceManager) Find(h Handle) (*sequence, error) {
	t := h.Type()
	if t > MaxType {
		return nil, newErr("Find", TypeOutOfRange, h)
	}
	list := m.byType[t]
	i := sort.Search(len(list), func(i int) bool { return list[i].start > h }) - 1
	if i < 0 || !list[i].Contains(h) {
		return nil, newErr("Find", EntityNotFound, h)
	}
	return list[i], nil
}

// nextSequenceAfter returns the sequence of type t with the smallest
// start handle strictly greater than h, if any. Used by the range/
// sequence iterator to bound a "no sequence here" hole precisely instead
// of running it to the end of the input range.
func (m *sequenceManager) nextSequenceAfter(t EntityType, h Handle) (*sequence, bool) {
	list := m.byType[t]
	i := sort.Search(len(list), func(i int) bool { return list[i].start > h })
	if i < len(list) {
		return list[i], true
	}
	return nil, false
}

// newPayloadForType builds the backing storage for a freshly created
// sequence of type t. nodesPer is the element's fixed node count, or 0
// for variable-arity element types; it is ignored for Vertex/EntitySet.
func newPayloadForType(t EntityType, nodesPer int) payload {
	switch t {
	case Vertex:
		return newVertexPayload()
	case EntitySet:
		return newSetPayload()
	default:
		return newElementPayload(nodesPer)
	}
}

// overlaps reports whether [start, start+count) would collide with any
// existing sequence of type t.
func (m *sequenceManager) overlaps(t EntityType, start uint64, count int) bool {
	end := start + uint64(count) - 1
	for _, s := range m.byType[t] {
		sStart := s.start.ID()
		sEnd := sStart + uint64(s.used) - 1
		if start <= sEnd && end >= sStart {
			return true
		}
	}
	return false
}

// Allocate reserves count fresh handles of type t (spec.md §4.4). With no
// hint, ids are assigned monotonically, extending the existing sequence
// at the type's high-water mark if one is adjacent, or starting a new
// sequence otherwise. With a hint, the caller (typically a file reader
// preserving ids) picks the starting id directly; Allocate fails rather
// than silently colliding with a live sequence.
func (m *sequenceManager) Allocate(t EntityType, count int, hintStart *uint64, nodesPer int) (Handle, *sequence, error) {
	if t > MaxType {
		return InvalidHandle, nil, newErr("Allocate", TypeOutOfRange, InvalidHandle)
	}
	if count <= 0 {
		return InvalidHandle, nil, newErr("Allocate", InvalidSize, InvalidHandle)
	}

	var startID uint64
	if hintStart != nil {
		startID = *hintStart
		if startID == 0 {
			return InvalidHandle, nil, newErr("Allocate", IndexOutOfRange, InvalidHandle)
		}
		if m.overlaps(t, startID, count) {
			cause := fmt.Errorf("hinted range [%d, %d) overlaps an existing %s sequence", startID, startID+uint64(count), t)
			return InvalidHandle, nil, wrapErr("Allocate", Failure, InvalidHandle, cause)
		}
	} else {
		startID = m.nextID[t]
		if list := m.byType[t]; len(list) > 0 {
			last := list[len(list)-1]
			_, lastIsStructured := last.data.(*structuredVertexPayload)
			if !lastIsStructured && last.start.ID()+uint64(last.used) == startID {
				if startID+uint64(count)-1 > handleIDMask {
					return InvalidHandle, nil, newErr("Allocate", IndexOutOfRange, InvalidHandle)
				}
				last.AllocateN(count)
				m.nextID[t] = startID + uint64(count)
				m.generation++
				first, _ := EncodeHandle(t, startID)
				return first, last, nil
			}
		}
	}

	if startID+uint64(count)-1 > handleIDMask {
		return InvalidHandle, nil, newErr("Allocate", IndexOutOfRange, InvalidHandle)
	}

	startHandle, err := EncodeHandle(t, startID)
	if err != nil {
		return InvalidHandle, nil, err
	}
	seq := newSequence(t, startHandle, newPayloadForType(t, nodesPer))
	seq.growthFloor = m.growthFloor
	seq.log = m.log
	if m.initialCapacity > count {
		seq.ensureCapacity(m.initialCapacity)
	}
	seq.AllocateN(count)

	list := m.byType[t]
	i := sort.Search(len(list), func(i int) bool { return list[i].start > startHandle })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = seq
	m.byType[t] = list

	if startID+uint64(count) > m.nextID[t] {
		m.nextID[t] = startID + uint64(count)
	}
	m.generation++
	return startHandle, seq, nil
}

// AllocateStructuredVertexGrid creates one new Vertex sequence covering
// every point of a structured (i,j,k) grid, backed by
// structuredVertexPayload instead of per-vertex coordinate arrays
// (grounded on original_source/ScdVertexSeq.cpp). Unlike Allocate, the
// grid is fully populated at creation and is never extended afterward —
// ScdVertexSeq.cpp's get_unused_handle() asserts false for the same
// reason.
func (m *sequenceManager) AllocateStructuredVertexGrid(imin, jmin, kmin, imax, jmax, kmax int) (Handle, *sequence, error) {
	if imax < imin || jmax < jmin || kmax < kmin {
		return InvalidHandle, nil, newErr("AllocateStructuredVertexGrid", InvalidSize, InvalidHandle)
	}
	count := (imax - imin + 1) * (jmax - jmin + 1) * (kmax - kmin + 1)
	startID := m.nextID[Vertex]
	if startID+uint64(count)-1 > handleIDMask {
		return InvalidHandle, nil, newErr("AllocateStructuredVertexGrid", IndexOutOfRange, InvalidHandle)
	}
	startHandle, err := EncodeHandle(Vertex, startID)
	if err != nil {
		return InvalidHandle, nil, err
	}

	seq := newSequence(Vertex, startHandle, newStructuredVertexPayload(imin, jmin, kmin, imax, jmax, kmax))
	seq.growthFloor = m.growthFloor
	seq.log = m.log
	seq.allocated = count
	seq.used = count
	seq.live = count
	seq.free = seq.free.ensure(count)

	list := m.byType[Vertex]
	i := sort.Search(len(list), func(i int) bool { return list[i].start > startHandle })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = seq
	m.byType[Vertex] = list

	m.nextID[Vertex] = startID + uint64(count)
	m.generation++
	return startHandle, seq, nil
}

// Release frees h's slot in its owning sequence, dropping the sequence
// entirely once it has no live entities left (spec.md §4.4).
func (m *sequenceManager) Release(h Handle) error {
	seq, err := m.Find(h)
	if err != nil {
		return err
	}
	idx := seq.indexOf(h)
	if !seq.IsLive(idx) {
		return newErr("Release", EntityNotFound, h)
	}
	seq.Release(idx)
	m.generation++
	if seq.LiveCount() == 0 {
		m.dropSequence(h.Type(), seq)
	}
	return nil
}

func (m *sequenceManager) dropSequence(t EntityType, seq *sequence) {
	list := m.byType[t]
	for i, s := range list {
		if s == seq {
			m.byType[t] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
