package meshdb

import (
	"io"
	"log/slog"
)

// payload is the type-specific backing storage a sequence owns (spec.md
// §3/§4.3): coordinate arrays for vertices, a connectivity matrix for
// elements, or meshset records for entity sets. This is the "tagged
// variants discriminated by the owning type enum" design note (spec.md
// §9) — the teacher's equivalent axis of variation is compSpec/archetype
// component storage (world.go), but there every variant is the same
// reflect-driven byte-slice shape; here the three payload kinds have
// genuinely different field layouts; so instead of one bundled component
// array per field, each gets its own kind.
type payload interface {
	// grow extends the payload's backing storage to hold at least n slots.
	grow(n int)
}

// vertexPayload backs Vertex sequences: three parallel coordinate arrays.
type vertexPayload struct {
	X, Y, Z []float64
}

func newVertexPayload() *vertexPayload { return &vertexPayload{} }

func (p *vertexPayload) grow(n int) {
	p.X = growToLen(p.X, n)
	p.Y = growToLen(p.Y, n)
	p.Z = growToLen(p.Z, n)
}

// structuredVertexPayload backs a structured (i,j,k) grid of vertices:
// coordinates are derived from the grid's origin and index strides
// instead of stored per-vertex, since a structured grid's geometry is
// fully determined by its bounding box. Dropped by the distilled spec
// but not excluded by it; grounded on original_source/ScdVertexSeq.cpp's
// vertexParams/dIJK fields. Like its original, the grid is fixed at
// creation: grow is a no-op because ScdVertexSeq::get_unused_handle
// asserts false — a structured sequence never gains vertices after
// construction.
type structuredVertexPayload struct {
	imin, jmin, kmin int
	di, dj           int // grid extents along i and j, used to decompose a flat index
}

func newStructuredVertexPayload(imin, jmin, kmin, imax, jmax, kmax int) *structuredVertexPayload {
	return &structuredVertexPayload{
		imin: imin, jmin: jmin, kmin: kmin,
		di: imax - imin + 1,
		dj: jmax - jmin + 1,
	}
}

func (p *structuredVertexPayload) grow(int) {}

// Coord returns the (x, y, z) grid coordinates for slot index.
func (p *structuredVertexPayload) Coord(index int) (x, y, z float64) {
	i := index % p.di
	j := (index / p.di) % p.dj
	k := index / (p.di * p.dj)
	return float64(p.imin + i), float64(p.jmin + j), float64(p.kmin + k)
}

// elementPayload backs element sequences (Edge..Polyhedron): a
// connectivity matrix stored row-major as a flat Handle slice, nodesPer
// entries per row. nodesPer is 0 for variable-arity types (Polygon,
// Polyhedron); those sequences store per-row arity alongside the flat
// data via rowStarts.
type elementPayload struct {
	nodesPer  int
	conn      []Handle
	rowStarts []int // only used when nodesPer == 0 (variable arity)
	rows      int   // number of rows actually written; only meaningful when nodesPer == 0
}

func newElementPayload(nodesPer int) *elementPayload {
	return &elementPayload{nodesPer: nodesPer}
}

func (p *elementPayload) grow(n int) {
	if p.nodesPer > 0 {
		p.conn = growToLen(p.conn, n*p.nodesPer)
		return
	}
	p.rowStarts = growToLen(p.rowStarts, n)
}

// row returns the connectivity slice for slot index. For variable-arity
// payloads, index must already have been written via setRow.
func (p *elementPayload) row(index int) []Handle {
	if p.nodesPer > 0 {
		lo := index * p.nodesPer
		return p.conn[lo : lo+p.nodesPer]
	}
	lo := p.rowStarts[index]
	hi := len(p.conn)
	if index+1 < p.rows {
		hi = p.rowStarts[index+1]
	}
	return p.conn[lo:hi]
}

// setRow sets the connectivity for a fixed-arity element row.
func (p *elementPayload) setRow(index int, conn []Handle) {
	if p.nodesPer > 0 {
		copy(p.row(index), conn)
		return
	}
	// Variable-arity: append at the tail and record the row start. Only
	// valid the first time a row is set, matching how file loaders and
	// create_element populate a polygon/polyhedron sequence once, in
	// increasing index order.
	p.rowStarts[index] = len(p.conn)
	p.conn = append(p.conn, conn...)
	if index+1 > p.rows {
		p.rows = index + 1
	}
}

// setPayload backs EntitySet sequences: one meshset record per slot.
type setPayload struct {
	sets []*meshsetRecord
}

func newSetPayload() *setPayload { return &setPayload{} }

func (p *setPayload) grow(n int) {
	p.sets = growToLen(p.sets, n)
}

// sequence is a maximal contiguous block of handles of one type, backed
// by one payload allocation (spec.md §3/§4.3). It is the direct analog of
// the teacher's archetype (world.go): both are "storage for a uniform
// kind, indexed 0..n, with a free list and doubling growth." The
// differences are in the deletion policy (spec.md §3 Lifecycles: freed
// slots are never reused, so there is no swap-remove-last compaction) and
// in the fact that a sequence holds exactly one kind, never a dynamic
// combination.
// defaultGrowthFloor is the spec's baseline doubling floor (spec.md
// §4.3); NewDatabase(WithGrowthFloor(n)) overrides it per sequenceManager
// (SPEC_FULL.md §9).
const defaultGrowthFloor = 4096

type sequence struct {
	typ         EntityType
	start       Handle
	allocated   int // capacity of backing storage
	used        int // highwater mark: slots [0, used) have been handed out at least once
	live        int // currently-live count (used minus freed)
	free        bitset
	data        payload
	growthFloor int
	log         *slog.Logger
}

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSequence(t EntityType, start Handle, p payload) *sequence {
	return &sequence{typ: t, start: start, data: p, growthFloor: defaultGrowthFloor, log: discardLog}
}

// StartHandle returns the sequence's first handle.
func (s *sequence) StartHandle() Handle { return s.start }

// EndHandle returns the sequence's last ever-allocated handle, or
// InvalidHandle if nothing has been allocated yet.
func (s *sequence) EndHandle() Handle {
	if s.used == 0 {
		return InvalidHandle
	}
	return s.start + Handle(s.used-1)
}

// NumberAllocated returns the highwater slot count (spec.md §4.3).
func (s *sequence) NumberAllocated() int { return s.used }

// LiveCount returns the number of currently-live slots.
func (s *sequence) LiveCount() int { return s.live }

// indexOf returns the slot index for h, assuming h falls within
// [start, start+used).
func (s *sequence) indexOf(h Handle) int { return int(h - s.start) }

// Contains reports whether h falls within this sequence's allocated
// range, independent of liveness.
func (s *sequence) Contains(h Handle) bool {
	if h.Type() != s.typ || h < s.start {
		return false
	}
	return s.indexOf(h) < s.used
}

// IsLive reports whether slot index holds a live entity.
func (s *sequence) IsLive(index int) bool {
	return index >= 0 && index < s.used && !s.free.test(index)
}

// IsLiveHandle reports whether h is currently live in this sequence.
func (s *sequence) IsLiveHandle(h Handle) bool {
	if !s.Contains(h) {
		return false
	}
	return s.IsLive(s.indexOf(h))
}

// GetNextFreeIndex returns the next free (deleted) slot index strictly
// greater than prev, or -1 if none exists within [0, used) (spec.md
// §4.3). This is what lets the range/sequence iterator (rangeiter.go)
// skip over holes left by deletion without scanning one handle at a time.
func (s *sequence) GetNextFreeIndex(prev int) int {
	idx := s.free.nextSet(prev)
	if idx >= s.used {
		return -1
	}
	return idx
}

// ensureCapacity grows the backing storage to at least n slots, doubling
// with a floor of s.growthFloor (spec.md §4.3, default 4096; configurable
// per-database via WithGrowthFloor, SPEC_FULL.md §9), grounded on
// World.expand in the teacher's world.go.
func (s *sequence) ensureCapacity(n int) {
	if n <= s.allocated {
		return
	}
	newCap := max(2*s.allocated, n)
	newCap = max(newCap, s.allocated+s.growthFloor)
	s.log.Debug("growing sequence", "type", s.typ, "start", s.start, "from", s.allocated, "to", newCap)
	s.data.grow(newCap)
	s.free = s.free.ensure(newCap)
	s.allocated = newCap
}

// AllocateN hands out count fresh tail slots, growing storage as needed.
// It never reuses a freed slot (spec.md §3 Lifecycles). Returns the index
// of the first new slot.
func (s *sequence) AllocateN(count int) int {
	first := s.used
	s.ensureCapacity(s.used + count)
	s.used += count
	s.live += count
	return first
}

// Release marks index as freed. The caller (sequenceManager) is
// responsible for deciding whether the sequence as a whole should be
// dropped once LiveCount reaches zero.
func (s *sequence) Release(index int) {
	if !s.IsLive(index) {
		return
	}
	s.free.set(index)
	s.live--
}
