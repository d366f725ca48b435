package meshdb

import (
	"log/slog"
	"sort"

	"github.com/kamstrup/intmap"
)

// Well-known reserved tag names (spec.md §6). The core treats them as
// ordinary tags; NewDatabase only reserves the names by pre-registering
// them so a later CreateTag("GLOBAL_ID", ...) reliably fails with
// TagAlreadyAllocated instead of silently shadowing the reserved one.
const (
	TagGlobalID          = "GLOBAL_ID"
	TagGeomDimension     = "GEOM_DIMENSION"
	TagMaterialSet       = "MATERIAL_SET"
	TagDirichletSet      = "DIRICHLET_SET"
	TagNeumannSet        = "NEUMANN_SET"
	TagCategory          = "CATEGORY"
	TagParallelPartition = "PARALLEL_PARTITION"
)

// Database is the facade (spec.md §4.8, component C8): the single entry
// point every external collaborator uses. It owns a sequenceManager, a
// TagStore, and a MeshsetStore, wiring them together exactly as §2's
// control-flow paragraph describes — creation routes through the
// sequence manager, bulk queries go through Range, tags never mutate
// C3/C4 directly, and meshsets do so only to allocate their own
// EntitySet slots (MeshsetStore.Create). Deletion goes through Database,
// which tells MeshsetStore to react (onEntityDeleted) before releasing
// the slot.
//
// Grounded on the teacher's World (world.go/world_api.go): both are
// "the one struct an external caller holds," both hide their registries
// behind methods rather than exposing them, and both pick the growth/
// capacity policy for everything underneath.
type Database struct {
	mgr  *sequenceManager
	tags *TagStore
	sets *MeshsetStore
	log  *slog.Logger

	adjacency      *intmap.Map[Handle, []Handle]
	adjacencyBuilt bool
}

// NewDatabase constructs an empty database and pre-registers the
// well-known tag names (spec.md §6).
func NewDatabase(opts ...Option) *Database {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	mgr := newSequenceManager()
	mgr.growthFloor = o.growthFloor
	mgr.initialCapacity = o.initialEntityCapacity
	mgr.log = o.log
	tags := newTagStore(mgr)
	tags.reg.log = o.log
	tags.reg.reserveCapacity(o.initialTagCapacity)
	db := &Database{
		mgr:       mgr,
		tags:      tags,
		sets:      newMeshsetStore(mgr),
		log:       o.log,
		adjacency: intmap.New[Handle, []Handle](256),
	}
	db.registerWellKnownTags()
	return db
}

func (db *Database) registerWellKnownTags() {
	must := func(name string, class TagClass, size int) {
		if _, err := db.tags.CreateTag(name, class, size, nil); err != nil {
			db.log.Warn("well-known tag already registered", "name", name)
		}
	}
	must(TagGlobalID, Dense, 8)
	must(TagGeomDimension, Sparse, 4)
	must(TagMaterialSet, Sparse, 8)
	must(TagDirichletSet, Sparse, 8)
	must(TagNeumannSet, Sparse, 8)
	must(TagCategory, Dense, 32)
	must(TagParallelPartition, Sparse, 4)
}

// Tags exposes the tag subsystem (C6) for callers that want the full
// CreateTag/Get/Set/Iterate surface directly.
func (db *Database) Tags() *TagStore { return db.tags }

// Sets exposes the meshset subsystem (C7) directly.
func (db *Database) Sets() *MeshsetStore { return db.sets }

// TagNames lists every registered tag, including the well-known ones.
func (db *Database) TagNames() []string { return db.tags.TagNames() }

// Tag resolves a tag by name.
func (db *Database) Tag(name string) (TagHandle, error) { return db.tags.GetTagHandle(name) }

// CreateVertex allocates a new vertex at (x, y, z).
func (db *Database) CreateVertex(x, y, z float64) (Handle, error) {
	h, seq, err := db.mgr.Allocate(Vertex, 1, nil, 0)
	if err != nil {
		return InvalidHandle, err
	}
	vp := seq.data.(*vertexPayload)
	idx := seq.indexOf(h)
	vp.X[idx], vp.Y[idx], vp.Z[idx] = x, y, z
	return h, nil
}

// CreateStructuredVertexGrid allocates a full structured (i,j,k) grid of
// vertices in one call, returning the handle of its first (imin,jmin,kmin)
// corner. Grid vertices store only the grid's bounding box rather than
// per-vertex coordinates (see structuredVertexPayload); the grid cannot
// be extended with further CreateVertex calls once created.
func (db *Database) CreateStructuredVertexGrid(imin, jmin, kmin, imax, jmax, kmax int) (Handle, error) {
	h, _, err := db.mgr.AllocateStructuredVertexGrid(imin, jmin, kmin, imax, jmax, kmax)
	if err != nil {
		return InvalidHandle, err
	}
	return h, nil
}

// GetVertexCoords returns h's (x, y, z) coordinates, whether h belongs to
// a plain vertex sequence or a structured vertex grid.
func (db *Database) GetVertexCoords(h Handle) (x, y, z float64, err error) {
	seq, idx, err := db.findLive("GetVertexCoords", h)
	if err != nil {
		return 0, 0, 0, err
	}
	switch p := seq.data.(type) {
	case *vertexPayload:
		return p.X[idx], p.Y[idx], p.Z[idx], nil
	case *structuredVertexPayload:
		x, y, z := p.Coord(idx)
		return x, y, z, nil
	default:
		return 0, 0, 0, newErr("GetVertexCoords", TypeOutOfRange, h)
	}
}

// CreateElement allocates a new element of type t with the given
// connectivity, which must match NodesPerElement for fixed-arity types.
func (db *Database) CreateElement(t EntityType, connectivity []Handle) (Handle, error) {
	if !t.IsElement() {
		return InvalidHandle, newErr("CreateElement", TypeOutOfRange, InvalidHandle)
	}
	nodesPer := t.NodesPerElement()
	if nodesPer > 0 && len(connectivity) != nodesPer {
		return InvalidHandle, newErr("CreateElement", InvalidSize, InvalidHandle)
	}
	if nodesPer == 0 && len(connectivity) == 0 {
		return InvalidHandle, newErr("CreateElement", InvalidSize, InvalidHandle)
	}
	h, seq, err := db.mgr.Allocate(t, 1, nil, nodesPer)
	if err != nil {
		return InvalidHandle, err
	}
	ep := seq.data.(*elementPayload)
	ep.setRow(seq.indexOf(h), connectivity)
	if db.adjacencyBuilt {
		db.indexConnectivity(h, connectivity)
	}
	return h, nil
}

func (db *Database) indexConnectivity(elem Handle, connectivity []Handle) {
	for _, v := range connectivity {
		refs, _ := db.adjacency.Get(v)
		db.adjacency.Put(v, insertSortedUnique(refs, elem))
	}
}

func (db *Database) deindexConnectivity(elem Handle, connectivity []Handle) {
	for _, v := range connectivity {
		if refs, ok := db.adjacency.Get(v); ok {
			refs = removeFromSorted(refs, elem)
			if len(refs) == 0 {
				db.adjacency.Del(v)
			} else {
				db.adjacency.Put(v, refs)
			}
		}
	}
}

// GetConnectivity returns the connectivity handles of an element.
func (db *Database) GetConnectivity(h Handle) ([]Handle, error) {
	seq, idx, err := db.findLive("GetConnectivity", h)
	if err != nil {
		return nil, err
	}
	ep, ok := seq.data.(*elementPayload)
	if !ok {
		return nil, newErr("GetConnectivity", TypeOutOfRange, h)
	}
	row := ep.row(idx)
	out := make([]Handle, len(row))
	copy(out, row)
	return out, nil
}

// SetConnectivity overwrites an element's connectivity. Only supported
// for fixed-arity element types (variable-arity types are set once at
// creation, per elementPayload.setRow).
func (db *Database) SetConnectivity(h Handle, connectivity []Handle) error {
	seq, idx, err := db.findLive("SetConnectivity", h)
	if err != nil {
		return err
	}
	ep, ok := seq.data.(*elementPayload)
	if !ok {
		return newErr("SetConnectivity", TypeOutOfRange, h)
	}
	if ep.nodesPer == 0 {
		return newErr("SetConnectivity", UnsupportedOperation, h)
	}
	if len(connectivity) != ep.nodesPer {
		return newErr("SetConnectivity", InvalidSize, h)
	}
	if db.adjacencyBuilt {
		db.deindexConnectivity(h, ep.row(idx))
	}
	ep.setRow(idx, connectivity)
	if db.adjacencyBuilt {
		db.indexConnectivity(h, connectivity)
	}
	return nil
}

func (db *Database) findLive(op string, h Handle) (*sequence, int, error) {
	seq, err := db.mgr.Find(h)
	if err != nil {
		return nil, 0, err
	}
	idx := seq.indexOf(h)
	if !seq.IsLive(idx) {
		return nil, 0, newErr(op, EntityNotFound, h)
	}
	return seq, idx, nil
}

// DeleteEntity deletes a single entity, notifying the meshset store so
// TRACK_OWNER back-references and parent/child links stay consistent.
func (db *Database) DeleteEntity(h Handle) error {
	if _, _, err := db.findLive("DeleteEntity", h); err != nil {
		return err
	}
	if h.Type().IsElement() {
		if seq, err := db.mgr.Find(h); err == nil {
			if ep, ok := seq.data.(*elementPayload); ok && db.adjacencyBuilt {
				db.deindexConnectivity(h, ep.row(seq.indexOf(h)))
			}
		}
	}
	db.sets.onEntityDeleted(h)
	return db.mgr.Release(h)
}

// DeleteEntities deletes handles in ascending order, stopping at the
// first failure (spec.md §5 ordering guarantees): earlier deletions are
// retained, and the error identifies the first handle that could not be
// deleted.
func (db *Database) DeleteEntities(handles []Handle) error {
	sorted := append([]Handle(nil), handles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, h := range sorted {
		if err := db.DeleteEntity(h); err != nil {
			return &BulkError{FirstFailure: h, Err: err}
		}
	}
	return nil
}

// DeleteEntitiesRange deletes every live handle in r, in ascending order,
// via the range/sequence iterator to skip holes without per-handle
// lookups.
func (db *Database) DeleteEntitiesRange(r *Range) error {
	// Collect the live blocks before deleting anything: every deletion
	// bumps the manager's generation, which ends a running iterator.
	var live []HandleRun
	it := NewRangeSequenceIterator(db.mgr, r)
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		if b.Err != nil || b.Sequence == nil {
			continue
		}
		live = append(live, HandleRun{b.First, b.Last})
	}
	for _, run := range live {
		for h := run.First; h <= run.Last; h++ {
			if err := db.DeleteEntity(h); err != nil {
				return &BulkError{FirstFailure: h, Err: err}
			}
		}
	}
	return nil
}

// BuildAdjacencyIndex scans every live element and records, for each
// vertex in its connectivity, which elements reference it. Subsequent
// CreateElement/SetConnectivity/DeleteEntity calls keep the index
// up to date incrementally (spec.md §4.8 "built on demand and updated on
// connectivity changes").
func (db *Database) BuildAdjacencyIndex() {
	if db.adjacencyBuilt {
		return
	}
	db.log.Debug("building adjacency index")
	indexed := 0
	for t := EntityType(0); t <= MaxType; t++ {
		if !t.IsElement() || t == Vertex {
			continue
		}
		for _, seq := range db.mgr.EntityMap(t) {
			ep, ok := seq.data.(*elementPayload)
			if !ok {
				continue
			}
			for idx := 0; idx < seq.used; idx++ {
				if !seq.IsLive(idx) {
					continue
				}
				h := seq.start + Handle(idx)
				db.indexConnectivity(h, ep.row(idx))
				indexed++
			}
		}
	}
	db.adjacencyBuilt = true
	db.log.Debug("adjacency index built", "elements", indexed)
}

// GetAdjacencies resolves the relation between sources and entities of
// targetDim (spec.md §4.8): lower dim than any source is answered via
// connectivity; equal dim returns the sources themselves; higher dim
// uses the adjacency index, building it first if createIfMissing. Only
// targetDim == 0 is supported as a "lower dim" query, since connectivity
// in this model always references vertices.
func (db *Database) GetAdjacencies(sources []Handle, targetDim int, createIfMissing bool, match MatchMode) ([]Handle, error) {
	var acc *Range
	for _, s := range sources {
		sourceDim := s.Type().Dimension()
		var part *Range
		switch {
		case targetDim == sourceDim:
			part = NewRange(s)
		case targetDim < sourceDim:
			if targetDim != 0 {
				return nil, newErr("GetAdjacencies", UnsupportedOperation, s)
			}
			conn, err := db.GetConnectivity(s)
			if err != nil {
				return nil, err
			}
			part = NewRange(conn...)
		default:
			if !db.adjacencyBuilt {
				if !createIfMissing {
					return nil, newErr("GetAdjacencies", EntityNotFound, s)
				}
				db.BuildAdjacencyIndex()
			}
			refs, _ := db.adjacency.Get(s)
			filtered := make([]Handle, 0, len(refs))
			for _, r := range refs {
				if r.Type().Dimension() == targetDim {
					filtered = append(filtered, r)
				}
			}
			part = NewRange(filtered...)
		}
		if acc == nil {
			acc = part
			continue
		}
		if match == Intersect {
			acc = acc.Intersect(part)
		} else {
			acc = acc.Union(part)
		}
	}
	if acc == nil {
		return nil, nil
	}
	return acc.ToSlice(), nil
}

// GlobalID returns the value of the reserved GLOBAL_ID tag for h.
func (db *Database) GlobalID(h Handle) (uint64, error) {
	tag, err := db.tags.GetTagHandle(TagGlobalID)
	if err != nil {
		return 0, err
	}
	v, err := db.tags.Get(tag, h)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, nil
	}
	return beUint64(v), nil
}

// SetGlobalID sets the reserved GLOBAL_ID tag for h.
func (db *Database) SetGlobalID(h Handle, id uint64) error {
	tag, err := db.tags.GetTagHandle(TagGlobalID)
	if err != nil {
		return err
	}
	return db.tags.Set(tag, h, beBytes(id))
}

func beBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
