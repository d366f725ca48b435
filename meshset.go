package meshdb

import "github.com/kamstrup/intmap"

// SetFlag is the 32-bit option bitset a meshset is created with
// (spec.md §3/§4.7).
type SetFlag uint32

const (
	SetFlagSet        SetFlag = 1 << 0
	SetFlagOrdered    SetFlag = 1 << 1
	SetFlagTrackOwner SetFlag = 1 << 2
)

// MatchMode selects how a meshset query combines its filters
// (spec.md §4.7/§4.8).
type MatchMode int

const (
	Union MatchMode = iota
	Intersect
)

// meshsetRecord is the per-slot payload for an EntitySet sequence
// (spec.md §3). SET-flagged sets store their content as a *Range (sorted,
// deduplicated, range-compressed — C2 already gives this for free);
// ORDERED-flagged sets store a plain slice that preserves insertion
// order and duplicates. Each method picks the representation by testing
// the SetFlagSet bit of flags.
type meshsetRecord struct {
	flags      SetFlag
	compressed *Range   // used when flags&SetFlagSet != 0
	ordered    []Handle // used when flags&SetFlagSet == 0 (ORDERED)
	parents    []Handle
	children   []Handle
}

func newMeshsetRecord(flags SetFlag) *meshsetRecord {
	r := &meshsetRecord{flags: flags}
	if flags&SetFlagSet != 0 {
		r.compressed = NewRange()
	}
	return r
}

func insertSortedUnique(s []Handle, h Handle) []Handle {
	i := 0
	for i < len(s) && s[i] < h {
		i++
	}
	if i < len(s) && s[i] == h {
		return s
	}
	s = append(s, InvalidHandle)
	copy(s[i+1:], s[i:])
	s[i] = h
	return s
}

func removeFromSorted(s []Handle, h Handle) []Handle {
	for i, v := range s {
		if v == h {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// contents returns the record's members as a flat, ascending-where-SET
// slice.
func (r *meshsetRecord) contents() []Handle {
	if r.flags&SetFlagSet != 0 {
		return r.compressed.ToSlice()
	}
	return r.ordered
}

func (r *meshsetRecord) add(handles []Handle) {
	if r.flags&SetFlagSet != 0 {
		for _, h := range handles {
			r.compressed.Insert(h)
		}
		return
	}
	r.ordered = append(r.ordered, handles...)
}

func (r *meshsetRecord) remove(handles []Handle) {
	if r.flags&SetFlagSet != 0 {
		for _, h := range handles {
			r.compressed.Erase(h)
		}
		return
	}
	for _, h := range handles {
		out := r.ordered[:0]
		for _, v := range r.ordered {
			if v != h {
				out = append(out, v)
			}
		}
		r.ordered = out
	}
}

func (r *meshsetRecord) contains(h Handle) bool {
	if r.flags&SetFlagSet != 0 {
		return r.compressed.Contains(h)
	}
	for _, v := range r.ordered {
		if v == h {
			return true
		}
	}
	return false
}

// MeshsetStore is the meshset subsystem (spec.md §4.7, component C7).
// Sets are themselves EntitySet-typed entities, so it shares the
// sequenceManager with regular entities (spec.md "sets are themselves
// entities of type EntitySet with their own sequence"). Apart from Create
// allocating each set's own EntitySet slot, it never mutates C3/C4 state
// itself; entity deletion goes through Database.
//
// TRACK_OWNER back-references (spec.md §4.7, §9 "cyclic data
// structures... model as... a reserved sparse tag") are kept as a
// dedicated handle -> []Handle map rather than boxed through TagStore's
// opaque []byte contract: the set of owning sets is a first-class Go
// slice here, not a serialized blob, which is the one place this store
// diverges from "route everything through a reserved tag" in favor of
// type safety. It is wired to kamstrup/intmap for the same reason
// tagstore.go's sparseTagStorage is — a handle-keyed hash map that is
// mostly empty, since most entities belong to no TRACK_OWNER set.
type MeshsetStore struct {
	mgr    *sequenceManager
	owners *intmap.Map[Handle, []Handle]
}

func newMeshsetStore(mgr *sequenceManager) *MeshsetStore {
	return &MeshsetStore{mgr: mgr, owners: intmap.New[Handle, []Handle](64)}
}

func (ms *MeshsetStore) lookup(op string, h Handle) (*sequence, int, *meshsetRecord, error) {
	if h.Type() != EntitySet {
		return nil, 0, nil, newErr(op, TypeOutOfRange, h)
	}
	seq, err := ms.mgr.Find(h)
	if err != nil {
		return nil, 0, nil, err
	}
	idx := seq.indexOf(h)
	if !seq.IsLive(idx) {
		return nil, 0, nil, newErr(op, EntityNotFound, h)
	}
	return ms.recordAt(op, seq, idx, h)
}

// recordRaw fetches h's own meshset record regardless of whether h's slot
// is still live. onEntityDeleted needs this for the entity being deleted
// itself, since the caller may already have released h's slot while the
// record's parent/child links still need tearing down on both sides.
// sequenceManager.Release flips the free bit without clearing the
// payload, so the record stays readable, except when that release freed
// the sequence's last live slot: the sequence is then dropped and
// recordRaw fails with EntityNotFound.
func (ms *MeshsetStore) recordRaw(op string, h Handle) (*sequence, int, *meshsetRecord, error) {
	if h.Type() != EntitySet {
		return nil, 0, nil, newErr(op, TypeOutOfRange, h)
	}
	seq, err := ms.mgr.Find(h)
	if err != nil {
		return nil, 0, nil, err
	}
	return ms.recordAt(op, seq, seq.indexOf(h), h)
}

func (ms *MeshsetStore) recordAt(op string, seq *sequence, idx int, h Handle) (*sequence, int, *meshsetRecord, error) {
	sp, ok := seq.data.(*setPayload)
	if !ok {
		return nil, 0, nil, newErr(op, Failure, h)
	}
	rec := sp.sets[idx]
	if rec == nil {
		return nil, 0, nil, newErr(op, EntityNotFound, h)
	}
	return seq, idx, rec, nil
}

// Create allocates a new meshset with the given option flags.
func (ms *MeshsetStore) Create(flags SetFlag) (Handle, error) {
	h, seq, err := ms.mgr.Allocate(EntitySet, 1, nil, 0)
	if err != nil {
		return InvalidHandle, err
	}
	sp := seq.data.(*setPayload)
	sp.sets[seq.indexOf(h)] = newMeshsetRecord(flags)
	return h, nil
}

// Add inserts handles into set, applying TRACK_OWNER back-references if
// the set was created with that flag.
func (ms *MeshsetStore) Add(set Handle, handles []Handle) error {
	_, _, rec, err := ms.lookup("Meshset.Add", set)
	if err != nil {
		return err
	}
	rec.add(handles)
	if rec.flags&SetFlagTrackOwner != 0 {
		for _, h := range handles {
			owners, _ := ms.owners.Get(h)
			ms.owners.Put(h, insertSortedUnique(owners, set))
		}
	}
	return nil
}

// Remove deletes handles from set, updating back-references to match.
// For an ORDERED set every occurrence of each handle is removed, so a
// handle that was already present before a duplicating Add is gone after
// the matching Remove.
func (ms *MeshsetStore) Remove(set Handle, handles []Handle) error {
	_, _, rec, err := ms.lookup("Meshset.Remove", set)
	if err != nil {
		return err
	}
	rec.remove(handles)
	if rec.flags&SetFlagTrackOwner != 0 {
		for _, h := range handles {
			if rec.contains(h) {
				continue // still a member; keep its back-reference
			}
			if owners, ok := ms.owners.Get(h); ok {
				owners = removeFromSorted(owners, set)
				if len(owners) == 0 {
					ms.owners.Del(h)
				} else {
					ms.owners.Put(h, owners)
				}
			}
		}
	}
	return nil
}

// Contents returns set's members.
func (ms *MeshsetStore) Contents(set Handle) ([]Handle, error) {
	_, _, rec, err := ms.lookup("Meshset.Contents", set)
	if err != nil {
		return nil, err
	}
	return rec.contents(), nil
}

// ContentsRange returns a SET-flagged set's content as a Range directly,
// avoiding the enumerate-then-recompress round trip Contents() would
// otherwise force on a caller that wants the compressed form.
func (ms *MeshsetStore) ContentsRange(set Handle) (*Range, error) {
	_, _, rec, err := ms.lookup("Meshset.ContentsRange", set)
	if err != nil {
		return nil, err
	}
	if rec.flags&SetFlagSet == 0 {
		return nil, newErr("Meshset.ContentsRange", UnsupportedOperation, set)
	}
	return rec.compressed.Clone(), nil
}

// Owners returns the sets that own h via TRACK_OWNER.
func (ms *MeshsetStore) Owners(h Handle) []Handle {
	owners, _ := ms.owners.Get(h)
	return owners
}

// AddParentChild links parent and child symmetrically (spec.md §4.7).
func (ms *MeshsetStore) AddParentChild(parent, child Handle) error {
	_, _, parentRec, err := ms.lookup("Meshset.AddParentChild", parent)
	if err != nil {
		return err
	}
	_, _, childRec, err := ms.lookup("Meshset.AddParentChild", child)
	if err != nil {
		return err
	}
	parentRec.children = insertSortedUnique(parentRec.children, child)
	childRec.parents = insertSortedUnique(childRec.parents, parent)
	return nil
}

// Parents returns set's parent sets.
func (ms *MeshsetStore) Parents(set Handle) ([]Handle, error) {
	_, _, rec, err := ms.lookup("Meshset.Parents", set)
	if err != nil {
		return nil, err
	}
	return rec.parents, nil
}

// Children returns set's child sets.
func (ms *MeshsetStore) Children(set Handle) ([]Handle, error) {
	_, _, rec, err := ms.lookup("Meshset.Children", set)
	if err != nil {
		return nil, err
	}
	return rec.children, nil
}

// GetEntitiesByType filters set's contents to a single entity type.
func (ms *MeshsetStore) GetEntitiesByType(set Handle, t EntityType) ([]Handle, error) {
	contents, err := ms.Contents(set)
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(contents))
	for _, h := range contents {
		if h.Type() == t {
			out = append(out, h)
		}
	}
	return out, nil
}

// GetEntitiesByDimension filters set's contents to entities of topological
// dimension d.
func (ms *MeshsetStore) GetEntitiesByDimension(set Handle, d int) ([]Handle, error) {
	contents, err := ms.Contents(set)
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(contents))
	for _, h := range contents {
		if h.Type().Dimension() == d {
			out = append(out, h)
		}
	}
	return out, nil
}

// GetEntitiesByTypeAndTag filters set's contents by entity type and a tag
// value comparison, combined via match.
func (ms *MeshsetStore) GetEntitiesByTypeAndTag(set Handle, t EntityType, tags *TagStore, tag TagHandle, value []byte, match MatchMode) ([]Handle, error) {
	contents, err := ms.Contents(set)
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(contents))
	for _, h := range contents {
		typeMatch := h.Type() == t
		v, _ := tags.Get(tag, h)
		tagMatch := bytesEqual(v, value)
		hit := typeMatch && tagMatch
		if match == Union {
			hit = typeMatch || tagMatch
		}
		if hit {
			out = append(out, h)
		}
	}
	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// onEntityDeleted removes h from the structures it may participate in:
// if h is itself a set, its parent/child links are torn down on both
// sides; if h carries TRACK_OWNER back-references, it is removed from
// every owning set's content (spec.md §4.7 TRACK_OWNER, scenario 5/6).
func (ms *MeshsetStore) onEntityDeleted(h Handle) {
	if owners, ok := ms.owners.Get(h); ok {
		for _, owner := range owners {
			if _, _, rec, err := ms.lookup("onEntityDeleted", owner); err == nil {
				rec.remove([]Handle{h})
			}
		}
		ms.owners.Del(h)
	}
	if h.Type() != EntitySet {
		return
	}
	if _, _, rec, err := ms.recordRaw("onEntityDeleted", h); err == nil {
		for _, child := range rec.children {
			if _, _, childRec, err := ms.lookup("onEntityDeleted", child); err == nil {
				childRec.parents = removeFromSorted(childRec.parents, h)
			}
		}
		for _, parent := range rec.parents {
			if _, _, parentRec, err := ms.lookup("onEntityDeleted", parent); err == nil {
				parentRec.children = removeFromSorted(parentRec.children, h)
			}
		}
	}
}
