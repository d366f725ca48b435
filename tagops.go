package meshdb

// TagStore is the tag subsystem (spec.md §4.6, component C6): typed,
// named, per-entity attributes layered over a sequenceManager without
// ever mutating it. It only reads sequences (for dense sizing and
// liveness checks), matching spec.md §2's "C6 consumes handles but never
// mutates C3/C4 state directly."
type TagStore struct {
	mgr *sequenceManager
	reg *tagRegistry
}

func newTagStore(mgr *sequenceManager) *TagStore {
	return &TagStore{mgr: mgr, reg: newTagRegistry()}
}

// CreateTag registers a new named tag. defaultVal may be nil, meaning
// the tag has no default (see Get). For MeshGlobal tags, defaultVal
// becomes the tag's initial value, or zero bytes when nil. Returns TagAlreadyAllocated (and the existing handle) if name
// is already registered.
func (ts *TagStore) CreateTag(name string, class TagClass, size int, defaultVal []byte) (TagHandle, error) {
	h, err := ts.reg.create(name, class, size, defaultVal)
	if err != nil {
		return h, err
	}
	if class == MeshGlobal {
		d, _ := ts.reg.get(h)
		if defaultVal != nil {
			d.meshGlobal = append([]byte(nil), defaultVal...)
		} else {
			d.meshGlobal = make([]byte, size)
		}
	}
	return h, nil
}

// GetTagHandle resolves a previously-created tag by name.
func (ts *TagStore) GetTagHandle(name string) (TagHandle, error) {
	return ts.reg.getHandle(name)
}

// DeleteTag removes a tag and releases its storage.
func (ts *TagStore) DeleteTag(h TagHandle) error {
	d, err := ts.reg.get(h)
	if err != nil {
		return err
	}
	return ts.reg.delete(d.handle)
}

// TagNames lists every registered tag.
func (ts *TagStore) TagNames() []string { return ts.reg.names() }

func (ts *TagStore) resolve(op string, h Handle) (*sequence, int, error) {
	seq, err := ts.mgr.Find(h)
	if err != nil {
		return nil, 0, err
	}
	idx := seq.indexOf(h)
	if !seq.IsLive(idx) {
		return nil, 0, newErr(op, EntityNotFound, h)
	}
	return seq, idx, nil
}

// Get returns the value of tag for h: the stored bytes if set, otherwise
// the tag's registered default, or TagNotFound if no default was
// registered at CreateTag time. For Dense and Bit tags storage is
// allocated per sequence: once any entity of h's sequence has been
// written, h's slot in that array (if the array covers it) is returned
// as is, holding the default or zero bytes when h itself was never
// written. MeshGlobal tags ignore h and always return the single global
// value.
func (ts *TagStore) Get(tag TagHandle, h Handle) ([]byte, error) {
	d, err := ts.reg.get(tag)
	if err != nil {
		return nil, err
	}
	if d.class == MeshGlobal {
		return d.meshGlobal, nil
	}
	seq, idx, err := ts.resolve("Tag.Get", h)
	if err != nil {
		return nil, err
	}
	switch d.class {
	case Dense, Bit:
		if v, ok := d.dense.get(seq, d.stride(), idx); ok {
			return v, nil
		}
	case Sparse:
		if v, ok := d.sparse.get(h); ok {
			return v, nil
		}
	default:
		return nil, newErr("Tag.Get", Failure, h)
	}
	if !d.hasDefault {
		return nil, newErr("Tag.Get", TagNotFound, h)
	}
	return d.defaultVal, nil
}

// Set stores val for h under tag. For Bit-class tags val must be exactly
// one byte encoding a value in [0, 2^bits) — anything wider or out of
// range fails with InvalidSize (spec.md §4.6/§8).
func (ts *TagStore) Set(tag TagHandle, h Handle, val []byte) error {
	d, err := ts.reg.get(tag)
	if err != nil {
		return err
	}
	if d.class == MeshGlobal {
		return newErr("Tag.Set", UnsupportedOperation, h)
	}
	if d.class == Bit {
		if len(val) != 1 || int(val[0]) >= 1<<uint(d.elemSize) {
			return newErr("Tag.Set", InvalidSize, h)
		}
	}
	seq, idx, err := ts.resolve("Tag.Set", h)
	if err != nil {
		return err
	}
	switch d.class {
	case Dense, Bit:
		d.dense.set(seq, d.stride(), idx, val, d.defaultVal)
	case Sparse:
		d.sparse.set(h, append([]byte(nil), val...))
	default:
		return newErr("Tag.Set", Failure, h)
	}
	return nil
}

// GetMeshGlobal returns a MeshGlobal tag's single value, ignoring any
// per-entity storage.
func (ts *TagStore) GetMeshGlobal(tag TagHandle) ([]byte, error) {
	d, err := ts.reg.get(tag)
	if err != nil {
		return nil, err
	}
	if d.class != MeshGlobal {
		return nil, newErr("Tag.GetMeshGlobal", UnsupportedOperation, InvalidHandle)
	}
	return d.meshGlobal, nil
}

// SetMeshGlobal overwrites a MeshGlobal tag's single value.
func (ts *TagStore) SetMeshGlobal(tag TagHandle, val []byte) error {
	d, err := ts.reg.get(tag)
	if err != nil {
		return err
	}
	if d.class != MeshGlobal {
		return newErr("Tag.SetMeshGlobal", UnsupportedOperation, InvalidHandle)
	}
	d.meshGlobal = append([]byte(nil), val...)
	return nil
}

// Iterate walks every live entity in r that has tag set (Sparse tags:
// present in the sparse map; Dense/Bit tags: within an allocated array,
// which in practice means every live entity once any value has been
// written for its sequence). It does not report entities falling back
// to the default.
func (ts *TagStore) Iterate(tag TagHandle, r *Range, fn func(h Handle, val []byte) bool) error {
	d, err := ts.reg.get(tag)
	if err != nil {
		return err
	}
	if d.class == MeshGlobal {
		return newErr("Tag.Iterate", UnsupportedOperation, InvalidHandle)
	}
	if d.class == Sparse {
		for _, run := range r.Runs() {
			d.sparse.forEach(func(h Handle, val []byte) bool {
				if h < run.First || h > run.Last {
					return true
				}
				if _, _, err := ts.resolve("Tag.Iterate", h); err != nil {
					return true
				}
				return fn(h, val)
			})
		}
		return nil
	}
	it := NewRangeSequenceIterator(ts.mgr, r)
	for {
		b, ok := it.Next()
		if !ok {
			return nil
		}
		if b.Err != nil || b.Sequence == nil {
			continue
		}
		for h := b.First; h <= b.Last; h++ {
			idx := b.Sequence.indexOf(h)
			v, ok := d.dense.get(b.Sequence, d.stride(), idx)
			if !ok {
				continue
			}
			if !fn(h, v) {
				return nil
			}
		}
	}
}

// GetTaggedEntities returns every handle for which tag has an
// explicitly-set value (spec.md §4.6). For Sparse tags this is exactly
// its key set; for Dense/Bit tags it is every live index within an
// allocated array.
func (ts *TagStore) GetTaggedEntities(tag TagHandle) ([]Handle, error) {
	d, err := ts.reg.get(tag)
	if err != nil {
		return nil, err
	}
	var out []Handle
	switch d.class {
	case Sparse:
		d.sparse.forEach(func(h Handle, _ []byte) bool {
			out = append(out, h)
			return true
		})
	case Dense, Bit:
		for t := EntityType(0); t <= MaxType; t++ {
			for _, seq := range ts.mgr.EntityMap(t) {
				buf, ok := d.dense.byOwner[seq]
				if !ok {
					continue
				}
				slots := len(buf) / d.stride()
				for idx := 0; idx < slots && idx < seq.used; idx++ {
					if seq.IsLive(idx) {
						out = append(out, seq.start+Handle(idx))
					}
				}
			}
		}
	default:
		return nil, newErr("Tag.GetTaggedEntities", UnsupportedOperation, InvalidHandle)
	}
	return out, nil
}
