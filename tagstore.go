package meshdb

import "github.com/kamstrup/intmap"

// denseTagStorage backs Dense- and Bit-class tags: one contiguous byte
// array per sequence, lazily allocated on first write. Each write sizes
// the array to sequence.NumberAllocated() * elemSize; the array is not
// resized when the sequence grows later, so slots handed out after the
// last write lie past its end and read as unset until the next write to
// that sequence. Grounded on the teacher's
// archetype component columns (archetype.go's per-component []byte
// slices addressed by entity row) — same "one packed array per storage
// block" shape, generalized to a map keyed by *sequence because tags
// cut across every sequence of every type rather than living inside one
// archetype's columns.
type denseTagStorage struct {
	byOwner map[*sequence][]byte
}

func newDenseTagStorage() *denseTagStorage {
	return &denseTagStorage{byOwner: make(map[*sequence][]byte, 4)}
}

func fillDefault(buf []byte, from int, elemSize int, defaultVal []byte) {
	if len(defaultVal) == 0 {
		return
	}
	for off := from * elemSize; off < len(buf); off += elemSize {
		copy(buf[off:off+elemSize], defaultVal)
	}
}

// ensure returns the byte array for seq, allocating or growing it to
// cover seq.NumberAllocated() slots, newly-grown slots filled with
// defaultVal (or left zero if defaultVal is nil).
func (d *denseTagStorage) ensure(seq *sequence, elemSize int, defaultVal []byte) []byte {
	want := seq.NumberAllocated() * elemSize
	buf, ok := d.byOwner[seq]
	if !ok {
		buf = make([]byte, want)
		fillDefault(buf, 0, elemSize, defaultVal)
		d.byOwner[seq] = buf
		return buf
	}
	if len(buf) < want {
		prevSlots := len(buf) / elemSize
		nb := make([]byte, want)
		copy(nb, buf)
		fillDefault(nb, prevSlots, elemSize, defaultVal)
		d.byOwner[seq] = nb
		return nb
	}
	return buf
}

func (d *denseTagStorage) get(seq *sequence, elemSize int, index int) ([]byte, bool) {
	buf, ok := d.byOwner[seq]
	if !ok || (index+1)*elemSize > len(buf) {
		return nil, false
	}
	return buf[index*elemSize : (index+1)*elemSize], true
}

func (d *denseTagStorage) set(seq *sequence, elemSize int, index int, val []byte, defaultVal []byte) {
	buf := d.ensure(seq, elemSize, defaultVal)
	copy(buf[index*elemSize:(index+1)*elemSize], val)
}

func (d *denseTagStorage) drop(seq *sequence) {
	delete(d.byOwner, seq)
}

// sparseTagStorage backs Sparse-class tags: most entities never set the
// tag, so storage is a handle -> value map rather than a per-sequence
// array (spec.md §4.6 "pay only for entities that set it"). Wired
// straight to kamstrup/intmap, the integer-keyed hash map plus3-ooftn's
// ecs package uses for exactly this "sparse optional per-entity slot"
// role — a better fit than a Go map[Handle][]byte for a structure meant
// to hold one entry per tagged entity across a whole database.
type sparseTagStorage struct {
	values *intmap.Map[Handle, []byte]
}

func newSparseTagStorage() *sparseTagStorage {
	return &sparseTagStorage{values: intmap.New[Handle, []byte](64)}
}

func (s *sparseTagStorage) get(h Handle) ([]byte, bool) {
	return s.values.Get(h)
}

func (s *sparseTagStorage) set(h Handle, val []byte) {
	s.values.Put(h, val)
}

func (s *sparseTagStorage) unset(h Handle) {
	s.values.Del(h)
}

func (s *sparseTagStorage) forEach(fn func(h Handle, val []byte) bool) {
	s.values.ForEach(fn)
}
