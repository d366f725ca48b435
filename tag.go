package meshdb

import "log/slog"

// TagClass is the storage discipline a tag uses (spec.md §6 — stable
// wire values).
type TagClass uint8

const (
	Bit TagClass = iota
	Sparse
	Dense
	MeshGlobal
)

func (c TagClass) String() string {
	switch c {
	case Bit:
		return "Bit"
	case Sparse:
		return "Sparse"
	case Dense:
		return "Dense"
	case MeshGlobal:
		return "MeshGlobal"
	default:
		return "Unknown"
	}
}

// TagHandle is the opaque (id, property-bits) identifier for a tag
// (spec.md §3). It packs a 16-bit registry id, the 2-bit storage class,
// and the element size (bytes for Sparse/Dense/MeshGlobal, or bit count
// 1..8 for Bit) into a 32-bit value, the same "type-plus-
// identity in one scalar" idiom as Handle (handle.go) — grounded on the
// teacher's ComponentID (component.go), generalized with property bits
// so a caller can read the storage class straight off the handle without
// a registry lookup (spec.md §4.6 "tag-handle encoding's property bits").
type TagHandle uint32

const (
	tagClassBits = 2
	tagSizeBits  = 14
)

func packTagHandle(id uint16, class TagClass, size uint16) TagHandle {
	return TagHandle(uint32(id)<<(tagClassBits+tagSizeBits) | uint32(class)<<tagSizeBits | uint32(size))
}

// ID returns the tag's registry id.
func (h TagHandle) ID() uint16 { return uint16(h >> (tagClassBits + tagSizeBits)) }

// Class returns the tag's storage discipline without a registry lookup.
func (h TagHandle) Class() TagClass {
	return TagClass((h >> tagSizeBits) & (1<<tagClassBits - 1))
}

// Size returns the tag's element size in bytes, or bit count for Bit-class
// tags.
func (h TagHandle) Size() int { return int(h & (1<<tagSizeBits - 1)) }

// InvalidTagHandle is returned alongside every tag-store error except
// TagAlreadyAllocated, which comes with the existing tag's handle.
const InvalidTagHandle TagHandle = 0

// tagDescriptor is one entry in the tag registry (spec.md §3/§4.6).
type tagDescriptor struct {
	name       string
	class      TagClass
	elemSize   int // bytes for Sparse/Dense/MeshGlobal, bit count for Bit
	handle     TagHandle
	defaultVal []byte
	hasDefault bool
	meshGlobal []byte
	dense      *denseTagStorage
	sparse     *sparseTagStorage
	allocated  bool // registry slot in use; false means free for reuse
}

// stride returns the byte width of one entity's slot in dense storage.
// Bit-class tags always occupy exactly 1 byte per entity regardless of
// their declared bit width (spec.md §4.6 "packed into 1 byte per
// entity"); elemSize for Bit holds the bit count (1..8), used only to
// validate/mask values, not to size the array.
func (d *tagDescriptor) stride() int {
	if d.class == Bit {
		return 1
	}
	return d.elemSize
}

// tagRegistry is the array of tag descriptors plus the name index
// (spec.md §4.6). Grounded on the teacher's Resources (resources.go):
// both hand out small integer ids backed by a slice, keep a type/name ->
// id map for fast reuse-detection, and recycle freed ids through a free
// list instead of growing forever.
type tagRegistry struct {
	descriptors []tagDescriptor
	byName      map[string]uint16
	freeIDs     []uint16
	log         *slog.Logger
}

func newTagRegistry() *tagRegistry {
	return &tagRegistry{byName: make(map[string]uint16, 16), log: discardLog}
}

// reserveCapacity pre-sizes the registry's backing slice and name index
// to n entries, the WithInitialTagCapacity knob (SPEC_FULL.md §9). It
// only has an effect when called before any tag is created.
func (r *tagRegistry) reserveCapacity(n int) {
	if n <= 0 || len(r.descriptors) > 0 {
		return
	}
	r.descriptors = make([]tagDescriptor, 0, n)
	r.byName = make(map[string]uint16, n)
}

func validateTagSize(class TagClass, size int) error {
	if class == Bit {
		if size < 1 || size > 8 {
			return newErr("CreateTag", InvalidSize, InvalidHandle)
		}
		return nil
	}
	if size < 1 {
		return newErr("CreateTag", InvalidSize, InvalidHandle)
	}
	return nil
}

// create registers a new tag descriptor, or reports TagAlreadyAllocated
// (plus the existing handle) if the name is already registered
// (spec.md §7).
func (r *tagRegistry) create(name string, class TagClass, size int, defaultVal []byte) (TagHandle, error) {
	if id, ok := r.byName[name]; ok {
		return r.descriptors[id].handle, newErr("CreateTag", TagAlreadyAllocated, InvalidHandle)
	}
	if err := validateTagSize(class, size); err != nil {
		return InvalidTagHandle, err
	}

	var id uint16
	if n := len(r.freeIDs); n > 0 {
		id = r.freeIDs[n-1]
		r.freeIDs = r.freeIDs[:n-1]
	} else {
		id = uint16(len(r.descriptors))
		r.descriptors = append(r.descriptors, tagDescriptor{})
	}

	h := packTagHandle(id, class, uint16(size))
	d := tagDescriptor{
		name:       name,
		class:      class,
		elemSize:   size,
		handle:     h,
		defaultVal: defaultVal,
		hasDefault: defaultVal != nil,
		allocated:  true,
	}
	switch class {
	case Dense:
		d.dense = newDenseTagStorage()
	case Sparse:
		d.sparse = newSparseTagStorage()
	case Bit:
		d.dense = newDenseTagStorage() // packed 1 byte/entity, see tagstore.go
	}
	r.descriptors[id] = d
	r.byName[name] = id
	r.log.Debug("tag allocated", "name", name, "class", class, "id", id)
	return h, nil
}

func (r *tagRegistry) getHandle(name string) (TagHandle, error) {
	id, ok := r.byName[name]
	if !ok {
		return InvalidTagHandle, newErr("GetTagHandle", TagNotFound, InvalidHandle)
	}
	return r.descriptors[id].handle, nil
}

func (r *tagRegistry) get(h TagHandle) (*tagDescriptor, error) {
	id := h.ID()
	if int(id) >= len(r.descriptors) || !r.descriptors[id].allocated || r.descriptors[id].handle != h {
		return nil, newErr("Tag", TagNotFound, InvalidHandle)
	}
	return &r.descriptors[id], nil
}

func (r *tagRegistry) delete(h TagHandle) error {
	d, err := r.get(h)
	if err != nil {
		return err
	}
	name := d.name
	delete(r.byName, d.name)
	id := h.ID()
	r.descriptors[id] = tagDescriptor{}
	r.freeIDs = append(r.freeIDs, id)
	r.log.Debug("tag deallocated", "name", name, "id", id)
	return nil
}

// names returns every registered tag name.
func (r *tagRegistry) names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}
