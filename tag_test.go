package meshdb

import (
	"bytes"
	"testing"
)

// go test -run ^TestTagCreateAndAlreadyAllocated$ . -count 1
func TestTagCreateAndAlreadyAllocated(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	h1, err := ts.CreateTag("density", Dense, 8, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h2, err := ts.CreateTag("density", Dense, 8, nil)
	if err == nil {
		t.Fatal("expected TagAlreadyAllocated")
	}
	if h2 != h1 {
		t.Fatalf("expected existing handle returned, got %v vs %v", h2, h1)
	}
}

// go test -run ^TestTagDenseGetSetDefault$ . -count 1
func TestTagDenseGetSetDefault(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	def := []byte{0xFF}
	tag, err := ts.CreateTag("flag", Dense, 1, def)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _, err := mgr.Allocate(Vertex, 5, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	v, err := ts.Get(tag, first)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(v, def) {
		t.Fatalf("expected default %v, got %v", def, v)
	}

	if err := ts.Set(tag, first+1, []byte{0x01}); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = ts.Get(tag, first+1)
	if err != nil || !bytes.Equal(v, []byte{0x01}) {
		t.Fatalf("expected [1], got %v err %v", v, err)
	}
	// untouched neighbor still reads the default
	v, _ = ts.Get(tag, first+2)
	if !bytes.Equal(v, def) {
		t.Fatalf("expected default on untouched slot, got %v", v)
	}
}

// go test -run ^TestTagGetWithNoDefaultFailsTagNotFound$ . -count 1
func TestTagGetWithNoDefaultFailsTagNotFound(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	dense, err := ts.CreateTag("nodefault-dense", Dense, 4, nil)
	if err != nil {
		t.Fatalf("create dense: %v", err)
	}
	sparse, err := ts.CreateTag("nodefault-sparse", Sparse, 4, nil)
	if err != nil {
		t.Fatalf("create sparse: %v", err)
	}

	first, _, err := mgr.Allocate(Vertex, 1, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := ts.Get(dense, first); err == nil {
		t.Fatal("expected TagNotFound for a dense tag with no default and no value set")
	} else if e, ok := err.(*Error); !ok || e.Status != TagNotFound {
		t.Fatalf("expected TagNotFound, got %v", err)
	}
	if _, err := ts.Get(sparse, first); err == nil {
		t.Fatal("expected TagNotFound for a sparse tag with no default and no value set")
	} else if e, ok := err.(*Error); !ok || e.Status != TagNotFound {
		t.Fatalf("expected TagNotFound, got %v", err)
	}

	// once a value is explicitly set, Get succeeds even with no default.
	if err := ts.Set(dense, first, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("set dense: %v", err)
	}
	if v, err := ts.Get(dense, first); err != nil || !bytes.Equal(v, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected explicit value, got %v err %v", v, err)
	}
}

// go test -run ^TestTagSparseOnlySeesSetEntities$ . -count 1
func TestTagSparseOnlySeesSetEntities(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	tag, err := ts.CreateTag("label", Sparse, 4, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, _, err := mgr.Allocate(Vertex, 3, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := ts.Set(tag, first, []byte("abcd")); err != nil {
		t.Fatalf("set: %v", err)
	}
	tagged, err := ts.GetTaggedEntities(tag)
	if err != nil {
		t.Fatalf("tagged: %v", err)
	}
	if len(tagged) != 1 || tagged[0] != first {
		t.Fatalf("expected exactly [first], got %v", tagged)
	}
}

// go test -run ^TestTagBitRoundTripAndSizeBounds$ . -count 1
func TestTagBitRoundTripAndSizeBounds(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	if _, err := ts.CreateTag("toowide", Bit, 9, nil); err == nil {
		t.Fatal("expected InvalidSize for a 9-bit tag")
	}

	one, err := ts.CreateTag("flag1", Bit, 1, nil)
	if err != nil {
		t.Fatalf("create 1-bit tag: %v", err)
	}
	eight, err := ts.CreateTag("flag8", Bit, 8, nil)
	if err != nil {
		t.Fatalf("create 8-bit tag: %v", err)
	}

	first, _, err := mgr.Allocate(Vertex, 2, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := ts.Set(one, first, []byte{1}); err != nil {
		t.Fatalf("set 1-bit: %v", err)
	}
	if v, err := ts.Get(one, first); err != nil || !bytes.Equal(v, []byte{1}) {
		t.Fatalf("expected [1], got %v err %v", v, err)
	}
	if err := ts.Set(one, first, []byte{2}); err == nil {
		t.Fatal("expected InvalidSize for a value outside [0,2) on a 1-bit tag")
	}

	if err := ts.Set(eight, first, []byte{255}); err != nil {
		t.Fatalf("set 8-bit: %v", err)
	}
	if v, err := ts.Get(eight, first); err != nil || !bytes.Equal(v, []byte{255}) {
		t.Fatalf("expected [255], got %v err %v", v, err)
	}
	// a second entity's 8-bit slot is independent and still zero
	if v, err := ts.Get(eight, first+1); err != nil || !bytes.Equal(v, []byte{0}) {
		t.Fatalf("expected [0] on untouched slot, got %v err %v", v, err)
	}
}

// go test -run ^TestTagMeshGlobalIgnoresHandle$ . -count 1
func TestTagMeshGlobalIgnoresHandle(t *testing.T) {
	mgr := newSequenceManager()
	ts := newTagStore(mgr)

	tag, err := ts.CreateTag("units", MeshGlobal, 8, []byte("metric__"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v, err := ts.GetMeshGlobal(tag)
	if err != nil || !bytes.Equal(v, []byte("metric__")) {
		t.Fatalf("expected default global, got %v err %v", v, err)
	}
	if err := ts.SetMeshGlobal(tag, []byte("si______")); err != nil {
		t.Fatalf("set global: %v", err)
	}
	v, _ = ts.GetMeshGlobal(tag)
	if !bytes.Equal(v, []byte("si______")) {
		t.Fatalf("expected updated global, got %v", v)
	}
}
