package meshdb

import "testing"

// go test -run ^TestMeshsetTrackOwnerRemovesOnDelete$ . -count 1
func TestMeshsetTrackOwnerRemovesOnDelete(t *testing.T) {
	mgr := newSequenceManager()
	ms := newMeshsetStore(mgr)

	first, _, err := mgr.Allocate(Vertex, 5, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	set, err := ms.Create(SetFlagSet | SetFlagTrackOwner)
	if err != nil {
		t.Fatalf("create set: %v", err)
	}
	verts := []Handle{first, first + 1, first + 2, first + 3, first + 4}
	if err := ms.Add(set, verts); err != nil {
		t.Fatalf("add: %v", err)
	}

	third := first + 2
	if err := mgr.Release(third); err != nil {
		t.Fatalf("release: %v", err)
	}
	ms.onEntityDeleted(third)

	contents, err := ms.Contents(set)
	if err != nil {
		t.Fatalf("contents: %v", err)
	}
	want := []Handle{first, first + 1, first + 3, first + 4}
	if len(contents) != len(want) {
		t.Fatalf("expected %v, got %v", want, contents)
	}
	for i, h := range want {
		if contents[i] != h {
			t.Fatalf("expected %v, got %v", want, contents)
		}
	}
}

// go test -run ^TestMeshsetParentChildSymmetric$ . -count 1
func TestMeshsetParentChildSymmetric(t *testing.T) {
	mgr := newSequenceManager()
	ms := newMeshsetStore(mgr)

	a, err := ms.Create(SetFlagSet)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := ms.Create(SetFlagSet)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if err := ms.AddParentChild(a, b); err != nil {
		t.Fatalf("link: %v", err)
	}

	children, _ := ms.Children(a)
	if len(children) != 1 || children[0] != b {
		t.Fatalf("expected children={b}, got %v", children)
	}
	parents, _ := ms.Parents(b)
	if len(parents) != 1 || parents[0] != a {
		t.Fatalf("expected parents={a}, got %v", parents)
	}

	if err := mgr.Release(a); err != nil {
		t.Fatalf("release a: %v", err)
	}
	ms.onEntityDeleted(a)
	parents, _ = ms.Parents(b)
	if len(parents) != 0 {
		t.Fatalf("expected parents={} after deleting a, got %v", parents)
	}
}

// go test -run ^TestMeshsetOrderedAllowsDuplicates$ . -count 1
func TestMeshsetOrderedAllowsDuplicates(t *testing.T) {
	mgr := newSequenceManager()
	ms := newMeshsetStore(mgr)

	first, _, err := mgr.Allocate(Vertex, 2, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	set, err := ms.Create(SetFlagOrdered)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ms.Add(set, []Handle{first, first, first + 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	contents, _ := ms.Contents(set)
	if len(contents) != 3 {
		t.Fatalf("expected 3 entries (duplicates preserved), got %v", contents)
	}
}
