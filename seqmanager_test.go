package meshdb

import "testing"

// go test -run ^TestSequenceManagerAllocateExtendsContiguously$ . -count 1
func TestSequenceManagerAllocateExtendsContiguously(t *testing.T) {
	m := newSequenceManager()
	first, seq1, err := m.Allocate(Vertex, 5, nil, 0)
	if err != nil {
		t.Fatalf("allocate 1: %v", err)
	}
	if first.ID() != 1 {
		t.Fatalf("expected first id 1, got %d", first.ID())
	}
	second, seq2, err := m.Allocate(Vertex, 3, nil, 0)
	if err != nil {
		t.Fatalf("allocate 2: %v", err)
	}
	if second.ID() != 6 {
		t.Fatalf("expected contiguous second id 6, got %d", second.ID())
	}
	if seq1 != seq2 {
		t.Fatal("expected monotonic allocate to extend the same sequence")
	}
	if len(m.EntityMap(Vertex)) != 1 {
		t.Fatalf("expected a single vertex sequence, got %d", len(m.EntityMap(Vertex)))
	}
}

// go test -run ^TestSequenceManagerHintCreatesDisjointSequence$ . -count 1
func TestSequenceManagerHintCreatesDisjointSequence(t *testing.T) {
	m := newSequenceManager()
	m.Allocate(Vertex, 5, nil, 0)
	hint := uint64(100)
	h, _, err := m.Allocate(Vertex, 10, &hint, 0)
	if err != nil {
		t.Fatalf("hinted allocate: %v", err)
	}
	if h.ID() != 100 {
		t.Fatalf("expected hinted id 100, got %d", h.ID())
	}
	if len(m.EntityMap(Vertex)) != 2 {
		t.Fatalf("expected two disjoint vertex sequences, got %d", len(m.EntityMap(Vertex)))
	}
}

// go test -run ^TestSequenceManagerHintCollisionFails$ . -count 1
func TestSequenceManagerHintCollisionFails(t *testing.T) {
	m := newSequenceManager()
	hint := uint64(100)
	if _, _, err := m.Allocate(Vertex, 10, &hint, 0); err != nil {
		t.Fatalf("first hinted allocate: %v", err)
	}
	overlapping := uint64(105)
	_, _, err := m.Allocate(Vertex, 3, &overlapping, 0)
	if err == nil {
		t.Fatal("expected an overlapping hint to fail")
	}
	e, ok := err.(*Error)
	if !ok || e.Status != Failure {
		t.Fatalf("expected Failure status, got %+v", err)
	}
	if e.Unwrap() == nil {
		t.Fatal("expected a wrapped cause describing the collision")
	}
}

// go test -run ^TestSequenceManagerFindAndRelease$ . -count 1
func TestSequenceManagerFindAndRelease(t *testing.T) {
	m := newSequenceManager()
	first, _, _ := m.Allocate(Vertex, 3, nil, 0)
	seq, err := m.Find(first)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !seq.IsLiveHandle(first) {
		t.Fatal("expected handle to be live")
	}
	if err := m.Release(first); err != nil {
		t.Fatalf("release: %v", err)
	}
	if seq.IsLiveHandle(first) {
		t.Fatal("expected handle to be dead after release")
	}
	if err := m.Release(first); err == nil {
		t.Fatal("expected second release of the same handle to fail")
	}
}

// go test -run ^TestSequenceManagerInitialCapacityPresizesFirstSequence$ . -count 1
func TestSequenceManagerInitialCapacityPresizesFirstSequence(t *testing.T) {
	m := newSequenceManager()
	m.growthFloor = 16
	m.initialCapacity = 64
	_, seq, err := m.Allocate(Vertex, 3, nil, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if seq.allocated < 64 {
		t.Fatalf("expected initial capacity hint to presize to >= 64, got %d", seq.allocated)
	}
	if seq.growthFloor != 16 {
		t.Fatalf("expected sequence to inherit the manager's growth floor, got %d", seq.growthFloor)
	}
}

// go test -run ^TestSequenceManagerDropsEmptySequence$ . -count 1
func TestSequenceManagerDropsEmptySequence(t *testing.T) {
	m := newSequenceManager()
	hint := uint64(50)
	first, _, _ := m.Allocate(Vertex, 2, &hint, 0)
	second := first + 1
	m.Release(first)
	m.Release(second)
	if len(m.EntityMap(Vertex)) != 0 {
		t.Fatalf("expected empty sequence to be dropped, got %d sequences", len(m.EntityMap(Vertex)))
	}
}
