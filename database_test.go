package meshdb_test

import (
	"testing"

	"github.com/gomesh/meshdb"
)

// go test -run ^TestDatabaseHexConnectivityAndAdjacency$ . -count 1
func TestDatabaseHexConnectivityAndAdjacency(t *testing.T) {
	db := meshdb.NewDatabase()

	corners := make([]meshdb.Handle, 8)
	for i := range corners {
		h, err := db.CreateVertex(float64(i), float64(i), float64(i))
		if err != nil {
			t.Fatalf("create vertex: %v", err)
		}
		corners[i] = h
	}

	hex, err := db.CreateElement(meshdb.Hex, corners)
	if err != nil {
		t.Fatalf("create hex: %v", err)
	}

	conn, err := db.GetConnectivity(hex)
	if err != nil {
		t.Fatalf("connectivity: %v", err)
	}
	if len(conn) != 8 {
		t.Fatalf("expected 8 connectivity handles, got %d", len(conn))
	}
	for i, h := range conn {
		if h != corners[i] {
			t.Fatalf("connectivity[%d] = %v, want %v", i, h, corners[i])
		}
	}

	adj, err := db.GetAdjacencies([]meshdb.Handle{hex}, 0, false, meshdb.Union)
	if err != nil {
		t.Fatalf("adjacencies: %v", err)
	}
	if len(adj) != 8 {
		t.Fatalf("expected 8 adjacent vertices, got %d", len(adj))
	}

	revAdj, err := db.GetAdjacencies([]meshdb.Handle{corners[0]}, 3, true, meshdb.Union)
	if err != nil {
		t.Fatalf("reverse adjacencies: %v", err)
	}
	if len(revAdj) != 1 || revAdj[0] != hex {
		t.Fatalf("expected [hex], got %v", revAdj)
	}
}

// go test -run ^TestDatabaseDeleteEntitiesStopsAtFirstFailure$ . -count 1
func TestDatabaseDeleteEntitiesStopsAtFirstFailure(t *testing.T) {
	db := meshdb.NewDatabase()
	a, err := db.CreateVertex(0, 0, 0)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := db.CreateVertex(1, 0, 0)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	missing := b + 1000

	err = db.DeleteEntities([]meshdb.Handle{a, missing, b})
	if err == nil {
		t.Fatal("expected an error from the missing handle")
	}
	be, ok := err.(*meshdb.BulkError)
	if !ok {
		t.Fatalf("expected *BulkError, got %T", err)
	}
	if be.FirstFailure != missing {
		t.Fatalf("expected first failure at %v, got %v", missing, be.FirstFailure)
	}

	tag, err := db.Tag(meshdb.TagGlobalID)
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if _, err := db.Tags().Get(tag, a); err == nil {
		t.Fatal("expected a to be gone (EntityNotFound) after the partial bulk delete")
	}
}

// go test -run ^TestDatabaseWellKnownTagsReserved$ . -count 1
func TestDatabaseWellKnownTagsReserved(t *testing.T) {
	db := meshdb.NewDatabase()
	if _, err := db.Tags().CreateTag(meshdb.TagGlobalID, meshdb.Dense, 8, nil); err == nil {
		t.Fatal("expected TagAlreadyAllocated for a reserved name")
	}
	names := db.TagNames()
	found := false
	for _, n := range names {
		if n == meshdb.TagGlobalID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s among registered tags, got %v", meshdb.TagGlobalID, names)
	}
}

// go test -run ^TestDatabaseOptionsConfigureCapacityKnobs$ . -count 1
func TestDatabaseOptionsConfigureCapacityKnobs(t *testing.T) {
	db := meshdb.NewDatabase(
		meshdb.WithGrowthFloor(16),
		meshdb.WithInitialEntityCapacity(64),
		meshdb.WithInitialTagCapacity(32),
	)
	// a single vertex allocation should still round-trip correctly
	// regardless of the pre-sizing hints above.
	h, err := db.CreateVertex(1, 2, 3)
	if err != nil {
		t.Fatalf("create vertex: %v", err)
	}
	if err := db.SetGlobalID(h, 7); err != nil {
		t.Fatalf("set global id: %v", err)
	}
	id, err := db.GlobalID(h)
	if err != nil || id != 7 {
		t.Fatalf("expected global id 7, got %d err %v", id, err)
	}

	tag, err := db.Tags().CreateTag("extra", meshdb.Sparse, 4, nil)
	if err != nil {
		t.Fatalf("create extra tag: %v", err)
	}
	if err := db.Tags().Set(tag, h, []byte("abcd")); err != nil {
		t.Fatalf("set extra tag: %v", err)
	}
}

// go test -run ^TestDatabaseStructuredVertexGridComputesCoords$ . -count 1
func TestDatabaseStructuredVertexGridComputesCoords(t *testing.T) {
	db := meshdb.NewDatabase()
	first, err := db.CreateStructuredVertexGrid(0, 0, 0, 1, 1, 1)
	if err != nil {
		t.Fatalf("create structured grid: %v", err)
	}
	// 2x2x2 grid: handles first..first+7, ordered i-fastest then j then k.
	cases := []struct {
		offset  meshdb.Handle
		x, y, z float64
	}{
		{0, 0, 0, 0},
		{1, 1, 0, 0},
		{2, 0, 1, 0},
		{4, 0, 0, 1},
		{7, 1, 1, 1},
	}
	for _, c := range cases {
		x, y, z, err := db.GetVertexCoords(first + c.offset)
		if err != nil {
			t.Fatalf("coords at offset %d: %v", c.offset, err)
		}
		if x != c.x || y != c.y || z != c.z {
			t.Fatalf("offset %d: expected (%v,%v,%v), got (%v,%v,%v)", c.offset, c.x, c.y, c.z, x, y, z)
		}
	}

	// an ordinary CreateVertex afterward must not corrupt the structured
	// grid by trying to extend it.
	extra, err := db.CreateVertex(9, 9, 9)
	if err != nil {
		t.Fatalf("create extra vertex: %v", err)
	}
	x, y, z, err := db.GetVertexCoords(extra)
	if err != nil || x != 9 || y != 9 || z != 9 {
		t.Fatalf("expected (9,9,9), got (%v,%v,%v) err %v", x, y, z, err)
	}
}

// go test -run ^TestDatabaseGlobalIDRoundTrip$ . -count 1
func TestDatabaseGlobalIDRoundTrip(t *testing.T) {
	db := meshdb.NewDatabase()
	h, err := db.CreateVertex(0, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.SetGlobalID(h, 42); err != nil {
		t.Fatalf("set global id: %v", err)
	}
	id, err := db.GlobalID(h)
	if err != nil {
		t.Fatalf("get global id: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}
