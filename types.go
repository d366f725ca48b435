// Package meshdb implements an in-process mesh-oriented database: entity
// storage and handle management for finite-element mesh data (vertices,
// elements, and grouping sets), plus typed attribute values ("tags")
// keyed by entity handle.
//
// Features:
// - Compact 64-bit handles encoding entity type and per-type id.
// - Contiguous per-type sequences with free-slot tracking; deleted ids
//   are never reused.
// - Run-length handle ranges with O(runs) union/intersect/subtract and
//   ascending or descending per-handle iteration.
// - A range/sequence intersection iterator that walks a handle range and
//   the sequences it hits in one pass, surfacing holes as per-block
//   statuses instead of failing the whole walk.
// - Dense, sparse, bit, and mesh-global tag storage.
// - Meshsets (SET/ORDERED/TRACK_OWNER) with symmetric parent/child links.
package meshdb

// EntityType is the closed, append-only set of entity kinds a Handle can
// encode (spec.md §6). The numeric values are a persistent wire contract;
// new types must be appended before MaxType, never inserted.
type EntityType uint8

const (
	Vertex EntityType = iota
	Edge
	Tri
	Quad
	Polygon
	Tetra
	Pyramid
	Prism
	Knife
	Hex
	Polyhedron
	EntitySet
)

// MaxType is the terminal sentinel. No live entity ever has this type.
const MaxType EntityType = 15

func (t EntityType) String() string {
	switch t {
	case Vertex:
		return "Vertex"
	case Edge:
		return "Edge"
	case Tri:
		return "Tri"
	case Quad:
		return "Quad"
	case Polygon:
		return "Polygon"
	case Tetra:
		return "Tetra"
	case Pyramid:
		return "Pyramid"
	case Prism:
		return "Prism"
	case Knife:
		return "Knife"
	case Hex:
		return "Hex"
	case Polyhedron:
		return "Polyhedron"
	case EntitySet:
		return "EntitySet"
	case MaxType:
		return "MaxType"
	default:
		return "Unknown"
	}
}

// dimensionTable maps each entity type to its topological dimension
// (spec.md §4.7). EntitySet has no geometric dimension; Dimension returns
// -1 for it.
var dimensionTable = [MaxType + 1]int8{
	Vertex:     0,
	Edge:       1,
	Tri:        2,
	Quad:       2,
	Polygon:    2,
	Tetra:      3,
	Pyramid:    3,
	Prism:      3,
	Knife:      3,
	Hex:        3,
	Polyhedron: 3,
	EntitySet:  -1,
	MaxType:    -1,
}

// Dimension returns the topological dimension of t, or -1 if t has none
// (EntitySet, MaxType, or any value beyond MaxType).
func (t EntityType) Dimension() int {
	if t > MaxType {
		return -1
	}
	return int(dimensionTable[t])
}

// IsElement reports whether t is a mesh element type with connectivity
// (strictly between Vertex and EntitySet).
func (t EntityType) IsElement() bool {
	return t > Vertex && t < EntitySet
}

// nodesPerElementTable gives the canonical node count for element types
// that have a fixed one, plus 1 for Vertex. Polygon and Polyhedron are
// variable-arity and map to 0; callers must track their arity from the
// connectivity length at creation.
var nodesPerElementTable = map[EntityType]int{
	Vertex:     1,
	Edge:       2,
	Tri:        3,
	Quad:       4,
	Tetra:      4,
	Pyramid:    5,
	Prism:      6,
	Knife:      5,
	Hex:        8,
	Polyhedron: 0,
	Polygon:    0,
}

// NodesPerElement returns the fixed node count for t, 1 for Vertex, or 0
// if t has variable arity (Polygon, Polyhedron) or is EntitySet or any
// higher value.
func (t EntityType) NodesPerElement() int {
	return nodesPerElementTable[t]
}
