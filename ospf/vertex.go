package ospf

import (
	"fmt"
	"net/netip"
	"slices"
)

type VertexType uint8

const (
	VertexUnknown VertexType = iota
	VertexRouter
	VertexNetwork
)

func (t VertexType) String() string {
	switch t {
	case VertexRouter:
		return "Router"
	case VertexNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// RootExitDirection is the first hop from the SPF root toward a vertex. An
// invalid NextHop means the destination is directly attached to IfIndex.
type RootExitDirection struct {
	NextHop netip.Addr
	IfIndex uint32
}

func (d RootExitDirection) String() string {
	if !d.NextHop.IsValid() {
		return fmt.Sprintf("direct if=%d", d.IfIndex)
	}

	return fmt.Sprintf("via %s if=%d", d.NextHop, d.IfIndex)
}

// Vertex is a router or transit network in a shortest path tree. Parents are
// references into the same tree. Under ECMP a vertex can have more than one.
type Vertex struct {
	ID   netip.Addr
	Type VertexType
	LSA  *LSA

	distance  uint32
	exits     []RootExitDirection
	parents   []*Vertex
	children  []*Vertex
	processed bool
}

func newVertex(typ VertexType, lsa *LSA) *Vertex {
	return &Vertex{
		ID:   lsa.LinkStateID,
		Type: typ,
		LSA:  lsa,
	}
}

func (v *Vertex) String() string {
	return fmt.Sprintf("%s %s (distance %d)", v.Type, v.ID, v.distance)
}

func (v *Vertex) SetDistanceFromRoot(d uint32) {
	v.distance = d
}

func (v *Vertex) DistanceFromRoot() uint32 {
	return v.distance
}

// AddRootExitDirection appends an exit direction unless an identical one is
// already present.
func (v *Vertex) AddRootExitDirection(nextHop netip.Addr, ifIndex uint32) {
	d := RootExitDirection{NextHop: nextHop, IfIndex: ifIndex}
	if slices.Contains(v.exits, d) {
		return
	}

	v.exits = append(v.exits, d)
}

// MergeRootExitDirections adds every exit direction of other that v doesn't
// already have, keeping v's existing order.
func (v *Vertex) MergeRootExitDirections(other *Vertex) {
	for _, d := range other.exits {
		v.AddRootExitDirection(d.NextHop, d.IfIndex)
	}
}

// InheritRootExitDirections replaces v's exit directions with a copy of other's.
func (v *Vertex) InheritRootExitDirections(other *Vertex) {
	v.exits = slices.Clone(other.exits)
}

func (v *Vertex) RootExitDirections() []RootExitDirection {
	return v.exits
}

func (v *Vertex) NumRootExitDirections() int {
	return len(v.exits)
}

func (v *Vertex) clearRootExitDirections() {
	v.exits = nil
}

// SetParent makes p the only parent of v.
func (v *Vertex) SetParent(p *Vertex) {
	v.parents = []*Vertex{p}
}

// MergeParent adds the parents of other to v.
func (v *Vertex) MergeParent(other *Vertex) {
	for _, p := range other.parents {
		if !slices.Contains(v.parents, p) {
			v.parents = append(v.parents, p)
		}
	}
}

func (v *Vertex) Parents() []*Vertex {
	return v.parents
}

func (v *Vertex) Parent() *Vertex {
	if len(v.parents) == 0 {
		return nil
	}

	return v.parents[0]
}

func (v *Vertex) AddChild(c *Vertex) {
	v.children = append(v.children, c)
}

func (v *Vertex) Children() []*Vertex {
	return v.children
}

func (v *Vertex) SetProcessed(p bool) {
	v.processed = p
}

func (v *Vertex) Processed() bool {
	return v.processed
}

// SPFTree is the result of one SPF run. Routers and Networks hold every
// vertex that reached the tree, keyed by router id and designated router
// address. The two can overlap.
type SPFTree struct {
	Root     *Vertex
	Routers  map[netip.Addr]*Vertex
	Networks map[netip.Addr]*Vertex
}

func (t *SPFTree) add(v *Vertex) {
	switch v.Type {
	case VertexRouter:
		t.Routers[v.ID] = v
	case VertexNetwork:
		t.Networks[v.ID] = v
	}
}

// Vertex returns the router vertex for id.
func (t *SPFTree) Vertex(id netip.Addr) (*Vertex, bool) {
	v, ok := t.Routers[id]
	return v, ok
}

func (t *SPFTree) Network(id netip.Addr) (*Vertex, bool) {
	v, ok := t.Networks[id]
	return v, ok
}

func (t *SPFTree) Len() int {
	return len(t.Routers) + len(t.Networks)
}

// Walk visits every vertex reachable from the root through child links in
// depth first order. A vertex with several parents is visited once.
func (t *SPFTree) Walk(fn func(v *Vertex)) {
	seen := make(map[*Vertex]bool)

	var visit func(v *Vertex)
	visit = func(v *Vertex) {
		if seen[v] {
			return
		}
		seen[v] = true

		fn(v)

		for _, c := range v.children {
			visit(c)
		}
	}

	visit(t.Root)
}
