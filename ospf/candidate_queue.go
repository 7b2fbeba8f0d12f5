package ospf

import (
	"container/heap"
	"net/netip"
	"strings"
)

type vertexKey struct {
	typ VertexType
	id  netip.Addr
}

func keyOf(v *Vertex) vertexKey {
	return vertexKey{typ: v.Type, id: v.ID}
}

type candidate struct {
	v     *Vertex
	seq   uint64
	index int
}

type candidateHeap []*candidate

func (h candidateHeap) Len() int {
	return len(h)
}

// Less orders by distance. At equal distance networks come before routers so
// a zero cost hop from a network is expanded before a router at the same
// distance is finalized. Remaining ties keep insertion order.
func (h candidateHeap) Less(i, j int) bool {
	a, b := h[i], h[j]

	if a.v.distance != b.v.distance {
		return a.v.distance < b.v.distance
	}

	if a.v.Type != b.v.Type {
		return a.v.Type == VertexNetwork
	}

	return a.seq < b.seq
}

func (h candidateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *candidateHeap) Push(x any) {
	c := x.(*candidate)
	c.index = len(*h)
	*h = append(*h, c)
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.index = -1
	*h = old[:n-1]
	return c
}

// CandidateQueue holds vertices that have been reached but not yet added to
// the shortest path tree, ordered by distance from the root. It doesn't own
// the vertices.
type CandidateQueue struct {
	h       candidateHeap
	byKey   map[vertexKey]*candidate
	nextSeq uint64
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{
		byKey: make(map[vertexKey]*candidate),
	}
}

func (q *CandidateQueue) Push(v *Vertex) {
	c := &candidate{v: v, seq: q.nextSeq}
	q.nextSeq++

	heap.Push(&q.h, c)
	q.byKey[keyOf(v)] = c
}

// Pop removes and returns the closest vertex, or nil if the queue is empty.
func (q *CandidateQueue) Pop() *Vertex {
	if len(q.h) == 0 {
		return nil
	}

	c := heap.Pop(&q.h).(*candidate)
	delete(q.byKey, keyOf(c.v))

	return c.v
}

// Top returns the closest vertex without removing it, or nil if the queue is
// empty.
func (q *CandidateQueue) Top() *Vertex {
	if len(q.h) == 0 {
		return nil
	}

	return q.h[0].v
}

// Find returns the queued vertex of type typ with the given id, or nil.
func (q *CandidateQueue) Find(typ VertexType, id netip.Addr) *Vertex {
	c, ok := q.byKey[vertexKey{typ: typ, id: id}]
	if !ok {
		return nil
	}

	return c.v
}

// Update restores ordering after the distance of a single queued vertex
// changed.
func (q *CandidateQueue) Update(v *Vertex) {
	c, ok := q.byKey[keyOf(v)]
	if !ok {
		return
	}

	heap.Fix(&q.h, c.index)
}

// Reorder restores ordering after any number of queued vertices had their
// distances changed in place.
func (q *CandidateQueue) Reorder() {
	heap.Init(&q.h)
}

func (q *CandidateQueue) Clear() {
	for _, c := range q.h {
		c.index = -1
	}

	q.h = nil
	clear(q.byKey)
}

func (q *CandidateQueue) Empty() bool {
	return len(q.h) == 0
}

func (q *CandidateQueue) Size() int {
	return len(q.h)
}

// String lists the queued vertices in the order they would be popped.
func (q *CandidateQueue) String() string {
	sorted := make(candidateHeap, len(q.h))
	for i, c := range q.h {
		sorted[i] = &candidate{v: c.v, seq: c.seq}
	}
	heap.Init(&sorted)

	var b strings.Builder
	for sorted.Len() > 0 {
		c := heap.Pop(&sorted).(*candidate)
		b.WriteString(c.v.String())
		b.WriteByte('\n')
	}

	return b.String()
}
