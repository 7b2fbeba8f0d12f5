package ospf

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVertex(id string, typ VertexType, distance uint32) *Vertex {
	addr := netip.MustParseAddr(id)
	v := newVertex(typ, &LSA{LinkStateID: addr})
	v.SetDistanceFromRoot(distance)
	return v
}

func TestCandidateQueuePushPop(t *testing.T) {
	q := NewCandidateQueue()
	require.True(t, q.Empty())
	require.Nil(t, q.Pop())
	require.Nil(t, q.Top())

	v := testVertex("0.0.0.1", VertexRouter, 5)
	q.Push(v)

	require.False(t, q.Empty())
	require.Equal(t, 1, q.Size())
	require.Same(t, v, q.Top())
	require.Same(t, v, q.Pop())
	require.True(t, q.Empty())
}

func TestCandidateQueueOrder(t *testing.T) {
	q := NewCandidateQueue()

	distances := []uint32{7, 3, 9, 1, 4, 4, 0}
	for i, d := range distances {
		q.Push(testVertex(netip.AddrFrom4([4]byte{0, 0, 0, byte(i + 1)}).String(), VertexRouter, d))
	}

	var got []uint32
	for !q.Empty() {
		got = append(got, q.Pop().DistanceFromRoot())
	}

	assert.Equal(t, []uint32{0, 1, 3, 4, 4, 7, 9}, got)
}

func TestCandidateQueueTieBreak(t *testing.T) {
	q := NewCandidateQueue()

	r1 := testVertex("0.0.0.1", VertexRouter, 2)
	r2 := testVertex("0.0.0.2", VertexRouter, 2)
	n := testVertex("10.0.0.1", VertexNetwork, 2)

	q.Push(r1)
	q.Push(r2)
	q.Push(n)

	assert.Same(t, n, q.Pop(), "networks come before routers at equal distance")
	assert.Same(t, r1, q.Pop(), "routers keep insertion order")
	assert.Same(t, r2, q.Pop())
}

func TestCandidateQueueFind(t *testing.T) {
	q := NewCandidateQueue()

	a := testVertex("0.0.0.1", VertexRouter, 1)
	b := testVertex("0.0.0.2", VertexRouter, 2)
	q.Push(a)
	q.Push(b)

	assert.Same(t, b, q.Find(VertexRouter, b.ID))
	assert.Nil(t, q.Find(VertexRouter, netip.MustParseAddr("0.0.0.3")))

	q.Pop()
	assert.Nil(t, q.Find(VertexRouter, a.ID), "popped vertices are no longer found")
}

func TestCandidateQueueFindByType(t *testing.T) {
	q := NewCandidateQueue()

	r := testVertex("10.0.0.1", VertexRouter, 1)
	n := testVertex("10.0.0.1", VertexNetwork, 1)
	q.Push(r)
	q.Push(n)

	assert.Equal(t, 2, q.Size())
	assert.Same(t, r, q.Find(VertexRouter, r.ID))
	assert.Same(t, n, q.Find(VertexNetwork, n.ID))

	assert.Same(t, n, q.Pop())
	assert.Nil(t, q.Find(VertexNetwork, n.ID))
	assert.Same(t, r, q.Find(VertexRouter, r.ID))
}

func TestCandidateQueueReorder(t *testing.T) {
	q := NewCandidateQueue()

	a := testVertex("0.0.0.1", VertexRouter, 10)
	b := testVertex("0.0.0.2", VertexRouter, 20)
	c := testVertex("0.0.0.3", VertexRouter, 30)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	c.SetDistanceFromRoot(5)
	a.SetDistanceFromRoot(25)
	q.Reorder()

	assert.Same(t, c, q.Pop())
	assert.Same(t, b, q.Pop())
	assert.Same(t, a, q.Pop())
}

func TestCandidateQueueUpdate(t *testing.T) {
	q := NewCandidateQueue()

	a := testVertex("0.0.0.1", VertexRouter, 10)
	b := testVertex("0.0.0.2", VertexRouter, 20)
	q.Push(a)
	q.Push(b)

	b.SetDistanceFromRoot(1)
	q.Update(b)

	assert.Same(t, b, q.Top())
}

func TestCandidateQueueClear(t *testing.T) {
	q := NewCandidateQueue()
	q.Push(testVertex("0.0.0.1", VertexRouter, 1))
	q.Push(testVertex("0.0.0.2", VertexRouter, 2))

	q.Clear()

	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Size())
	assert.Nil(t, q.Find(VertexRouter, netip.MustParseAddr("0.0.0.1")))
}
