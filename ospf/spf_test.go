package ospf

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = netip.MustParseAddr("0.0.0.1")
	idB = netip.MustParseAddr("0.0.0.2")
	idC = netip.MustParseAddr("0.0.0.3")
	idD = netip.MustParseAddr("0.0.0.4")
)

func p2pLinks(neighbor netip.Addr, local string, metric uint16) []LinkRecord {
	pfx := netip.MustParsePrefix(local)

	return []LinkRecord{
		{Type: LinkTypePointToPoint, LinkID: neighbor, LinkData: pfx.Addr(), Metric: metric},
		{Type: LinkTypeStubNetwork, LinkID: pfx.Masked().Addr(), LinkData: MaskFromBits(pfx.Bits()), Metric: metric},
	}
}

func routerLSA(id netip.Addr, links ...[]LinkRecord) *LSA {
	var all []LinkRecord
	for _, l := range links {
		all = append(all, l...)
	}

	return NewRouterLSA(id, all)
}

// diamond builds A-B, A-C, B-D, C-D with the given A-C metric.
func diamond(t *testing.T, acMetric uint16) *LSDB {
	t.Helper()

	db := NewLSDB()
	lsas := []*LSA{
		routerLSA(idA, p2pLinks(idB, "10.0.1.1/30", 1), p2pLinks(idC, "10.0.2.1/30", acMetric)),
		routerLSA(idB, p2pLinks(idA, "10.0.1.2/30", 1), p2pLinks(idD, "10.0.3.1/30", 1)),
		routerLSA(idC, p2pLinks(idA, "10.0.2.2/30", acMetric), p2pLinks(idD, "10.0.4.1/30", 1)),
		routerLSA(idD, p2pLinks(idB, "10.0.3.2/30", 1), p2pLinks(idC, "10.0.4.2/30", 1)),
	}

	for _, lsa := range lsas {
		require.NoError(t, db.Insert(lsa.LinkStateID, lsa))
	}

	return db
}

var rootAIfIndexes = map[netip.Addr]uint32{
	netip.MustParseAddr("10.0.1.1"): 1,
	netip.MustParseAddr("10.0.2.1"): 2,
}

func TestSPFDiamondECMP(t *testing.T) {
	db := diamond(t, 1)

	tree, err := calculateSPF(db, idA, rootAIfIndexes, discardLogger())
	require.NoError(t, err)

	distances := make(map[netip.Addr]uint32)
	for id, v := range tree.Routers {
		distances[id] = v.DistanceFromRoot()
	}
	assert.Equal(t, map[netip.Addr]uint32{idA: 0, idB: 1, idC: 1, idD: 2}, distances)

	d := tree.Routers[idD]
	assert.ElementsMatch(t, []RootExitDirection{
		{NextHop: netip.MustParseAddr("10.0.1.2"), IfIndex: 1},
		{NextHop: netip.MustParseAddr("10.0.2.2"), IfIndex: 2},
	}, d.RootExitDirections())
	assert.ElementsMatch(t, []*Vertex{tree.Routers[idB], tree.Routers[idC]}, d.Parents())

	assert.Empty(t, tree.Root.RootExitDirections())
	assert.Len(t, tree.Root.Children(), 2)
	for _, v := range tree.Routers {
		assert.True(t, v.Processed(), "%s was never expanded", v)
		assert.Equal(t, SPFInTree, v.LSA.Status)
	}
}

func TestSPFDiamondUnequalCost(t *testing.T) {
	db := diamond(t, 5)

	tree, err := calculateSPF(db, idA, rootAIfIndexes, discardLogger())
	require.NoError(t, err)

	d := tree.Routers[idD]
	assert.Equal(t, uint32(2), d.DistanceFromRoot())
	assert.Equal(t, []RootExitDirection{{NextHop: netip.MustParseAddr("10.0.1.2"), IfIndex: 1}}, d.RootExitDirections())

	// C is reached more cheaply through B and D than directly.
	c := tree.Routers[idC]
	assert.Equal(t, uint32(3), c.DistanceFromRoot())
	assert.Equal(t, []RootExitDirection{{NextHop: netip.MustParseAddr("10.0.1.2"), IfIndex: 1}}, c.RootExitDirections())
	assert.Equal(t, []*Vertex{d}, c.Parents())
}

func TestSPFLowerCostReplacesCandidate(t *testing.T) {
	// A reaches C directly at cost 10 first, then through B at cost 2.
	db := NewLSDB()
	for _, lsa := range []*LSA{
		routerLSA(idA, p2pLinks(idC, "10.0.2.1/30", 10), p2pLinks(idB, "10.0.1.1/30", 1)),
		routerLSA(idB, p2pLinks(idA, "10.0.1.2/30", 1), p2pLinks(idC, "10.0.3.1/30", 1)),
		routerLSA(idC, p2pLinks(idA, "10.0.2.2/30", 10), p2pLinks(idB, "10.0.3.2/30", 1)),
	} {
		require.NoError(t, db.Insert(lsa.LinkStateID, lsa))
	}

	tree, err := calculateSPF(db, idA, rootAIfIndexes, discardLogger())
	require.NoError(t, err)

	c := tree.Routers[idC]
	assert.Equal(t, uint32(2), c.DistanceFromRoot())
	assert.Equal(t, []RootExitDirection{{NextHop: netip.MustParseAddr("10.0.1.2"), IfIndex: 1}}, c.RootExitDirections())
	assert.Equal(t, []*Vertex{tree.Routers[idB]}, c.Parents())
}

func TestSPFSkipsDanglingLinks(t *testing.T) {
	db := NewLSDB()
	missing := netip.MustParseAddr("0.0.0.9")

	for _, lsa := range []*LSA{
		routerLSA(idA, p2pLinks(idB, "10.0.1.1/30", 1), p2pLinks(missing, "10.0.2.1/30", 1)),
		routerLSA(idB, p2pLinks(idA, "10.0.1.2/30", 1)),
		// C claims a link to A, but A has no link to C, so C stays unreachable.
		routerLSA(idC, p2pLinks(idA, "10.0.5.2/30", 1)),
	} {
		require.NoError(t, db.Insert(lsa.LinkStateID, lsa))
	}

	tree, err := calculateSPF(db, idA, rootAIfIndexes, discardLogger())
	require.NoError(t, err)

	assert.Len(t, tree.Routers, 2)
	_, ok := tree.Vertex(idC)
	assert.False(t, ok)
}

func TestSPFUnknownRoot(t *testing.T) {
	db := diamond(t, 1)

	_, err := calculateSPF(db, netip.MustParseAddr("0.0.0.42"), nil, discardLogger())
	require.True(t, errors.Is(err, ErrUnknownRouter))
}

func TestSPFReinitializesBetweenRoots(t *testing.T) {
	db := diamond(t, 1)

	for _, root := range []netip.Addr{idA, idB, idC, idD, idA} {
		tree, err := calculateSPF(db, root, nil, discardLogger())
		require.NoError(t, err)

		// without interface indexes only the root itself is reachable
		assert.Len(t, tree.Routers, 1, "root %s", root)
	}
}

func newTestRun(t *testing.T, db *LSDB, rootID netip.Addr, ifIndexes map[netip.Addr]uint32) *spfRun {
	t.Helper()

	lsa, ok := db.GetType(LSATypeRouter, rootID)
	require.True(t, ok)

	db.Initialize()
	root := newVertex(VertexRouter, lsa)
	lsa.Status = SPFInTree

	return &spfRun{
		db:   db,
		root: root,
		tree: &SPFTree{
			Root:     root,
			Routers:  map[netip.Addr]*Vertex{root.ID: root},
			Networks: make(map[netip.Addr]*Vertex),
		},
		candidate: NewCandidateQueue(),
		ifIndexes: ifIndexes,
		log:       discardLogger(),
	}
}

func TestSPFExpandingTwicePanics(t *testing.T) {
	run := newTestRun(t, diamond(t, 1), idA, rootAIfIndexes)

	run.next(run.root)
	assert.Equal(t, 2, run.candidate.Size())

	assert.Panics(t, func() {
		run.next(run.root)
	})
}

func TestSPFDecreasingDistancePanics(t *testing.T) {
	db := diamond(t, 1)
	run := newTestRun(t, db, idA, rootAIfIndexes)

	b, _ := db.GetType(LSATypeRouter, idB)
	v := newVertex(VertexRouter, b)
	v.SetDistanceFromRoot(5)

	d, _ := db.GetType(LSATypeRouter, idD)
	assert.Panics(t, func() {
		run.relax(v, d, &b.Links[2], 4)
	})
}
