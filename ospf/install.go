package ospf

import (
	"net/netip"
	"slices"
)

type stubRoute struct {
	distance uint32
	exits    []RootExitDirection
}

// install writes the routes described by tree into table and returns the
// number of entries added.
func (m *RouteManager) install(tree *SPFTree, table RoutingTable) int {
	n := 0
	connected := m.connectedPrefixes(tree.Root.LSA)

	tree.Walk(func(v *Vertex) {
		if v == tree.Root {
			return
		}

		switch v.Type {
		case VertexRouter:
			for _, l := range v.LSA.Links {
				if l.Type != LinkTypePointToPoint && l.Type != LinkTypeTransitNetwork {
					continue
				}

				for _, d := range v.RootExitDirections() {
					table.AddHostRoute(l.LinkData, d.NextHop, d.IfIndex, v.DistanceFromRoot())
					n++
				}
			}
		case VertexNetwork:
			pfx, ok := v.LSA.Prefix()
			if !ok {
				return
			}

			for _, d := range v.RootExitDirections() {
				table.AddNetworkRoute(pfx, d.NextHop, d.IfIndex, v.DistanceFromRoot())
				n++
			}
		}
	})

	n += installBest(table, m.stubRoutes(tree, connected))
	n += installBest(table, m.externalRoutes(tree, connected))

	return n
}

// connectedPrefixes returns the networks the root is directly attached to.
func (m *RouteManager) connectedPrefixes(root *LSA) map[netip.Prefix]bool {
	connected := make(map[netip.Prefix]bool)

	for _, l := range root.Links {
		switch l.Type {
		case LinkTypeStubNetwork:
			if pfx, ok := l.Prefix(); ok {
				connected[pfx] = true
			}
		case LinkTypeTransitNetwork:
			if lsa, ok := m.db.GetType(LSATypeNetwork, l.LinkID); ok {
				if pfx, ok := lsa.Prefix(); ok {
					connected[pfx] = true
				}
			}
		}
	}

	return connected
}

func (m *RouteManager) stubRoutes(tree *SPFTree, connected map[netip.Prefix]bool) map[netip.Prefix]*stubRoute {
	best := make(map[netip.Prefix]*stubRoute)

	tree.Walk(func(v *Vertex) {
		if v == tree.Root || v.Type != VertexRouter {
			return
		}

		for _, l := range v.LSA.Links {
			pfx, ok := l.Prefix()
			if !ok || connected[pfx] {
				continue
			}

			considerRoute(best, pfx, addMetric(v.DistanceFromRoot(), uint32(l.Metric)), v.RootExitDirections())
		}
	})

	return best
}

func (m *RouteManager) externalRoutes(tree *SPFTree, connected map[netip.Prefix]bool) map[netip.Prefix]*stubRoute {
	best := make(map[netip.Prefix]*stubRoute)

	for i := 0; i < m.db.NumExtLSAs(); i++ {
		lsa := m.db.ExtLSA(i)
		if lsa.AdvertisingRouter == tree.Root.ID {
			continue
		}

		v, ok := tree.Vertex(lsa.AdvertisingRouter)
		if !ok {
			m.log.Debug("advertising router unreachable", "root", tree.Root.ID, "external", lsa.LinkStateID, "router", lsa.AdvertisingRouter)
			continue
		}

		pfx, ok := lsa.Prefix()
		if !ok || connected[pfx] {
			continue
		}

		considerRoute(best, pfx, v.DistanceFromRoot(), v.RootExitDirections())
	}

	return best
}

func considerRoute(best map[netip.Prefix]*stubRoute, pfx netip.Prefix, distance uint32, exits []RootExitDirection) {
	cur, ok := best[pfx]
	switch {
	case !ok || distance < cur.distance:
		best[pfx] = &stubRoute{distance: distance, exits: slices.Clone(exits)}
	case distance == cur.distance:
		for _, d := range exits {
			if !slices.Contains(cur.exits, d) {
				cur.exits = append(cur.exits, d)
			}
		}
	}
}

func installBest(table RoutingTable, best map[netip.Prefix]*stubRoute) int {
	prefixes := make([]netip.Prefix, 0, len(best))
	for pfx := range best {
		prefixes = append(prefixes, pfx)
	}
	slices.SortFunc(prefixes, comparePrefix)

	n := 0
	for _, pfx := range prefixes {
		r := best[pfx]
		for _, d := range r.exits {
			table.AddNetworkRoute(pfx, d.NextHop, d.IfIndex, r.distance)
			n++
		}
	}

	return n
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}

	return a.Bits() - b.Bits()
}
