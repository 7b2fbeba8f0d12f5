package ospf

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/rbmk-project/common/runtimex"
)

var ErrUnknownRouter = errors.New("no router LSA for root")

// spfRun is the state of a single shortest path calculation rooted at one
// router. The LSDB's status fields are shared, so runs must not overlap.
type spfRun struct {
	db        *LSDB
	root      *Vertex
	tree      *SPFTree
	candidate *CandidateQueue
	ifIndexes map[netip.Addr]uint32
	log       *slog.Logger
}

// calculateSPF builds the shortest path tree rooted at rootID. ifIndexes maps
// the root's interface addresses to interface indexes.
func calculateSPF(db *LSDB, rootID netip.Addr, ifIndexes map[netip.Addr]uint32, log *slog.Logger) (*SPFTree, error) {
	rootLSA, ok := db.GetType(LSATypeRouter, rootID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRouter, rootID)
	}

	db.Initialize()

	root := newVertex(VertexRouter, rootLSA)
	root.SetDistanceFromRoot(0)
	rootLSA.Status = SPFInTree

	run := &spfRun{
		db:   db,
		root: root,
		tree: &SPFTree{
			Root:     root,
			Routers:  map[netip.Addr]*Vertex{root.ID: root},
			Networks: make(map[netip.Addr]*Vertex),
		},
		candidate: NewCandidateQueue(),
		ifIndexes: ifIndexes,
		log:       log.With("root", rootID),
	}

	run.next(root)

	for {
		v := run.candidate.Pop()
		if v == nil {
			break
		}

		runtimex.Assert(v.LSA.Status == SPFCandidate, "ospf: popped vertex is not a candidate")
		runtimex.Assert(v.NumRootExitDirections() > 0, "ospf: vertex reached the tree without an exit direction")

		v.LSA.Status = SPFInTree
		for _, p := range v.Parents() {
			p.AddChild(v)
		}
		run.tree.add(v)

		run.log.Debug("added vertex to tree", "vertex", v.ID, "type", v.Type, "distance", v.DistanceFromRoot(), "exits", len(v.RootExitDirections()))

		run.next(v)
	}

	run.candidate.Clear()

	return run.tree, nil
}

// next examines every vertex adjacent to v and updates the candidate queue.
func (r *spfRun) next(v *Vertex) {
	runtimex.Assert(!v.Processed(), "ospf: vertex expanded twice")
	v.SetProcessed(true)

	switch v.Type {
	case VertexRouter:
		for _, l := range v.LSA.Links {
			var want LSAType
			switch l.Type {
			case LinkTypePointToPoint:
				want = LSATypeRouter
			case LinkTypeTransitNetwork:
				want = LSATypeNetwork
			default:
				// stub networks are handled after the tree is built
				continue
			}

			wLSA, ok := r.db.GetType(want, l.LinkID)
			if !ok {
				r.log.Debug("skipping dangling link", "vertex", v.ID, "link", l)
				continue
			}

			r.relax(v, wLSA, &l, addMetric(v.DistanceFromRoot(), uint32(l.Metric)))
		}
	case VertexNetwork:
		for _, addr := range v.LSA.AttachedRouters {
			wLSA, ok := r.db.GetByLinkData(addr)
			if !ok || wLSA.Type != LSATypeRouter {
				r.log.Debug("skipping unknown attached router", "network", v.ID, "addr", addr)
				continue
			}

			r.relax(v, wLSA, nil, v.DistanceFromRoot())
		}
	}
}

func (r *spfRun) relax(v *Vertex, wLSA *LSA, l *LinkRecord, distance uint32) {
	runtimex.Assert(distance >= v.DistanceFromRoot(), "ospf: distance decreased along a path")

	switch wLSA.Status {
	case SPFInTree:
		return
	case SPFNotExplored:
		w := newVertex(vertexTypeFor(wLSA), wLSA)
		if !r.nexthop(v, w, l, distance) {
			return
		}

		wLSA.Status = SPFCandidate
		r.candidate.Push(w)
	case SPFCandidate:
		cw := r.candidate.Find(vertexTypeFor(wLSA), wLSA.LinkStateID)
		runtimex.Assert(cw != nil, "ospf: candidate LSA missing from queue")

		switch {
		case distance > cw.DistanceFromRoot():
			return
		case distance == cw.DistanceFromRoot():
			w := newVertex(cw.Type, wLSA)
			if !r.nexthop(v, w, l, distance) {
				return
			}

			cw.MergeRootExitDirections(w)
			cw.MergeParent(w)
		default:
			w := newVertex(cw.Type, wLSA)
			if !r.nexthop(v, w, l, distance) {
				return
			}

			cw.InheritRootExitDirections(w)
			cw.SetParent(v)
			cw.SetDistanceFromRoot(distance)
			r.candidate.Update(cw)
		}
	}
}

func vertexTypeFor(lsa *LSA) VertexType {
	switch lsa.Type {
	case LSATypeRouter:
		return VertexRouter
	case LSATypeNetwork:
		return VertexNetwork
	default:
		return VertexUnknown
	}
}

// nexthop fills in w's exit directions, distance and parent for a path from
// the root through v. l is the link from v to w when v is a router. It
// returns false if no usable exit direction exists.
func (r *spfRun) nexthop(v, w *Vertex, l *LinkRecord, distance uint32) bool {
	switch {
	case v == r.root && w.Type == VertexRouter:
		remote, ok := linkBack(w.LSA, v.LSA, l.LinkData)
		if !ok {
			r.log.Debug("neighbor has no link back to root", "neighbor", w.ID)
			return false
		}

		ifIndex, ok := r.ifIndexes[l.LinkData]
		if !ok {
			r.log.Debug("no interface for local address", "addr", l.LinkData)
			return false
		}

		w.AddRootExitDirection(remote.LinkData, ifIndex)
	case v == r.root:
		// w is a directly attached network
		ifIndex, ok := r.ifIndexes[l.LinkData]
		if !ok {
			r.log.Debug("no interface for local address", "addr", l.LinkData)
			return false
		}

		w.AddRootExitDirection(netip.Addr{}, ifIndex)
	case v.Type == VertexNetwork:
		// A direct exit onto the network becomes a hop to w's address on it.
		// Exits inherited from other parents carry over unchanged.
		for _, d := range v.RootExitDirections() {
			if d.NextHop.IsValid() {
				w.AddRootExitDirection(d.NextHop, d.IfIndex)
				continue
			}

			for _, remote := range w.LSA.Links {
				if remote.Type == LinkTypeTransitNetwork && remote.LinkID == v.ID {
					w.AddRootExitDirection(remote.LinkData, d.IfIndex)
				}
			}
		}
	default:
		w.InheritRootExitDirections(v)
	}

	if w.NumRootExitDirections() == 0 {
		return false
	}

	w.SetDistanceFromRoot(distance)
	w.SetParent(v)

	return true
}

// linkBack finds w's point-to-point record pointing at router v. When there
// are several parallel links, the one on the same subnet as localAddr, v's
// end of the link, wins.
func linkBack(w, v *LSA, localAddr netip.Addr) (LinkRecord, bool) {
	subnet := stubPrefixFor(v, localAddr)

	var first *LinkRecord
	for i := range w.Links {
		l := &w.Links[i]
		if l.Type != LinkTypePointToPoint || l.LinkID != v.LinkStateID {
			continue
		}

		if prefixContains(subnet, l.LinkData) {
			return *l, true
		}

		if first == nil {
			first = l
		}
	}

	if first == nil {
		return LinkRecord{}, false
	}

	return *first, true
}

// stubPrefixFor returns the stub network in lsa that contains addr.
func stubPrefixFor(lsa *LSA, addr netip.Addr) netip.Prefix {
	for _, l := range lsa.Links {
		pfx, ok := l.Prefix()
		if ok && pfx.Contains(addr) {
			return pfx
		}
	}

	return netip.Prefix{}
}
