package ospf

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

var ErrNoTopology = errors.New("no routers in topology")

// Link describes one of a router's interfaces as seen by routing. The fields
// follow LinkRecord, plus the index of the interface the link is attached to.
type Link struct {
	Type     LinkType
	IfIndex  uint32
	LinkID   netip.Addr
	LinkData netip.Addr
	Metric   uint16
}

// TransitNetwork is a broadcast network with more than one router on it.
// Prefix is the designated router's interface address and prefix length.
type TransitNetwork struct {
	Prefix           netip.Prefix
	DesignatedRouter netip.Addr
	AttachedRouters  []netip.Addr
}

type RoutingTable interface {
	AddHostRoute(dst, nextHop netip.Addr, ifIndex uint32, metric uint32)
	AddNetworkRoute(dst netip.Prefix, nextHop netip.Addr, ifIndex uint32, metric uint32)
	RemoveGlobalRoutes()
}

type Router interface {
	RouterID() netip.Addr
	Links() []Link
	TransitNetworks() []TransitNetwork
	ExternalRoutes() []netip.Prefix
	RoutingTable() RoutingTable
}

type Topology interface {
	Routers() []Router
}

// RouteManager computes routes for every router in a topology and installs
// them into each router's routing table. Passes are serialized.
type RouteManager struct {
	topo    Topology
	log     *slog.Logger
	metrics *Metrics

	mu        sync.Mutex
	db        *LSDB
	routers   []Router
	ifIndexes map[netip.Addr]map[netip.Addr]uint32

	stubDefaults bool
}

func NewRouteManager(topo Topology, logger *slog.Logger) *RouteManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &RouteManager{
		topo: topo,
		log:  logger,
		db:   NewLSDB(),
	}
}

// SetStubDefaultRoutes makes routers with a single point-to-point link and
// no other connections to routers install a default route to their
// neighbor instead of running SPF.
func (m *RouteManager) SetStubDefaultRoutes(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stubDefaults = enabled
}

func (m *RouteManager) SetMetrics(metrics *Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = metrics
}

// Populate builds the link state database and installs routes on every
// router. An empty topology installs nothing.
func (m *RouteManager) Populate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.populate()
}

// Recompute rebuilds the link state database from the current topology,
// then replaces every router's global routes. If the database can't be
// built, existing routes are left alone.
func (m *RouteManager) Recompute() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.topo == nil || len(m.topo.Routers()) == 0 {
		return ErrNoTopology
	}

	if err := m.buildDatabase(); err != nil {
		return err
	}

	for _, r := range m.routers {
		r.RoutingTable().RemoveGlobalRoutes()
	}

	if m.metrics != nil {
		m.metrics.Recomputations.Inc()
	}

	return m.initializeAll()
}

// Database returns the link state database built by the last pass.
func (m *RouteManager) Database() *LSDB {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db
}

// Calculate runs SPF rooted at routerID against the current database without
// installing routes.
func (m *RouteManager) Calculate(routerID netip.Addr) (*SPFTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return calculateSPF(m.db, routerID, m.ifIndexes[routerID], m.log)
}

func (m *RouteManager) populate() error {
	if err := m.buildDatabase(); err != nil {
		return err
	}

	return m.initializeAll()
}

// initializeAll runs SPF for every router in the current database and
// installs the results.
func (m *RouteManager) initializeAll() error {
	total := 0
	for _, r := range m.routers {
		n, err := m.initializeRoutes(r)
		if err != nil {
			return err
		}

		total += n
	}

	m.log.Info("installed global routes", "routers", len(m.routers), "lsas", m.db.Len(), "routes", total)

	if m.metrics != nil {
		m.metrics.RoutesInstalled.Set(float64(total))
	}

	return nil
}

// buildDatabase discovers every router and builds a fresh LSDB: one router
// LSA per router, one network LSA per transit network and one AS-external LSA
// per injected route.
func (m *RouteManager) buildDatabase() error {
	db := NewLSDB()
	ifIndexes := make(map[netip.Addr]map[netip.Addr]uint32)
	networks := make(map[netip.Addr]bool)

	var routers []Router
	if m.topo != nil {
		routers = m.topo.Routers()
	}

	for _, r := range routers {
		id := r.RouterID()
		links := r.Links()

		records := make([]LinkRecord, 0, len(links))
		local := make(map[netip.Addr]uint32)
		for _, l := range links {
			records = append(records, LinkRecord{
				Type:     l.Type,
				LinkID:   l.LinkID,
				LinkData: l.LinkData,
				Metric:   l.Metric,
			})

			if l.Type != LinkTypeStubNetwork {
				local[l.LinkData] = l.IfIndex
			}
		}

		if err := db.Insert(id, NewRouterLSA(id, records)); err != nil {
			return fmt.Errorf("router %s: %w", id, err)
		}
		ifIndexes[id] = local

		for _, n := range r.TransitNetworks() {
			drAddr := n.Prefix.Addr()
			if networks[drAddr] {
				continue
			}
			networks[drAddr] = true

			lsa := NewNetworkLSA(drAddr, n.DesignatedRouter, MaskFromBits(n.Prefix.Bits()), n.AttachedRouters)
			if err := db.Insert(drAddr, lsa); err != nil {
				return fmt.Errorf("network %s: %w", n.Prefix, err)
			}
		}

		for _, pfx := range r.ExternalRoutes() {
			if err := db.Insert(pfx.Masked().Addr(), NewASExternalLSA(id, pfx)); err != nil {
				return fmt.Errorf("router %s: external route %s: %w", id, pfx, err)
			}
		}
	}

	m.db = db
	m.routers = routers
	m.ifIndexes = ifIndexes

	if m.metrics != nil {
		counts := make(map[LSAType]int)
		for _, lsa := range db.LSAs() {
			counts[lsa.Type]++
		}

		for _, t := range []LSAType{LSATypeRouter, LSATypeNetwork, LSATypeASExternal} {
			m.metrics.LSDBSize.WithLabelValues(t.String()).Set(float64(counts[t]))
		}
	}

	m.log.Debug("built link state database", "routers", len(routers), "lsas", db.Len())

	return nil
}

var defaultRoute = netip.PrefixFrom(netip.IPv4Unspecified(), 0)

// stubDefault returns the exit direction of a router whose only link to
// another router is a single point-to-point link.
func (m *RouteManager) stubDefault(id netip.Addr) (RootExitDirection, uint32, bool) {
	root, ok := m.db.GetType(LSATypeRouter, id)
	if !ok {
		return RootExitDirection{}, 0, false
	}

	var only *LinkRecord
	for i := range root.Links {
		l := &root.Links[i]
		if l.Type != LinkTypePointToPoint && l.Type != LinkTypeTransitNetwork {
			continue
		}

		if only != nil {
			return RootExitDirection{}, 0, false
		}
		only = l
	}

	if only == nil || only.Type != LinkTypePointToPoint {
		return RootExitDirection{}, 0, false
	}

	neighbor, ok := m.db.GetType(LSATypeRouter, only.LinkID)
	if !ok {
		return RootExitDirection{}, 0, false
	}

	remote, ok := linkBack(neighbor, root, only.LinkData)
	if !ok {
		return RootExitDirection{}, 0, false
	}

	ifIndex, ok := m.ifIndexes[id][only.LinkData]
	if !ok {
		return RootExitDirection{}, 0, false
	}

	return RootExitDirection{NextHop: remote.LinkData, IfIndex: ifIndex}, uint32(only.Metric), true
}

// initializeRoutes runs SPF rooted at r and installs the result.
func (m *RouteManager) initializeRoutes(r Router) (int, error) {
	id := r.RouterID()

	if m.stubDefaults {
		if d, metric, ok := m.stubDefault(id); ok {
			r.RoutingTable().AddNetworkRoute(defaultRoute, d.NextHop, d.IfIndex, metric)
			m.log.Debug("installed default route for stub router", "router", id, "exit", d)
			return 1, nil
		}
	}

	start := time.Now()
	tree, err := calculateSPF(m.db, id, m.ifIndexes[id], m.log)
	if m.metrics != nil {
		m.metrics.SPFDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if m.metrics != nil {
			m.metrics.SPFRuns.WithLabelValues("error").Inc()
		}
		return 0, err
	}

	if m.metrics != nil {
		m.metrics.SPFRuns.WithLabelValues("ok").Inc()
	}

	n := m.install(tree, r.RoutingTable())

	m.log.Debug("installed routes", "router", id, "vertices", tree.Len(), "routes", n)

	return n, nil
}
