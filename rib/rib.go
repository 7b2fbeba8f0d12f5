package rib

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gaissmai/bart"
)

type Origin uint8

const (
	OriginConnected Origin = iota
	OriginStatic
	OriginGlobal
)

func (o Origin) String() string {
	switch o {
	case OriginConnected:
		return "connected"
	case OriginStatic:
		return "static"
	case OriginGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Route is a single forwarding entry. An invalid NextHop means the
// destination is directly reachable through IfIndex.
type Route struct {
	Destination netip.Prefix
	NextHop     netip.Addr
	IfIndex     uint32
	Metric      uint32
	Origin      Origin
}

func (r Route) IsHost() bool {
	return r.Destination.IsSingleIP()
}

func (r Route) String() string {
	via := "directly connected"
	if r.NextHop.IsValid() {
		via = "via " + r.NextHop.String()
	}

	return fmt.Sprintf("%-18s %s, if %d, metric %d, %s", r.Destination, via, r.IfIndex, r.Metric, r.Origin)
}

// EcmpPolicy decides which of several equal cost entries Select uses.
type EcmpPolicy uint8

const (
	// EcmpFirst always uses the first installed entry.
	EcmpFirst EcmpPolicy = iota
	// EcmpRandom picks an entry at random for every lookup.
	EcmpRandom
	// EcmpFlowHash hashes the source and destination addresses so a flow
	// always takes the same path.
	EcmpFlowHash
)

func (p EcmpPolicy) String() string {
	switch p {
	case EcmpFirst:
		return "first"
	case EcmpRandom:
		return "random"
	case EcmpFlowHash:
		return "flow-hash"
	default:
		return "unknown"
	}
}

func ParseEcmpPolicy(s string) (EcmpPolicy, error) {
	switch s {
	case "", "first":
		return EcmpFirst, nil
	case "random":
		return EcmpRandom, nil
	case "flow-hash":
		return EcmpFlowHash, nil
	default:
		return 0, fmt.Errorf("unknown ECMP policy: %s", s)
	}
}

// Table is a longest prefix match routing table. A destination may have
// several entries for equal cost paths. Identical entries are stored once.
type Table struct {
	mu     sync.RWMutex
	routes bart.Table[[]Route]
	policy EcmpPolicy
}

type Option func(*Table)

func WithEcmpPolicy(p EcmpPolicy) Option {
	return func(t *Table) {
		t.policy = p
	}
}

func NewTable(opts ...Option) *Table {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Table) SetEcmpPolicy(p EcmpPolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.policy = p
}

func (t *Table) EcmpPolicy() EcmpPolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.policy
}

func (t *Table) AddRoute(r Route) {
	r.Destination = r.Destination.Masked()

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, _ := t.routes.Get(r.Destination)
	if slices.Contains(existing, r) {
		return
	}

	t.routes.Insert(r.Destination, append(slices.Clone(existing), r))
}

func (t *Table) AddHostRoute(dst, nextHop netip.Addr, ifIndex uint32, metric uint32) {
	t.AddRoute(Route{
		Destination: netip.PrefixFrom(dst, dst.BitLen()),
		NextHop:     nextHop,
		IfIndex:     ifIndex,
		Metric:      metric,
		Origin:      OriginGlobal,
	})
}

func (t *Table) AddNetworkRoute(dst netip.Prefix, nextHop netip.Addr, ifIndex uint32, metric uint32) {
	t.AddRoute(Route{
		Destination: dst,
		NextHop:     nextHop,
		IfIndex:     ifIndex,
		Metric:      metric,
		Origin:      OriginGlobal,
	})
}

// RemoveGlobalRoutes deletes every route installed by global routing, leaving
// connected and static routes in place.
func (t *Table) RemoveGlobalRoutes() {
	t.RemoveRoutes(func(r Route) bool {
		return r.Origin == OriginGlobal
	})
}

// RemoveRoutes deletes every route for which match returns true.
func (t *Table) RemoveRoutes(match func(Route) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prefixes []netip.Prefix
	for pfx := range t.routes.All() {
		prefixes = append(prefixes, pfx)
	}

	for _, pfx := range prefixes {
		routes, _ := t.routes.Get(pfx)
		kept := slices.DeleteFunc(slices.Clone(routes), match)

		if len(kept) == 0 {
			t.routes.Delete(pfx)
		} else if len(kept) != len(routes) {
			t.routes.Insert(pfx, kept)
		}
	}
}

// Lookup returns every entry of the longest prefix matching addr.
func (t *Table) Lookup(addr netip.Addr) ([]Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes, ok := t.routes.Lookup(addr)
	if !ok {
		return nil, false
	}

	return slices.Clone(routes), true
}

// Select picks the single entry used to forward a packet from src to dst.
// Only the lowest metric entries of the longest matching prefix are
// considered. Ties are broken by the table's ECMP policy.
func (t *Table) Select(src, dst netip.Addr) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes, ok := t.routes.Lookup(dst)
	if !ok || len(routes) == 0 {
		return Route{}, false
	}

	best := routes[0].Metric
	for _, r := range routes[1:] {
		best = min(best, r.Metric)
	}

	var equal []Route
	for _, r := range routes {
		if r.Metric == best {
			equal = append(equal, r)
		}
	}

	switch t.policy {
	case EcmpRandom:
		return equal[rand.IntN(len(equal))], true
	case EcmpFlowHash:
		return equal[flowHash(src, dst)%uint64(len(equal))], true
	default:
		return equal[0], true
	}
}

func flowHash(src, dst netip.Addr) uint64 {
	d := xxhash.New()
	d.Write(src.AsSlice())
	d.Write(dst.AsSlice())
	return d.Sum64()
}

// Get returns the entries for exactly pfx.
func (t *Table) Get(pfx netip.Prefix) ([]Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes, ok := t.routes.Get(pfx.Masked())
	if !ok {
		return nil, false
	}

	return slices.Clone(routes), true
}

// Routes returns every entry ordered by destination, then next hop, then
// interface.
func (t *Table) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var all []Route
	for _, routes := range t.routes.All() {
		all = append(all, routes...)
	}

	slices.SortFunc(all, compareRoutes)

	return all
}

// Size returns the number of entries, counting each equal cost path.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, routes := range t.routes.All() {
		n += len(routes)
	}

	return n
}

func compareRoutes(a, b Route) int {
	if c := a.Destination.Addr().Compare(b.Destination.Addr()); c != 0 {
		return c
	}

	if a.Destination.Bits() != b.Destination.Bits() {
		return a.Destination.Bits() - b.Destination.Bits()
	}

	if a.Origin != b.Origin {
		return int(a.Origin) - int(b.Origin)
	}

	if c := a.NextHop.Compare(b.NextHop); c != 0 {
		return c
	}

	return int(a.IfIndex) - int(b.IfIndex)
}
