package topology

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"github.com/davidbalbert/globalrouting/sync"
	"go4.org/netipx"
)

var (
	ErrDuplicateName   = errors.New("name already in use")
	ErrDuplicateAddr   = errors.New("address already in use")
	ErrChannelFull     = errors.New("point-to-point channel already has two interfaces")
	ErrSubnetMismatch  = errors.New("interface is not on the channel's subnet")
	ErrInvalidPrefix   = errors.New("interface prefix must be an IPv4 host address with a prefix length")
	ErrDuplicateRouter = errors.New("router id already in use")
	ErrUnknownRouter   = errors.New("no such router")
	ErrUnknownIface    = errors.New("no such interface")
	ErrNoRoute         = errors.New("no route to destination")
	ErrRoutingLoop     = errors.New("routing loop")
)

type ChannelType uint8

const (
	PointToPoint ChannelType = iota
	Broadcast
)

func (t ChannelType) String() string {
	switch t {
	case PointToPoint:
		return "point-to-point"
	case Broadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Channel connects interfaces on one subnet.
type Channel struct {
	Name string
	Type ChannelType

	ifaces []*Interface
}

func (c *Channel) Interfaces() []*Interface {
	return c.ifaces
}

// up returns the channel's interfaces that are up.
func (c *Channel) up() []*Interface {
	var ifaces []*Interface
	for _, iface := range c.ifaces {
		if iface.up {
			ifaces = append(ifaces, iface)
		}
	}

	return ifaces
}

// designatedRouter is the up interface with the lowest address.
func (c *Channel) designatedRouter() *Interface {
	var dr *Interface
	for _, iface := range c.up() {
		if dr == nil || iface.Addr().Less(dr.Addr()) {
			dr = iface
		}
	}

	return dr
}

type Interface struct {
	Name   string
	Index  uint32
	Prefix netip.Prefix
	Metric uint16

	node    *Node
	channel *Channel
	up      bool
}

func (i *Interface) Addr() netip.Addr {
	return i.Prefix.Addr()
}

func (i *Interface) Node() *Node {
	return i.node
}

func (i *Interface) Channel() *Channel {
	return i.channel
}

func (i *Interface) IsUp() bool {
	return i.up
}

// SetUp brings the interface up or down. Down interfaces are invisible to
// routing and have no connected route. Listeners on the network's Events
// are told about the change.
func (i *Interface) SetUp(up bool) {
	if !i.setUp(up) {
		return
	}

	i.node.network.events.NotifyChange(InterfaceEvent{
		Router:    i.node.Name,
		Interface: i.Name,
		Up:        up,
	})
}

func (i *Interface) setUp(up bool) bool {
	if i.up == up {
		return false
	}
	i.up = up

	if up {
		i.node.addConnected(i)
	} else {
		i.node.table.RemoveRoutes(func(r rib.Route) bool {
			return r.Origin == rib.OriginConnected && r.IfIndex == i.Index
		})
	}

	return true
}

// peers returns the other up interfaces on i's channel.
func (i *Interface) peers() []*Interface {
	var peers []*Interface
	for _, other := range i.channel.up() {
		if other != i {
			peers = append(peers, other)
		}
	}

	return peers
}

type Node struct {
	Name string

	id       netip.Addr
	ifaces   []*Interface
	table    *rib.Table
	external []netip.Prefix
	network  *Network
}

func (n *Node) RouterID() netip.Addr {
	return n.id
}

func (n *Node) Interfaces() []*Interface {
	return n.ifaces
}

func (n *Node) Table() *rib.Table {
	return n.table
}

func (n *Node) RoutingTable() ospf.RoutingTable {
	return n.table
}

func (n *Node) Lookup(addr netip.Addr) ([]rib.Route, bool) {
	return n.table.Lookup(addr)
}

func (n *Node) InterfaceByName(name string) (*Interface, error) {
	for _, iface := range n.ifaces {
		if iface.Name == name {
			return iface, nil
		}
	}

	return nil, fmt.Errorf("%s: %w: %s", n.Name, ErrUnknownIface, name)
}

// Interface returns the interface with the given index.
func (n *Node) Interface(index uint32) (*Interface, bool) {
	for _, iface := range n.ifaces {
		if iface.Index == index {
			return iface, true
		}
	}

	return nil, false
}

// AddInterface attaches n to ch with the address and prefix length in pfx.
// A zero metric means 1.
func (n *Node) AddInterface(ch *Channel, pfx netip.Prefix, metric uint16) (*Interface, error) {
	if !validInterfacePrefix(pfx) {
		return nil, fmt.Errorf("%s: %s: %w", n.Name, pfx, ErrInvalidPrefix)
	}

	if ch.Type == PointToPoint && len(ch.ifaces) >= 2 {
		return nil, fmt.Errorf("%s: channel %s: %w", n.Name, ch.Name, ErrChannelFull)
	}

	for _, other := range ch.ifaces {
		if other.Prefix.Masked() != pfx.Masked() {
			return nil, fmt.Errorf("%s: %s on channel %s (%s): %w", n.Name, pfx, ch.Name, other.Prefix.Masked(), ErrSubnetMismatch)
		}
	}

	if n.network.addrInUse(pfx.Addr()) {
		return nil, fmt.Errorf("%s: %s: %w", n.Name, pfx.Addr(), ErrDuplicateAddr)
	}

	if metric == 0 {
		metric = 1
	}

	iface := &Interface{
		Name:    fmt.Sprintf("eth%d", len(n.ifaces)),
		Index:   uint32(len(n.ifaces) + 1),
		Prefix:  pfx,
		Metric:  metric,
		node:    n,
		channel: ch,
		up:      true,
	}

	n.ifaces = append(n.ifaces, iface)
	ch.ifaces = append(ch.ifaces, iface)
	n.addConnected(iface)

	return iface, nil
}

// validInterfacePrefix reports whether pfx names a usable IPv4 host on its
// subnet. /31 subnets have no network or broadcast address.
func validInterfacePrefix(pfx netip.Prefix) bool {
	if !pfx.IsValid() || !pfx.Addr().Is4() || pfx.IsSingleIP() {
		return false
	}

	if pfx.Bits() == 31 {
		return true
	}

	addr := pfx.Addr()
	return addr != pfx.Masked().Addr() && addr != netipx.PrefixLastIP(pfx)
}

func (n *Node) addConnected(iface *Interface) {
	n.table.AddRoute(rib.Route{
		Destination: iface.Prefix.Masked(),
		IfIndex:     iface.Index,
		Origin:      rib.OriginConnected,
	})
}

// InjectRoute advertises pfx into routing as an external route originated
// by n.
func (n *Node) InjectRoute(pfx netip.Prefix) {
	pfx = pfx.Masked()
	if slices.Contains(n.external, pfx) {
		return
	}

	n.external = append(n.external, pfx)
}

// WithdrawRoute stops advertising pfx. It reports whether pfx was injected.
func (n *Node) WithdrawRoute(pfx netip.Prefix) bool {
	pfx = pfx.Masked()

	i := slices.Index(n.external, pfx)
	if i < 0 {
		return false
	}

	n.external = slices.Delete(n.external, i, i+1)

	return true
}

func (n *Node) ExternalRoutes() []netip.Prefix {
	return slices.Clone(n.external)
}

// Links describes every up interface the way a router LSA would.
//
// A point-to-point interface with a peer yields a point-to-point link to the
// peer's router id and a stub link for the subnet. A broadcast interface
// shared with other routers yields a transit link to the designated router's
// address. Anything else is a stub network.
func (n *Node) Links() []ospf.Link {
	var links []ospf.Link

	for _, iface := range n.ifaces {
		if !iface.up {
			continue
		}

		peers := iface.peers()
		stub := ospf.Link{
			Type:     ospf.LinkTypeStubNetwork,
			IfIndex:  iface.Index,
			LinkID:   iface.Prefix.Masked().Addr(),
			LinkData: ospf.MaskFromBits(iface.Prefix.Bits()),
			Metric:   iface.Metric,
		}

		switch {
		case len(peers) == 0:
			links = append(links, stub)
		case iface.channel.Type == PointToPoint:
			links = append(links, ospf.Link{
				Type:     ospf.LinkTypePointToPoint,
				IfIndex:  iface.Index,
				LinkID:   peers[0].node.id,
				LinkData: iface.Addr(),
				Metric:   iface.Metric,
			}, stub)
		default:
			links = append(links, ospf.Link{
				Type:     ospf.LinkTypeTransitNetwork,
				IfIndex:  iface.Index,
				LinkID:   iface.channel.designatedRouter().Addr(),
				LinkData: iface.Addr(),
				Metric:   iface.Metric,
			})
		}
	}

	return links
}

// TransitNetworks lists the broadcast networks n shares with other routers.
func (n *Node) TransitNetworks() []ospf.TransitNetwork {
	var networks []ospf.TransitNetwork

	for _, iface := range n.ifaces {
		if !iface.up || iface.channel.Type != Broadcast || len(iface.peers()) == 0 {
			continue
		}

		dr := iface.channel.designatedRouter()

		var attached []netip.Addr
		for _, other := range iface.channel.up() {
			attached = append(attached, other.Addr())
		}
		slices.SortFunc(attached, netip.Addr.Compare)

		networks = append(networks, ospf.TransitNetwork{
			Prefix:           dr.Prefix,
			DesignatedRouter: dr.node.id,
			AttachedRouters:  attached,
		})
	}

	return networks
}

// InterfaceEvent reports an interface going up or down.
type InterfaceEvent struct {
	Router    string
	Interface string
	Up        bool
}

// Network is a simulated topology of routers joined by channels.
type Network struct {
	nodes    []*Node
	byName   map[string]*Node
	channels map[string]*Channel
	nextID   uint32
	ecmp     rib.EcmpPolicy
	events   *sync.Notifier[InterfaceEvent]
}

type Option func(*Network)

// WithEvents publishes interface changes on events instead of a notifier
// owned by the network. Sharing one notifier lets a listener outlive the
// network.
func WithEvents(events *sync.Notifier[InterfaceEvent]) Option {
	return func(nw *Network) {
		nw.events = events
	}
}

// WithEcmpPolicy sets the ECMP policy of every router's routing table.
func WithEcmpPolicy(p rib.EcmpPolicy) Option {
	return func(nw *Network) {
		nw.ecmp = p
	}
}

func New(opts ...Option) *Network {
	nw := &Network{
		byName:   make(map[string]*Node),
		channels: make(map[string]*Channel),
	}

	for _, opt := range opts {
		opt(nw)
	}

	if nw.events == nil {
		nw.events = sync.NewNotifier(InterfaceEvent{})
	}

	return nw
}

func (nw *Network) Events() *sync.Notifier[InterfaceEvent] {
	return nw.events
}

// AddRouter adds a router. Router ids are assigned in order starting at
// 0.0.0.1.
func (nw *Network) AddRouter(name string) (*Node, error) {
	if _, ok := nw.byName[name]; ok {
		return nil, fmt.Errorf("router %s: %w", name, ErrDuplicateName)
	}

	n := &Node{
		Name:    name,
		id:      nw.nextFreeID(),
		table:   rib.NewTable(rib.WithEcmpPolicy(nw.ecmp)),
		network: nw,
	}

	nw.nodes = append(nw.nodes, n)
	nw.byName[name] = n

	return n, nil
}

// SetRouterID overrides the router id assigned to n.
func (nw *Network) SetRouterID(n *Node, id netip.Addr) error {
	if !id.Is4() {
		return fmt.Errorf("router %s: router id must be an IPv4 address", n.Name)
	}

	if other, ok := nw.NodeByID(id); ok && other != n {
		return fmt.Errorf("router %s: %s: %w", n.Name, id, ErrDuplicateRouter)
	}

	n.id = id

	return nil
}

func (nw *Network) nextFreeID() netip.Addr {
	for {
		nw.nextID++
		id := addrFromUint32(nw.nextID)
		if _, taken := nw.NodeByID(id); !taken {
			return id
		}
	}
}

// reassignRouterID gives n the next unused automatic router id.
func (nw *Network) reassignRouterID(n *Node) error {
	return nw.SetRouterID(n, nw.nextFreeID())
}

func (nw *Network) AddChannel(name string, typ ChannelType) (*Channel, error) {
	if _, ok := nw.channels[name]; ok {
		return nil, fmt.Errorf("channel %s: %w", name, ErrDuplicateName)
	}

	ch := &Channel{Name: name, Type: typ}
	nw.channels[name] = ch

	return ch, nil
}

func (nw *Network) Channel(name string) (*Channel, bool) {
	ch, ok := nw.channels[name]
	return ch, ok
}

func (nw *Network) Node(name string) (*Node, bool) {
	n, ok := nw.byName[name]
	return n, ok
}

// FindRouter looks a router up by name, then by router id.
func (nw *Network) FindRouter(nameOrID string) (*Node, error) {
	if n, ok := nw.byName[nameOrID]; ok {
		return n, nil
	}

	if id, err := netip.ParseAddr(nameOrID); err == nil {
		if n, ok := nw.NodeByID(id); ok {
			return n, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownRouter, nameOrID)
}

func (nw *Network) NodeByID(id netip.Addr) (*Node, bool) {
	for _, n := range nw.nodes {
		if n.id == id {
			return n, true
		}
	}

	return nil, false
}

func (nw *Network) Nodes() []*Node {
	return nw.nodes
}

func (nw *Network) Routers() []ospf.Router {
	routers := make([]ospf.Router, len(nw.nodes))
	for i, n := range nw.nodes {
		routers[i] = n
	}

	return routers
}

// Hop is one router on a forwarding path and the route it used.
type Hop struct {
	Node  *Node
	Route rib.Route
}

// Trace forwards a packet from src toward dst one router at a time using
// each router's table and ECMP policy. The packet's source address is the
// first up interface of src. It returns the hops taken before dst was
// reached.
func (nw *Network) Trace(src *Node, dst netip.Addr) ([]Hop, error) {
	var srcAddr netip.Addr
	for _, iface := range src.ifaces {
		if iface.up {
			srcAddr = iface.Addr()
			break
		}
	}

	var hops []Hop
	cur := src
	for range len(nw.nodes) + 1 {
		if cur.owns(dst) {
			return hops, nil
		}

		r, ok := cur.table.Select(srcAddr, dst)
		if !ok {
			return hops, fmt.Errorf("%s: %w: %s", cur.Name, ErrNoRoute, dst)
		}
		hops = append(hops, Hop{Node: cur, Route: r})

		out, ok := cur.Interface(r.IfIndex)
		if !ok || !out.up {
			return hops, fmt.Errorf("%s: %w: %s: interface %d is down", cur.Name, ErrNoRoute, dst, r.IfIndex)
		}

		next := r.NextHop
		if !next.IsValid() {
			next = dst
		}

		neighbor := out.channel.owner(next)
		if neighbor == nil {
			return hops, fmt.Errorf("%s: %w: %s: nobody on %s has %s", cur.Name, ErrNoRoute, dst, out.channel.Name, next)
		}

		cur = neighbor
	}

	return hops, fmt.Errorf("%w: %s -> %s", ErrRoutingLoop, src.Name, dst)
}

func (n *Node) owns(addr netip.Addr) bool {
	for _, iface := range n.ifaces {
		if iface.up && iface.Addr() == addr {
			return true
		}
	}

	return false
}

// owner returns the node with an up interface on c that has addr.
func (c *Channel) owner(addr netip.Addr) *Node {
	for _, iface := range c.up() {
		if iface.Addr() == addr {
			return iface.node
		}
	}

	return nil
}

func (nw *Network) addrInUse(addr netip.Addr) bool {
	for _, n := range nw.nodes {
		for _, iface := range n.ifaces {
			if iface.Addr() == addr {
				return true
			}
		}
	}

	return false
}

func addrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
