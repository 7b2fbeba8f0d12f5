package topology

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRouter(t *testing.T, nw *Network, name string) *Node {
	t.Helper()

	n, err := nw.AddRouter(name)
	require.NoError(t, err)

	return n
}

func mustChannel(t *testing.T, nw *Network, name string, typ ChannelType) *Channel {
	t.Helper()

	ch, err := nw.AddChannel(name, typ)
	require.NoError(t, err)

	return ch
}

func mustInterface(t *testing.T, n *Node, ch *Channel, pfx string, metric uint16) *Interface {
	t.Helper()

	iface, err := n.AddInterface(ch, netip.MustParsePrefix(pfx), metric)
	require.NoError(t, err)

	return iface
}

func TestRouterIDs(t *testing.T) {
	nw := New()

	a := mustRouter(t, nw, "a")
	b := mustRouter(t, nw, "b")

	assert.Equal(t, netip.MustParseAddr("0.0.0.1"), a.RouterID())
	assert.Equal(t, netip.MustParseAddr("0.0.0.2"), b.RouterID())

	_, err := nw.AddRouter("a")
	assert.True(t, errors.Is(err, ErrDuplicateName))

	err = nw.SetRouterID(b, a.RouterID())
	assert.True(t, errors.Is(err, ErrDuplicateRouter))

	require.NoError(t, nw.SetRouterID(b, netip.MustParseAddr("0.0.0.3")))
	c := mustRouter(t, nw, "c")
	assert.Equal(t, netip.MustParseAddr("0.0.0.4"), c.RouterID(), "assigned ids skip ids already in use")
}

func TestPointToPointLinks(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")
	b := mustRouter(t, nw, "b")
	ch := mustChannel(t, nw, "ab", PointToPoint)

	mustInterface(t, a, ch, "10.0.1.1/30", 4)
	mustInterface(t, b, ch, "10.0.1.2/30", 4)

	assert.Equal(t, []ospf.Link{
		{
			Type:     ospf.LinkTypePointToPoint,
			IfIndex:  1,
			LinkID:   b.RouterID(),
			LinkData: netip.MustParseAddr("10.0.1.1"),
			Metric:   4,
		},
		{
			Type:     ospf.LinkTypeStubNetwork,
			IfIndex:  1,
			LinkID:   netip.MustParseAddr("10.0.1.0"),
			LinkData: netip.MustParseAddr("255.255.255.252"),
			Metric:   4,
		},
	}, a.Links())

	assert.Empty(t, a.TransitNetworks())

	_, err := mustRouter(t, nw, "c").AddInterface(ch, netip.MustParsePrefix("10.0.9.1/30"), 1)
	assert.True(t, errors.Is(err, ErrChannelFull))
}

func TestBroadcastLinks(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")
	b := mustRouter(t, nw, "b")
	c := mustRouter(t, nw, "c")
	lan := mustChannel(t, nw, "lan", Broadcast)

	mustInterface(t, b, lan, "10.0.0.2/24", 1)
	mustInterface(t, c, lan, "10.0.0.3/24", 1)
	mustInterface(t, a, lan, "10.0.0.1/24", 1)

	dr := netip.MustParseAddr("10.0.0.1")

	assert.Equal(t, []ospf.Link{{
		Type:     ospf.LinkTypeTransitNetwork,
		IfIndex:  1,
		LinkID:   dr,
		LinkData: netip.MustParseAddr("10.0.0.2"),
		Metric:   1,
	}}, b.Links())

	networks := c.TransitNetworks()
	require.Len(t, networks, 1)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.1/24"), networks[0].Prefix)
	assert.Equal(t, a.RouterID(), networks[0].DesignatedRouter)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("10.0.0.3"),
	}, networks[0].AttachedRouters)
}

func TestLoneBroadcastInterfaceIsStub(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")
	lan := mustChannel(t, nw, "lan", Broadcast)
	mustInterface(t, a, lan, "192.168.7.1/24", 0)

	links := a.Links()
	require.Len(t, links, 1)
	assert.Equal(t, ospf.LinkTypeStubNetwork, links[0].Type)
	assert.Equal(t, netip.MustParseAddr("192.168.7.0"), links[0].LinkID)
	assert.Equal(t, uint16(1), links[0].Metric, "zero metric defaults to 1")
}

func TestDownInterfaceIsHidden(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")
	b := mustRouter(t, nw, "b")
	ch := mustChannel(t, nw, "ab", PointToPoint)

	ia := mustInterface(t, a, ch, "10.0.1.1/30", 1)
	mustInterface(t, b, ch, "10.0.1.2/30", 1)

	ia.SetUp(false)
	assert.Empty(t, a.Links())

	links := b.Links()
	require.Len(t, links, 1)
	assert.Equal(t, ospf.LinkTypeStubNetwork, links[0].Type, "a down peer leaves only the subnet")

	_, ok := a.Lookup(netip.MustParseAddr("10.0.1.2"))
	assert.False(t, ok, "down interfaces have no connected route")

	ia.SetUp(true)
	routes, ok := a.Lookup(netip.MustParseAddr("10.0.1.2"))
	require.True(t, ok)
	assert.Equal(t, rib.OriginConnected, routes[0].Origin)
}

func TestAddInterfaceValidation(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")
	b := mustRouter(t, nw, "b")
	lan := mustChannel(t, nw, "lan", Broadcast)

	mustInterface(t, a, lan, "10.0.0.1/24", 1)

	tests := []struct {
		pfx string
		err error
	}{
		{"10.0.0.1/24", ErrDuplicateAddr},
		{"10.0.1.2/24", ErrSubnetMismatch},
		{"10.0.0.0/24", ErrInvalidPrefix},
		{"10.0.0.9/32", ErrInvalidPrefix},
		{"10.0.0.255/24", ErrInvalidPrefix},
		{"2001:db8::1/64", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		_, err := b.AddInterface(lan, netip.MustParsePrefix(tt.pfx), 1)
		assert.True(t, errors.Is(err, tt.err), "%s: got %v", tt.pfx, err)
	}
}

func TestInjectWithdraw(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")

	a.InjectRoute(netip.MustParsePrefix("192.168.1.7/16"))
	a.InjectRoute(netip.MustParsePrefix("192.168.0.0/16"))
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.0.0/16")}, a.ExternalRoutes())

	assert.True(t, a.WithdrawRoute(netip.MustParsePrefix("192.168.0.0/16")))
	assert.False(t, a.WithdrawRoute(netip.MustParsePrefix("192.168.0.0/16")))
	assert.Empty(t, a.ExternalRoutes())
}

func TestFindRouter(t *testing.T) {
	nw := New()
	a := mustRouter(t, nw, "a")

	n, err := nw.FindRouter("a")
	require.NoError(t, err)
	assert.Same(t, a, n)

	n, err = nw.FindRouter("0.0.0.1")
	require.NoError(t, err)
	assert.Same(t, a, n)

	_, err = nw.FindRouter("z")
	assert.True(t, errors.Is(err, ErrUnknownRouter))
}
