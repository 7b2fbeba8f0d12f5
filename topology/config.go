package topology

import (
	"fmt"

	"github.com/davidbalbert/globalrouting/config"
)

// FromConfig builds a network from a validated topology file. opts are
// applied after the file's own routing settings.
func FromConfig(conf *config.Config, opts ...Option) (*Network, error) {
	nw := New(append([]Option{WithEcmpPolicy(conf.Routing.EcmpPolicy)}, opts...)...)

	for _, c := range conf.Channels {
		typ := PointToPoint
		if c.Type == config.ChannelBroadcast {
			typ = Broadcast
		}

		if _, err := nw.AddChannel(c.Name, typ); err != nil {
			return nil, err
		}
	}

	// Explicit router ids are applied after every router exists so an
	// automatically assigned id can't collide with one set later in the file.
	nodes := make([]*Node, len(conf.Routers))
	for i, rc := range conf.Routers {
		n, err := nw.AddRouter(rc.Name)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}

	for i, rc := range conf.Routers {
		if !rc.RouterID.IsValid() {
			continue
		}

		if other, ok := nw.NodeByID(rc.RouterID); ok && other != nodes[i] {
			if err := nw.reassignRouterID(other); err != nil {
				return nil, err
			}
		}

		if err := nw.SetRouterID(nodes[i], rc.RouterID); err != nil {
			return nil, err
		}
	}

	for i, rc := range conf.Routers {
		n := nodes[i]

		for j, ic := range rc.Interfaces {
			ch, ok := nw.Channel(ic.Channel)
			if !ok {
				return nil, fmt.Errorf("router %s interface %d: unknown channel %s", rc.Name, j, ic.Channel)
			}

			iface, err := n.AddInterface(ch, ic.Prefix, uint16(ic.Metric))
			if err != nil {
				return nil, err
			}

			if ic.Down {
				iface.setUp(false)
			}
		}

		for _, pfx := range rc.Injected {
			n.InjectRoute(pfx)
		}
	}

	return nw, nil
}
