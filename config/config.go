package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/netip"
	"os"
	"strconv"

	"github.com/davidbalbert/globalrouting/rib"
	"gopkg.in/yaml.v3"
)

const (
	ChannelPointToPoint = "point-to-point"
	ChannelBroadcast    = "broadcast"
)

type Config struct {
	Routing  RoutingConfig   `yaml:"routing"`
	Channels []ChannelConfig `yaml:"channels"`
	Routers  []RouterConfig  `yaml:"routers"`
}

type RoutingConfig struct {
	ECMP                     string `yaml:"ecmp"`
	StubDefaultRoutes        bool   `yaml:"stub-default-routes"`
	RespondToInterfaceEvents *bool  `yaml:"respond-to-interface-events"`

	EcmpPolicy rib.EcmpPolicy `yaml:"-"`
}

// InterfaceEvents reports whether interface changes trigger a recompute.
// It defaults to true.
func (r RoutingConfig) InterfaceEvents() bool {
	return r.RespondToInterfaceEvents == nil || *r.RespondToInterfaceEvents
}

type ChannelConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type RouterConfig struct {
	Name         string            `yaml:"name"`
	RawRouterID  any               `yaml:"router-id"`
	Interfaces   []InterfaceConfig `yaml:"interfaces"`
	StaticRoutes []string          `yaml:"static-routes"`

	RouterID netip.Addr     `yaml:"-"`
	Injected []netip.Prefix `yaml:"-"`
}

type InterfaceConfig struct {
	Channel string `yaml:"channel"`
	Address string `yaml:"address"`
	Metric  int    `yaml:"metric"`
	Down    bool   `yaml:"down"`

	Prefix netip.Prefix `yaml:"-"`
}

func LoadConfig(path string) (*Config, error) {
	s, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(string(s))
}

// ParseConfig parses, defaults and validates a topology file.
func ParseConfig(s string) (*Config, error) {
	var c Config

	dec := yaml.NewDecoder(bytes.NewBufferString(s))
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := c.parse(); err != nil {
		return nil, err
	}

	c.setDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err == nil {
		return uint32(n), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, fmt.Errorf("must be an IPv4 address or an unsigned 32 bit integer")
	}

	return binary.BigEndian.Uint32(addr.AsSlice()), nil
}

func addrFromID(id uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return netip.AddrFrom4(b)
}

// parse converts the string fields into addresses and prefixes.
func (c *Config) parse() error {
	policy, err := rib.ParseEcmpPolicy(c.Routing.ECMP)
	if err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	c.Routing.EcmpPolicy = policy

	for i := range c.Routers {
		r := &c.Routers[i]

		switch v := r.RawRouterID.(type) {
		case nil:
		case string:
			id, err := parseID(v)
			if err != nil {
				return fmt.Errorf("router %s: invalid router-id: %s", r.Name, err)
			} else if id == 0 {
				return fmt.Errorf("router %s: router-id must be positive: %s", r.Name, v)
			}
			r.RouterID = addrFromID(id)
		case int:
			if v <= 0 {
				return fmt.Errorf("router %s: router-id must be positive: %d", r.Name, v)
			} else if int64(v) > math.MaxUint32 {
				return fmt.Errorf("router %s: router-id too big: %d", r.Name, v)
			}
			r.RouterID = addrFromID(uint32(v))
		default:
			return fmt.Errorf("router %s: router-id must be an IPv4 address or an unsigned 32 bit integer", r.Name)
		}

		for j := range r.Interfaces {
			iface := &r.Interfaces[j]

			pfx, err := netip.ParsePrefix(iface.Address)
			if err != nil {
				return fmt.Errorf("router %s interface %d: invalid address: %s", r.Name, j, iface.Address)
			}
			if !pfx.Addr().Is4() {
				return fmt.Errorf("router %s interface %d: address must be IPv4: %s", r.Name, j, iface.Address)
			}

			iface.Prefix = pfx
		}

		for _, s := range r.StaticRoutes {
			pfx, err := netip.ParsePrefix(s)
			if err != nil || !pfx.Addr().Is4() {
				return fmt.Errorf("router %s: invalid static route: %s", r.Name, s)
			}

			r.Injected = append(r.Injected, pfx.Masked())
		}
	}

	return nil
}

// setDefaults fills in interface metrics and declares any channel that's
// referenced but not listed. Undeclared channels with more than two
// interfaces are broadcast, the rest point-to-point.
func (c *Config) setDefaults() {
	declared := make(map[string]bool)
	for _, ch := range c.Channels {
		declared[ch.Name] = true
	}

	users := make(map[string]int)
	var order []string

	for i := range c.Routers {
		for j := range c.Routers[i].Interfaces {
			iface := &c.Routers[i].Interfaces[j]

			if iface.Metric == 0 {
				iface.Metric = 1
			}

			if users[iface.Channel] == 0 {
				order = append(order, iface.Channel)
			}
			users[iface.Channel]++
		}
	}

	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Type == "" && users[ch.Name] > 2 {
			ch.Type = ChannelBroadcast
		} else if ch.Type == "" {
			ch.Type = ChannelPointToPoint
		}
	}

	for _, name := range order {
		if declared[name] || name == "" {
			continue
		}

		typ := ChannelPointToPoint
		if users[name] > 2 {
			typ = ChannelBroadcast
		}

		c.Channels = append(c.Channels, ChannelConfig{Name: name, Type: typ})
	}
}

func (c *Config) validate() error {
	if len(c.Routers) == 0 {
		return fmt.Errorf("at least one router must be configured")
	}

	channels := make(map[string]string)
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel: name is required")
		}

		if _, ok := channels[ch.Name]; ok {
			return fmt.Errorf("channel %s: defined more than once", ch.Name)
		}

		if ch.Type != ChannelPointToPoint && ch.Type != ChannelBroadcast {
			return fmt.Errorf("channel %s: unknown type: %s", ch.Name, ch.Type)
		}

		channels[ch.Name] = ch.Type
	}

	names := make(map[string]bool)
	ids := make(map[netip.Addr]string)
	users := make(map[string]int)

	for _, r := range c.Routers {
		if r.Name == "" {
			return fmt.Errorf("router: name is required")
		}

		if names[r.Name] {
			return fmt.Errorf("router %s: defined more than once", r.Name)
		}
		names[r.Name] = true

		if r.RouterID.IsValid() {
			if other, ok := ids[r.RouterID]; ok {
				return fmt.Errorf("router %s: router-id %s already used by %s", r.Name, r.RouterID, other)
			}
			ids[r.RouterID] = r.Name
		}

		for i, iface := range r.Interfaces {
			if iface.Channel == "" {
				return fmt.Errorf("router %s interface %d: channel is required", r.Name, i)
			}

			if iface.Metric < 1 {
				return fmt.Errorf("router %s interface %d: metric too small: %d", r.Name, i, iface.Metric)
			} else if iface.Metric > math.MaxUint16 {
				return fmt.Errorf("router %s interface %d: metric too big: %d", r.Name, i, iface.Metric)
			}

			users[iface.Channel]++
			if channels[iface.Channel] == ChannelPointToPoint && users[iface.Channel] > 2 {
				return fmt.Errorf("channel %s: point-to-point channel has more than two interfaces", iface.Channel)
			}
		}
	}

	return nil
}

// Router returns the configuration for the named router.
func (c *Config) Router(name string) (*RouterConfig, bool) {
	for i := range c.Routers {
		if c.Routers[i].Name == name {
			return &c.Routers[i], true
		}
	}

	return nil, false
}
