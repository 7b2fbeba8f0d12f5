package ospf

import (
	"fmt"
	"net/netip"
	"strings"
)

type LSAType uint8

const (
	LSATypeUnknown LSAType = 0

	LSATypeRouter      LSAType = 1
	LSATypeNetwork     LSAType = 2
	LSATypeSummary     LSAType = 3
	LSATypeSummaryASBR LSAType = 4
	LSATypeASExternal  LSAType = 5
)

func (t LSAType) String() string {
	switch t {
	case LSATypeRouter:
		return "Router"
	case LSATypeNetwork:
		return "Network"
	case LSATypeSummary:
		return "Summary"
	case LSATypeSummaryASBR:
		return "SummaryASBR"
	case LSATypeASExternal:
		return "ASExternal"
	default:
		return "Unknown"
	}
}

type LinkType uint8

const (
	LinkTypeUnknown LinkType = 0

	LinkTypePointToPoint   LinkType = 1
	LinkTypeTransitNetwork LinkType = 2
	LinkTypeStubNetwork    LinkType = 3
	LinkTypeVirtualLink    LinkType = 4
)

func (t LinkType) String() string {
	switch t {
	case LinkTypePointToPoint:
		return "PointToPoint"
	case LinkTypeTransitNetwork:
		return "TransitNetwork"
	case LinkTypeStubNetwork:
		return "StubNetwork"
	case LinkTypeVirtualLink:
		return "VirtualLink"
	default:
		return "Unknown"
	}
}

// SPFStatus tracks an LSA's progress through a single SPF run. It only ever
// moves forward: NotExplored, Candidate, InSPFTree.
type SPFStatus uint8

const (
	SPFNotExplored SPFStatus = iota
	SPFCandidate
	SPFInTree
)

func (s SPFStatus) String() string {
	switch s {
	case SPFNotExplored:
		return "NotExplored"
	case SPFCandidate:
		return "Candidate"
	case SPFInTree:
		return "InSPFTree"
	default:
		return "Unknown"
	}
}

// LinkRecord is one entry in a router LSA.
//
//	PointToPoint:   LinkID is the neighbor's router id, LinkData is the local interface address.
//	TransitNetwork: LinkID is the designated router's interface address, LinkData is the local address.
//	StubNetwork:    LinkID is the network number, LinkData is the network mask.
type LinkRecord struct {
	Type     LinkType
	LinkID   netip.Addr
	LinkData netip.Addr
	Metric   uint16
}

func (l LinkRecord) String() string {
	return fmt.Sprintf("%s id=%s data=%s metric=%d", l.Type, l.LinkID, l.LinkData, l.Metric)
}

// Prefix returns the network described by a stub link record.
func (l LinkRecord) Prefix() (netip.Prefix, bool) {
	if l.Type != LinkTypeStubNetwork {
		return netip.Prefix{}, false
	}

	return prefixFromMask(l.LinkID, l.LinkData)
}

type LSA struct {
	Type              LSAType
	LinkStateID       netip.Addr
	AdvertisingRouter netip.Addr

	// Router LSAs
	Links []LinkRecord

	// Network and ASExternal LSAs
	NetworkMask     netip.Addr
	AttachedRouters []netip.Addr

	Status SPFStatus
}

func NewRouterLSA(routerID netip.Addr, links []LinkRecord) *LSA {
	return &LSA{
		Type:              LSATypeRouter,
		LinkStateID:       routerID,
		AdvertisingRouter: routerID,
		Links:             links,
	}
}

func NewNetworkLSA(drAddr, drRouterID, mask netip.Addr, attached []netip.Addr) *LSA {
	return &LSA{
		Type:              LSATypeNetwork,
		LinkStateID:       drAddr,
		AdvertisingRouter: drRouterID,
		NetworkMask:       mask,
		AttachedRouters:   attached,
	}
}

func NewASExternalLSA(advRouter netip.Addr, pfx netip.Prefix) *LSA {
	pfx = pfx.Masked()

	return &LSA{
		Type:              LSATypeASExternal,
		LinkStateID:       pfx.Addr(),
		AdvertisingRouter: advRouter,
		NetworkMask:       MaskFromBits(pfx.Bits()),
	}
}

func (lsa *LSA) Validate() error {
	switch lsa.Type {
	case LSATypeRouter:
		if lsa.LinkStateID != lsa.AdvertisingRouter {
			return fmt.Errorf("router LSA %s: advertising router %s does not match link state id", lsa.LinkStateID, lsa.AdvertisingRouter)
		}
	case LSATypeNetwork, LSATypeASExternal:
		if _, ok := lsa.Prefix(); !ok {
			return fmt.Errorf("%s LSA %s: invalid network mask %s", lsa.Type, lsa.LinkStateID, lsa.NetworkMask)
		}
	case LSATypeUnknown:
		return fmt.Errorf("LSA %s: unknown type", lsa.LinkStateID)
	}

	return nil
}

// Prefix returns the network covered by a network or AS-external LSA.
func (lsa *LSA) Prefix() (netip.Prefix, bool) {
	if lsa.Type != LSATypeNetwork && lsa.Type != LSATypeASExternal {
		return netip.Prefix{}, false
	}

	return prefixFromMask(lsa.LinkStateID, lsa.NetworkMask)
}

func (lsa *LSA) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s LSA id=%s adv=%s", lsa.Type, lsa.LinkStateID, lsa.AdvertisingRouter)

	switch lsa.Type {
	case LSATypeRouter:
		for _, l := range lsa.Links {
			fmt.Fprintf(&b, "\n  %s", l)
		}
	case LSATypeNetwork:
		fmt.Fprintf(&b, " mask=%s", lsa.NetworkMask)
		for _, r := range lsa.AttachedRouters {
			fmt.Fprintf(&b, "\n  attached %s", r)
		}
	case LSATypeASExternal:
		fmt.Fprintf(&b, " mask=%s", lsa.NetworkMask)
	}

	return b.String()
}
