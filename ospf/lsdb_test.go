package ospf

import (
	"errors"
	"net/netip"
	"testing"
)

func TestLSDBInsertDuplicate(t *testing.T) {
	db := NewLSDB()
	id := netip.MustParseAddr("0.0.0.1")

	first := NewRouterLSA(id, nil)
	if err := db.Insert(id, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := db.Insert(id, NewRouterLSA(id, []LinkRecord{{Type: LinkTypeStubNetwork}}))
	if !errors.Is(err, ErrDuplicateLSA) {
		t.Fatalf("expected ErrDuplicateLSA, got %v", err)
	}

	got, ok := db.Get(id)
	if !ok || got != first {
		t.Fatalf("expected the first LSA to stay installed")
	}
}

func TestLSDBRouterAndNetworkShareID(t *testing.T) {
	db := NewLSDB()
	addr := netip.MustParseAddr("10.0.0.1")

	router := NewRouterLSA(addr, []LinkRecord{
		{Type: LinkTypeTransitNetwork, LinkID: addr, LinkData: addr, Metric: 1},
	})
	network := NewNetworkLSA(addr, addr, MaskFromBits(24), []netip.Addr{addr, netip.MustParseAddr("10.0.0.2")})

	if err := db.Insert(addr, router); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(addr, network); err != nil {
		t.Fatalf("a network LSA must not collide with a router LSA: %v", err)
	}

	if got, ok := db.GetType(LSATypeRouter, addr); !ok || got != router {
		t.Fatalf("expected the router LSA, got %v", got)
	}
	if got, ok := db.GetType(LSATypeNetwork, addr); !ok || got != network {
		t.Fatalf("expected the network LSA, got %v", got)
	}
	if got, _ := db.Get(addr); got != router {
		t.Fatalf("Get should prefer the router LSA, got %v", got)
	}
	if db.Len() != 2 {
		t.Fatalf("expected 2 LSAs, got %d", db.Len())
	}
}

func TestLSDBRejectsMismatchedRouterLSA(t *testing.T) {
	db := NewLSDB()

	lsa := NewRouterLSA(netip.MustParseAddr("0.0.0.1"), nil)
	lsa.AdvertisingRouter = netip.MustParseAddr("0.0.0.2")

	if err := db.Insert(lsa.LinkStateID, lsa); err == nil {
		t.Fatalf("expected an error for a router LSA advertised by another router")
	}
}

func TestLSDBGetByLinkData(t *testing.T) {
	db := NewLSDB()

	a := NewRouterLSA(netip.MustParseAddr("0.0.0.1"), []LinkRecord{
		{Type: LinkTypeTransitNetwork, LinkID: netip.MustParseAddr("10.0.0.1"), LinkData: netip.MustParseAddr("10.0.0.1"), Metric: 1},
		{Type: LinkTypeStubNetwork, LinkID: netip.MustParseAddr("10.9.0.0"), LinkData: netip.MustParseAddr("255.255.255.0"), Metric: 1},
	})
	b := NewRouterLSA(netip.MustParseAddr("0.0.0.2"), []LinkRecord{
		{Type: LinkTypeTransitNetwork, LinkID: netip.MustParseAddr("10.0.0.1"), LinkData: netip.MustParseAddr("10.0.0.2"), Metric: 1},
	})

	for _, lsa := range []*LSA{a, b} {
		if err := db.Insert(lsa.LinkStateID, lsa); err != nil {
			t.Fatal(err)
		}
	}

	if got, ok := db.GetByLinkData(netip.MustParseAddr("10.0.0.2")); !ok || got != b {
		t.Fatalf("expected router 0.0.0.2, got %v", got)
	}

	if _, ok := db.GetByLinkData(netip.MustParseAddr("255.255.255.0")); ok {
		t.Fatalf("stub link data must not match")
	}

	if _, ok := db.GetByLinkData(netip.MustParseAddr("10.0.0.3")); ok {
		t.Fatalf("expected no match")
	}
}

func TestLSDBInitialize(t *testing.T) {
	db := NewLSDB()

	r := NewRouterLSA(netip.MustParseAddr("0.0.0.1"), nil)
	r.Status = SPFInTree
	ext := NewASExternalLSA(r.LinkStateID, netip.MustParsePrefix("192.168.0.0/16"))
	ext.Status = SPFCandidate

	if err := db.Insert(r.LinkStateID, r); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(ext.LinkStateID, ext); err != nil {
		t.Fatal(err)
	}

	db.Initialize()

	if r.Status != SPFNotExplored || ext.Status != SPFNotExplored {
		t.Fatalf("expected every LSA to be NotExplored, got %s and %s", r.Status, ext.Status)
	}
}

func TestLSDBExternal(t *testing.T) {
	db := NewLSDB()
	id := netip.MustParseAddr("0.0.0.1")

	if err := db.Insert(id, NewRouterLSA(id, nil)); err != nil {
		t.Fatal(err)
	}

	for _, s := range []string{"192.168.0.0/16", "172.16.0.0/12"} {
		ext := NewASExternalLSA(id, netip.MustParsePrefix(s))
		if err := db.Insert(ext.LinkStateID, ext); err != nil {
			t.Fatal(err)
		}
	}

	if db.NumExtLSAs() != 2 {
		t.Fatalf("expected 2 external LSAs, got %d", db.NumExtLSAs())
	}

	pfx, ok := db.ExtLSA(1).Prefix()
	if !ok || pfx != netip.MustParsePrefix("172.16.0.0/12") {
		t.Fatalf("unexpected prefix %v", pfx)
	}

	if db.Len() != 3 {
		t.Fatalf("expected 3 LSAs, got %d", db.Len())
	}

	lsas := db.LSAs()
	if lsas[0].Type != LSATypeRouter || lsas[2].LinkStateID != netip.MustParseAddr("192.168.0.0") {
		t.Fatalf("unexpected order: %v", lsas)
	}
}
