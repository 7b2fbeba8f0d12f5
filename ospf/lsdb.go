package ospf

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"
)

var ErrDuplicateLSA = errors.New("duplicate link state id")

type lsdbKey struct {
	lsType LSAType
	lsID   netip.Addr
}

// LSDB holds every LSA discovered in one database build. Router and network
// LSAs are keyed by type and link state id, so a router whose id is also the
// designated router address of a LAN doesn't collide with that LAN's network
// LSA. AS-external LSAs may reuse a router's id, so they live in a separate
// list.
type LSDB struct {
	lsas     map[lsdbKey]*LSA
	external []*LSA
}

func NewLSDB() *LSDB {
	return &LSDB{
		lsas: make(map[lsdbKey]*LSA),
	}
}

// Insert adds lsa under id. The first LSA of a type inserted for an id wins;
// later ones are rejected with ErrDuplicateLSA.
func (db *LSDB) Insert(id netip.Addr, lsa *LSA) error {
	if err := lsa.Validate(); err != nil {
		return err
	}

	if lsa.Type == LSATypeASExternal {
		db.external = append(db.external, lsa)
		return nil
	}

	key := lsdbKey{lsType: lsa.Type, lsID: id}
	if _, ok := db.lsas[key]; ok {
		return fmt.Errorf("%w: %s %s", ErrDuplicateLSA, lsa.Type, id)
	}

	db.lsas[key] = lsa

	return nil
}

// Get returns the LSA with link state id id. When a router LSA and a network
// LSA share the id, the router LSA is returned.
func (db *LSDB) Get(id netip.Addr) (*LSA, bool) {
	if lsa, ok := db.GetType(LSATypeRouter, id); ok {
		return lsa, true
	}

	return db.GetType(LSATypeNetwork, id)
}

func (db *LSDB) GetType(lsType LSAType, id netip.Addr) (*LSA, bool) {
	lsa, ok := db.lsas[lsdbKey{lsType: lsType, lsID: id}]
	return lsa, ok
}

// GetByLinkData finds the LSA owning a point-to-point or transit link record
// whose LinkData is addr. Used to find the router on the far side of a link
// from one of its interface addresses.
func (db *LSDB) GetByLinkData(addr netip.Addr) (*LSA, bool) {
	for _, lsa := range db.lsas {
		for _, l := range lsa.Links {
			if l.Type == LinkTypeStubNetwork {
				continue
			}

			if l.LinkData == addr {
				return lsa, true
			}
		}
	}

	return nil, false
}

// Initialize marks every LSA NotExplored. Call once before each SPF run.
func (db *LSDB) Initialize() {
	for _, lsa := range db.lsas {
		lsa.Status = SPFNotExplored
	}

	for _, lsa := range db.external {
		lsa.Status = SPFNotExplored
	}
}

func (db *LSDB) NumExtLSAs() int {
	return len(db.external)
}

func (db *LSDB) ExtLSA(i int) *LSA {
	return db.external[i]
}

func (db *LSDB) Len() int {
	return len(db.lsas) + len(db.external)
}

// LSAs returns every LSA ordered by type, then link state id, then
// advertising router.
func (db *LSDB) LSAs() []*LSA {
	all := make([]*LSA, 0, db.Len())
	for _, lsa := range db.lsas {
		all = append(all, lsa)
	}
	all = append(all, db.external...)

	slices.SortFunc(all, func(a, b *LSA) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}

		if c := a.LinkStateID.Compare(b.LinkStateID); c != 0 {
			return c
		}

		return a.AdvertisingRouter.Compare(b.AdvertisingRouter)
	})

	return all
}
