package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/davidbalbert/globalrouting/config"
	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"github.com/davidbalbert/globalrouting/sync"
	"github.com/davidbalbert/globalrouting/topology"
	"golang.org/x/sync/errgroup"
)

type Runner interface {
	Run(ctx context.Context) error
}

type request struct {
	conf *config.Config // nil means recompute the current topology
	done chan error
}

type state struct {
	conf    *config.Config
	network *topology.Network
	manager *ospf.RouteManager
}

// RouteService owns the simulated network and its route manager. Config
// changes rebuild the network; recompute requests rerun routing on the
// current one, as do interfaces going up or down. Requests are handled one
// at a time in arrival order.
type RouteService struct {
	st            chan state
	requests      *sync.Queue[request]
	events        *sync.Notifier[topology.InterfaceEvent]
	configManager *config.ConfigManager
	configSeq     int64
	eventSeq      int64
	metrics       *ospf.Metrics
	log           *slog.Logger
}

func NewRouteService(configManager *config.ConfigManager, metrics *ospf.Metrics, logger *slog.Logger) (*RouteService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &RouteService{
		st:            make(chan state, 1),
		requests:      sync.NewQueue[request](),
		events:        sync.NewNotifier(topology.InterfaceEvent{}),
		configManager: configManager,
		metrics:       metrics,
		log:           logger,
	}

	conf, seq := configManager.LastChange()
	s.configSeq = seq

	st, err := s.build(conf)
	if err != nil {
		return nil, err
	}
	s.st <- st

	_, s.eventSeq = s.events.LastChange()

	return s, nil
}

func (s *RouteService) build(conf *config.Config) (state, error) {
	network, err := topology.FromConfig(conf, topology.WithEvents(s.events))
	if err != nil {
		return state{}, err
	}

	manager := ospf.NewRouteManager(network, s.log)
	manager.SetStubDefaultRoutes(conf.Routing.StubDefaultRoutes)
	if s.metrics != nil {
		manager.SetMetrics(s.metrics)
	}

	if err := manager.Populate(); err != nil {
		return state{}, err
	}

	return state{conf: conf, network: network, manager: manager}, nil
}

func (s *RouteService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seq := s.configSeq
		for {
			var conf *config.Config
			conf, seq = s.configManager.AwaitChange(ctx, seq)
			if ctx.Err() != nil {
				return nil
			}

			s.requests.Put(request{conf: conf})
		}
	})

	g.Go(func() error {
		seq := s.eventSeq
		for {
			var ev topology.InterfaceEvent
			ev, seq = s.events.AwaitChange(ctx, seq)
			if ctx.Err() != nil {
				return nil
			}

			if !s.respondToInterfaceEvents() {
				s.log.Debug("ignoring interface event", "router", ev.Router, "interface", ev.Interface, "up", ev.Up)
				continue
			}

			s.log.Info("interface changed, recomputing routes", "router", ev.Router, "interface", ev.Interface, "up", ev.Up)
			s.requests.Put(request{})
		}
	})

	g.Go(func() error {
		for {
			req, ok := s.requests.Get(ctx)
			if !ok {
				return nil
			}

			err := s.handle(req)
			if req.done != nil {
				req.done <- err
			} else if err != nil {
				s.log.Error("failed to apply config", "error", err)
			}
		}
	})

	return g.Wait()
}

func (s *RouteService) handle(req request) error {
	if req.conf == nil {
		st := <-s.st
		defer func() {
			s.st <- st
		}()

		return st.manager.Recompute()
	}

	next, err := s.build(req.conf)
	if err != nil {
		return err
	}

	<-s.st
	s.st <- next

	s.log.Info("rebuilt network from config", "routers", len(next.network.Nodes()))

	return nil
}

// Recompute queues a full recomputation and waits for it to finish.
func (s *RouteService) Recompute(ctx context.Context) error {
	done := make(chan error, 1)
	s.requests.Put(request{done: done})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *RouteService) respondToInterfaceEvents() bool {
	st := <-s.st
	s.st <- st

	return st.conf.Routing.InterfaceEvents()
}

// SetInterface brings one of a router's interfaces up or down. Routes are
// recomputed in the background unless interface events are disabled.
func (s *RouteService) SetInterface(router, iface string, up bool) error {
	st := <-s.st
	defer func() {
		s.st <- st
	}()

	n, err := st.network.FindRouter(router)
	if err != nil {
		return err
	}

	i, err := n.InterfaceByName(iface)
	if err != nil {
		return err
	}

	i.SetUp(up)

	return nil
}

// Trace follows the installed routes from router toward dst.
func (s *RouteService) Trace(router string, dst netip.Addr) ([]topology.Hop, error) {
	st := <-s.st
	defer func() {
		s.st <- st
	}()

	n, err := st.network.FindRouter(router)
	if err != nil {
		return nil, err
	}

	return st.network.Trace(n, dst)
}

func (s *RouteService) Routes(router string) ([]rib.Route, error) {
	st := <-s.st
	defer func() {
		s.st <- st
	}()

	n, err := st.network.FindRouter(router)
	if err != nil {
		return nil, err
	}

	return n.Table().Routes(), nil
}

func (s *RouteService) Database() []*ospf.LSA {
	st := <-s.st
	defer func() {
		s.st <- st
	}()

	return st.manager.Database().LSAs()
}

// Network returns the current simulated network.
func (s *RouteService) Network() *topology.Network {
	st := <-s.st
	s.st <- st

	return st.network
}

// RunAll runs every runner until one fails or ctx is done.
func RunAll(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, r := range runners {
		g.Go(func() error {
			if err := r.Run(ctx); err != nil {
				return fmt.Errorf("%T: %w", r, err)
			}
			return nil
		})
	}

	return g.Wait()
}
