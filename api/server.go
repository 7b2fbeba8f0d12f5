package api

import (
	"context"
	"errors"
	"net"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"github.com/davidbalbert/globalrouting/rpc"
	"github.com/davidbalbert/globalrouting/topology"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RouteService is what the API exposes about the running computation.
type RouteService interface {
	Routes(router string) ([]rib.Route, error)
	Database() []*ospf.LSA
	Recompute(ctx context.Context) error
	SetInterface(router, iface string, up bool) error
}

type Server struct {
	routes   RouteService
	shutdown context.CancelFunc
	socket   string
	version  string
}

func NewServer(routes RouteService, socket string, shutdown context.CancelFunc, version string) *Server {
	return &Server{
		routes:   routes,
		shutdown: shutdown,
		socket:   socket,
		version:  version,
	}
}

func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("unix", s.socket)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve serves the API on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	rpcServer := rpc.NewAPIServer(s)

	rpc.RegisterAPIServer(grpcServer, rpcServer)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcServer.Serve(listener)
	})

	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

func (s *Server) GetVersion(ctx context.Context) (string, error) {
	return s.version, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown()
	return nil
}

func (s *Server) GetRoutes(ctx context.Context, router string) ([]rib.Route, error) {
	routes, err := s.routes.Routes(router)
	if errors.Is(err, topology.ErrUnknownRouter) {
		return nil, status.Error(codes.NotFound, err.Error())
	} else if err != nil {
		return nil, err
	}

	return routes, nil
}

func (s *Server) GetDatabase(ctx context.Context) ([]*ospf.LSA, error) {
	return s.routes.Database(), nil
}

func (s *Server) Recompute(ctx context.Context) error {
	err := s.routes.Recompute(ctx)
	if errors.Is(err, ospf.ErrNoTopology) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	return err
}

func (s *Server) SetInterface(ctx context.Context, router, iface string, up bool) error {
	err := s.routes.SetInterface(router, iface, up)
	if errors.Is(err, topology.ErrUnknownRouter) || errors.Is(err, topology.ErrUnknownIface) {
		return status.Error(codes.NotFound, err.Error())
	}

	return err
}
