package rpc

import (
	context "context"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type APIService interface {
	GetVersion(ctx context.Context) (string, error)
	Shutdown(ctx context.Context) error

	GetRoutes(ctx context.Context, router string) ([]rib.Route, error)
	GetDatabase(ctx context.Context) ([]*ospf.LSA, error)
	Recompute(ctx context.Context) error
	SetInterface(ctx context.Context, router, iface string, up bool) error
}

// Server adapts an APIService to the wire messages.
type Server struct {
	apiService APIService
}

func NewAPIServer(apiService APIService) *Server {
	return &Server{
		apiService: apiService,
	}
}

func (s *Server) GetVersion(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {
	version, err := s.apiService.GetVersion(ctx)
	if err != nil {
		return nil, err
	}

	return wrapperspb.String(version), nil
}

func (s *Server) Shutdown(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	err := s.apiService.Shutdown(ctx)
	if err != nil {
		return nil, err
	}

	return &emptypb.Empty{}, nil
}

func (s *Server) GetRoutes(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	routes, err := s.apiService.GetRoutes(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}

	return RoutesToProto(routes)
}

func (s *Server) GetDatabase(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error) {
	lsas, err := s.apiService.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}

	return LSAsToProto(lsas)
}

func (s *Server) Recompute(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error) {
	err := s.apiService.Recompute(ctx)
	if err != nil {
		return nil, err
	}

	return &emptypb.Empty{}, nil
}

func (s *Server) SetInterface(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	st, err := InterfaceStateFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	err = s.apiService.SetInterface(ctx, st.Router, st.Interface, st.Up)
	if err != nil {
		return nil, err
	}

	return &emptypb.Empty{}, nil
}
