package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "globalrouting.API"

// apiServer is the set of methods served under ServiceName. Requests and
// responses are protobuf well-known types.
type apiServer interface {
	GetVersion(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetRoutes(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetDatabase(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Recompute(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	SetInterface(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var _ apiServer = (*Server)(nil)

func unaryHandler[Req, Resp proto.Message](method string, newReq func() Req, call func(apiServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(apiServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(apiServer), ctx, req.(Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty {
	return &emptypb.Empty{}
}

func newString() *wrapperspb.StringValue {
	return &wrapperspb.StringValue{}
}

func newStruct() *structpb.Struct {
	return &structpb.Struct{}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*apiServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetVersion",
			Handler:    unaryHandler("GetVersion", newEmpty, apiServer.GetVersion),
		},
		{
			MethodName: "Shutdown",
			Handler:    unaryHandler("Shutdown", newEmpty, apiServer.Shutdown),
		},
		{
			MethodName: "GetRoutes",
			Handler:    unaryHandler("GetRoutes", newString, apiServer.GetRoutes),
		},
		{
			MethodName: "GetDatabase",
			Handler:    unaryHandler("GetDatabase", newEmpty, apiServer.GetDatabase),
		},
		{
			MethodName: "Recompute",
			Handler:    unaryHandler("Recompute", newEmpty, apiServer.Recompute),
		},
		{
			MethodName: "SetInterface",
			Handler:    unaryHandler("SetInterface", newStruct, apiServer.SetInterface),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterAPIServer(s grpc.ServiceRegistrar, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

type APIClient struct {
	cc grpc.ClientConnInterface
}

func NewAPIClient(cc grpc.ClientConnInterface) *APIClient {
	return &APIClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *APIClient) GetVersion(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, "GetVersion", in, opts...)
}

func (c *APIClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "Shutdown", in, opts...)
}

func (c *APIClient) GetRoutes(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, "GetRoutes", in, opts...)
}

func (c *APIClient) GetDatabase(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, "GetDatabase", in, opts...)
}

func (c *APIClient) Recompute(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "Recompute", in, opts...)
}

func (c *APIClient) SetInterface(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "SetInterface", in, opts...)
}
