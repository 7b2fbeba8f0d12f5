package api

import (
	"context"
	"fmt"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"github.com/davidbalbert/globalrouting/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	*grpc.ClientConn
	rpcClient *rpc.APIClient
}

func NewClient(socket string, opts ...grpc.DialOption) (*Client, error) {
	return dial(fmt.Sprintf("unix://%s", socket), opts...)
}

func dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		ClientConn: conn,
		rpcClient:  rpc.NewAPIClient(conn),
	}, nil
}

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.rpcClient.GetVersion(ctx, &emptypb.Empty{})
	if err != nil {
		return "", err
	}

	return resp.GetValue(), nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.rpcClient.Shutdown(ctx, &emptypb.Empty{})
	return err
}

func (c *Client) GetRoutes(ctx context.Context, router string) ([]rib.Route, error) {
	resp, err := c.rpcClient.GetRoutes(ctx, wrapperspb.String(router))
	if err != nil {
		return nil, err
	}

	return rpc.RoutesFromProto(resp)
}

func (c *Client) GetDatabase(ctx context.Context) ([]*ospf.LSA, error) {
	resp, err := c.rpcClient.GetDatabase(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}

	return rpc.LSAsFromProto(resp)
}

func (c *Client) Recompute(ctx context.Context) error {
	_, err := c.rpcClient.Recompute(ctx, &emptypb.Empty{})
	return err
}

func (c *Client) SetInterface(ctx context.Context, router, iface string, up bool) error {
	req, err := rpc.InterfaceStateToProto(rpc.InterfaceState{Router: router, Interface: iface, Up: up})
	if err != nil {
		return err
	}

	_, err = c.rpcClient.SetInterface(ctx, req)
	return err
}
