package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the gRPC service; its messages are the well-known struct
// and wrapper types.
const ServiceName = "cryptobridge.v1.OrderBookGateway"

const (
	listInstrumentsMethod      = "/" + ServiceName + "/ListInstruments"
	getInstrumentMethod        = "/" + ServiceName + "/GetInstrument"
	getOrderBookSnapshotMethod = "/" + ServiceName + "/GetOrderBookSnapshot"
	streamOrderBookMethod      = "/" + ServiceName + "/StreamOrderBook"
)

type OrderBookGatewayServer interface {
	// ListInstruments returns the symbols starting with the given prefix.
	ListInstruments(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	// GetInstrument returns {symbol, tickSize, baseAsset, quoteAsset}.
	GetInstrument(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetOrderBookSnapshot takes {symbol, maxDepth}.
	GetOrderBookSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// StreamOrderBook pushes every book update of the symbol.
	StreamOrderBook(*wrapperspb.StringValue, OrderBookGateway_StreamOrderBookServer) error
}

type UnimplementedOrderBookGatewayServer struct{}

func (UnimplementedOrderBookGatewayServer) ListInstruments(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListInstruments not implemented")
}

func (UnimplementedOrderBookGatewayServer) GetInstrument(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetInstrument not implemented")
}

func (UnimplementedOrderBookGatewayServer) GetOrderBookSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetOrderBookSnapshot not implemented")
}

func (UnimplementedOrderBookGatewayServer) StreamOrderBook(*wrapperspb.StringValue, OrderBookGateway_StreamOrderBookServer) error {
	return status.Errorf(codes.Unimplemented, "method StreamOrderBook not implemented")
}

func RegisterOrderBookGatewayServer(s grpc.ServiceRegistrar, srv OrderBookGatewayServer) {
	s.RegisterService(&OrderBookGateway_ServiceDesc, srv)
}

type OrderBookGateway_StreamOrderBookServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type orderBookGatewayStreamOrderBookServer struct {
	grpc.ServerStream
}

func (x *orderBookGatewayStreamOrderBookServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _OrderBookGateway_ListInstruments_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderBookGatewayServer).ListInstruments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listInstrumentsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderBookGatewayServer).ListInstruments(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderBookGateway_GetInstrument_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderBookGatewayServer).GetInstrument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getInstrumentMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderBookGatewayServer).GetInstrument(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderBookGateway_GetOrderBookSnapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderBookGatewayServer).GetOrderBookSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getOrderBookSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderBookGatewayServer).GetOrderBookSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrderBookGateway_StreamOrderBook_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OrderBookGatewayServer).StreamOrderBook(m, &orderBookGatewayStreamOrderBookServer{stream})
}

var OrderBookGateway_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderBookGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListInstruments", Handler: _OrderBookGateway_ListInstruments_Handler},
		{MethodName: "GetInstrument", Handler: _OrderBookGateway_GetInstrument_Handler},
		{MethodName: "GetOrderBookSnapshot", Handler: _OrderBookGateway_GetOrderBookSnapshot_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamOrderBook", Handler: _OrderBookGateway_StreamOrderBook_Handler, ServerStreams: true},
	},
	Metadata: "cryptobridge/v1/orderbook_gateway.proto",
}

// OrderBookGatewayClient is the client side of the same service description.
type OrderBookGatewayClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderBookGatewayClient(cc grpc.ClientConnInterface) *OrderBookGatewayClient {
	return &OrderBookGatewayClient{cc: cc}
}

func (c *OrderBookGatewayClient) ListInstruments(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listInstrumentsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderBookGatewayClient) GetInstrument(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getInstrumentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderBookGatewayClient) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getOrderBookSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type OrderBookGateway_StreamOrderBookClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type orderBookGatewayStreamOrderBookClient struct {
	grpc.ClientStream
}

func (x *orderBookGatewayStreamOrderBookClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *OrderBookGatewayClient) StreamOrderBook(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (OrderBookGateway_StreamOrderBookClient, error) {
	stream, err := c.cc.NewStream(ctx, &OrderBookGateway_ServiceDesc.Streams[0], streamOrderBookMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &orderBookGatewayStreamOrderBookClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
