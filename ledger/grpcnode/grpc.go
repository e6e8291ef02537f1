package grpcnode

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LedgerNodeServer is the server API for the LedgerNode gRPC service.
//
// We intentionally use protobuf well-known types (wrappers and Struct) so
// this package does not require a protoc/codegen toolchain. Composite
// messages travel as structpb.Struct; the field layouts live in wire.go.
//
// Proto definition: ledgernode.proto.
type LedgerNodeServer interface {
	AccountNonce(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	AccountQuota(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Submit(*structpb.Struct, LedgerNode_SubmitServer) error
}

// UnimplementedLedgerNodeServer can be embedded to have forward compatible implementations.
type UnimplementedLedgerNodeServer struct{}

func (UnimplementedLedgerNodeServer) AccountNonce(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method AccountNonce not implemented")
}
func (UnimplementedLedgerNodeServer) AccountQuota(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AccountQuota not implemented")
}
func (UnimplementedLedgerNodeServer) Submit(*structpb.Struct, LedgerNode_SubmitServer) error {
	return status.Error(codes.Unimplemented, "method Submit not implemented")
}

// RegisterLedgerNodeServer registers the LedgerNode service on a gRPC server.
func RegisterLedgerNodeServer(s grpc.ServiceRegistrar, srv LedgerNodeServer) {
	s.RegisterService(&LedgerNode_ServiceDesc, srv)
}

// LedgerNodeClient is the client API for the LedgerNode gRPC service.
type LedgerNodeClient interface {
	AccountNonce(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	AccountQuota(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (LedgerNode_SubmitClient, error)
}

type ledgerNodeClient struct{ cc grpc.ClientConnInterface }

func NewLedgerNodeClient(cc grpc.ClientConnInterface) LedgerNodeClient { return &ledgerNodeClient{cc: cc} }

func (c *ledgerNodeClient) AccountNonce(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	err := c.cc.Invoke(ctx, "/xdao.caspub.ledger.grpcnode.v1.LedgerNode/AccountNonce", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerNodeClient) AccountQuota(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, "/xdao.caspub.ledger.grpcnode.v1.LedgerNode/AccountQuota", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerNodeClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (LedgerNode_SubmitClient, error) {
	stream, err := c.cc.NewStream(ctx, &LedgerNode_ServiceDesc.Streams[0], "/xdao.caspub.ledger.grpcnode.v1.LedgerNode/Submit", opts...)
	if err != nil {
		return nil, err
	}
	x := &ledgerNodeSubmitClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// LedgerNode_SubmitClient receives the server-streamed status events for one
// submission.
type LedgerNode_SubmitClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type ledgerNodeSubmitClient struct{ grpc.ClientStream }

func (x *ledgerNodeSubmitClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _LedgerNode_AccountNonce_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerNodeServer).AccountNonce(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/xdao.caspub.ledger.grpcnode.v1.LedgerNode/AccountNonce"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerNodeServer).AccountNonce(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerNode_AccountQuota_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerNodeServer).AccountQuota(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/xdao.caspub.ledger.grpcnode.v1.LedgerNode/AccountQuota"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerNodeServer).AccountQuota(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerNode_Submit_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LedgerNodeServer).Submit(m, &ledgerNodeSubmitServer{stream})
}

// LedgerNode_SubmitServer streams status events back to the client.
type LedgerNode_SubmitServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type ledgerNodeSubmitServer struct{ grpc.ServerStream }

func (x *ledgerNodeSubmitServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// LedgerNode_ServiceDesc is the grpc.ServiceDesc for LedgerNode service.
var LedgerNode_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "xdao.caspub.ledger.grpcnode.v1.LedgerNode",
	HandlerType: (*LedgerNodeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AccountNonce", Handler: _LedgerNode_AccountNonce_Handler},
		{MethodName: "AccountQuota", Handler: _LedgerNode_AccountQuota_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Submit", Handler: _LedgerNode_Submit_Handler, ServerStreams: true},
	},
	Metadata: "ledgernode.proto",
}
