package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// StreamsServer is the server API for the Streams gRPC service.
//
// The request and response are protobuf well-known wrapper types (the raw
// event identifier in, the validation status out) so this package does not
// require a protoc/codegen toolchain.
//
// Proto definition: streams.proto.
type StreamsServer interface {
	ValidateEvent(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
}

// UnimplementedStreamsServer can be embedded to have forward compatible implementations.
type UnimplementedStreamsServer struct{}

func (UnimplementedStreamsServer) ValidateEvent(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ValidateEvent not implemented")
}

// RegisterStreamsServer registers the Streams service on a gRPC server.
func RegisterStreamsServer(s grpc.ServiceRegistrar, srv StreamsServer) {
	s.RegisterService(&Streams_ServiceDesc, srv)
}

// StreamsClient is the client API for the Streams gRPC service.
type StreamsClient interface {
	ValidateEvent(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type streamsClient struct{ cc grpc.ClientConnInterface }

func NewStreamsClient(cc grpc.ClientConnInterface) StreamsClient { return &streamsClient{cc: cc} }

func (c *streamsClient) ValidateEvent(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, "/validated_streams.Streams/ValidateEvent", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Streams_ValidateEvent_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StreamsServer).ValidateEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/validated_streams.Streams/ValidateEvent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StreamsServer).ValidateEvent(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Streams_ServiceDesc is the grpc.ServiceDesc for the Streams service.
var Streams_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "validated_streams.Streams",
	HandlerType: (*StreamsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateEvent", Handler: _Streams_ValidateEvent_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "streams.proto",
}
