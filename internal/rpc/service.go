package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "scrdec.v1.ScriptDecoder"

	DecodeMethod = "/" + ServiceName + "/Decode"
	ScanMethod   = "/" + ServiceName + "/Scan"
	WatchMethod  = "/" + ServiceName + "/Watch"
)

// ScriptDecoderServer is the server API for the ScriptDecoder service.
type ScriptDecoderServer interface {
	// Decode returns the decoded text of every envelope in the request,
	// joined by a newline.
	Decode(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// Scan runs the full decoder and returns its findings and scripts.
	Scan(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	// Watch streams findings produced by any Scan until the client leaves.
	Watch(*emptypb.Empty, ScriptDecoder_WatchServer) error
}

// ScriptDecoder_WatchServer is the server side of a Watch stream.
type ScriptDecoder_WatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterScriptDecoderServer registers srv with s.
func RegisterScriptDecoderServer(s grpc.ServiceRegistrar, srv ScriptDecoderServer) {
	s.RegisterService(&ScriptDecoder_ServiceDesc, srv)
}

func _ScriptDecoder_Decode_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScriptDecoderServer).Decode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DecodeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScriptDecoderServer).Decode(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ScriptDecoder_Scan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScriptDecoderServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScanMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScriptDecoderServer).Scan(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ScriptDecoder_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ScriptDecoderServer).Watch(m, &watchServer{stream})
}

// ScriptDecoder_ServiceDesc describes the ScriptDecoder service. The messages
// are protobuf well-known types, so no generated code is required.
var ScriptDecoder_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScriptDecoderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: _ScriptDecoder_Decode_Handler},
		{MethodName: "Scan", Handler: _ScriptDecoder_Scan_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: _ScriptDecoder_Watch_Handler, ServerStreams: true},
	},
	Metadata: "scrdec/v1/scriptdecoder.proto",
}

// Client calls the ScriptDecoder service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Decode sends data and returns the decoded scripts.
func (c *Client) Decode(ctx context.Context, data []byte, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, DecodeMethod, wrapperspb.Bytes(data), out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Scan sends data for a full scan.
func (c *Client) Scan(ctx context.Context, data []byte, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ScanMethod, wrapperspb.Bytes(data), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchClient receives findings from a Watch stream.
type WatchClient struct {
	stream grpc.ClientStream
}

// Recv blocks for the next finding.
func (w *WatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := w.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Header waits for the stream headers, which the server sends once the
// subscription is active.
func (w *WatchClient) Header() error {
	_, err := w.stream.Header()
	return err
}

// Watch opens a findings stream. Cancel ctx to close it.
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (*WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ScriptDecoder_ServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}
