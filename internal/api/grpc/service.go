// Package grpc serves segment averages over gRPC.
//
// The service has a single unary method whose request and response are the
// well-known wrapper messages, so no generated code is required:
//
//	service SegmentAverage {
//	  rpc Average(google.protobuf.StringValue) returns (google.protobuf.Int64Value);
//	}
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "segavg.v1.SegmentAverage"

// AverageMethod is the full method name of Average.
const AverageMethod = "/" + ServiceName + "/Average"

// SegmentAverageServer is the server API of the SegmentAverage service.
type SegmentAverageServer interface {
	// Average returns the scaled segment average. A segment without data is
	// reported as codes.NotFound.
	Average(ctx context.Context, segment *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

// ServiceDesc is the grpc.ServiceDesc of the SegmentAverage service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SegmentAverageServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Average",
			Handler:    averageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "segavg/v1/segavg.proto",
}

// RegisterSegmentAverageServer registers srv with s.
func RegisterSegmentAverageServer(s grpc.ServiceRegistrar, srv SegmentAverageServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func averageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SegmentAverageServer).Average(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AverageMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SegmentAverageServer).Average(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the SegmentAverage service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Average returns the scaled average of segment.
func (c *Client) Average(ctx context.Context, segment string, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, AverageMethod, wrapperspb.String(segment), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
