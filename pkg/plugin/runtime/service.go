package runtime

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name for the embedded
// runtime, used to build method paths the way protoc-gen-go-grpc would.
const serviceName = "adaptationengine.embeddedruntime.v1.EmbeddedRuntime"

// Server is implemented by anything that can execute a plugin invocation
// inside the embedded runtime. Production code talks to the real runtime
// over loopback gRPC; tests register an in-memory Server on a bufconn
// listener.
type Server interface {
	Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error)
}

// ServiceDesc is the hand-authored equivalent of the *_grpc.pb.go file
// protoc-gen-go-grpc would normally generate for a single-method service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/plugin/runtime/service.go",
}

func invokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Invoke"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Invoke(ctx, req.(*InvokeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// client is the hand-authored equivalent of the generated client stub.
type client struct {
	cc *grpc.ClientConn
}

func newClient(cc *grpc.ClientConn) *client {
	return &client{cc: cc}
}

func (c *client) Invoke(ctx context.Context, req *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error) {
	opts = append(opts, grpc.CallContentSubtype(codecName))
	out := new(InvokeResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Invoke", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
