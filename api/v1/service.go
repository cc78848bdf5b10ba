// Package apiv1 defines the bist.harness.v1.HarnessService gRPC service.
//
// Messages travel as google.protobuf.Struct; run.go maps them to Go types.
package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "bist.harness.v1.HarnessService"

	RunScenarioMethod = "/" + ServiceName + "/RunScenario"
	GetRunMethod      = "/" + ServiceName + "/GetRun"
)

// HarnessServiceServer is the server API for HarnessService.
type HarnessServiceServer interface {
	// RunScenario runs one catalog scenario on the server host and returns its run record.
	RunScenario(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetRun returns a run record previously created by the same client.
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedHarnessServiceServer can be embedded to have forward compatible implementations.
type UnimplementedHarnessServiceServer struct{}

func (UnimplementedHarnessServiceServer) RunScenario(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method RunScenario not implemented")
}

func (UnimplementedHarnessServiceServer) GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRun not implemented")
}

// RegisterHarnessServiceServer registers srv with s.
func RegisterHarnessServiceServer(s grpc.ServiceRegistrar, srv HarnessServiceServer) {
	s.RegisterService(&HarnessService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(HarnessServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(HarnessServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HarnessServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// HarnessService_ServiceDesc is the grpc.ServiceDesc for HarnessService.
var HarnessService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HarnessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RunScenario",
			Handler:    unaryHandler(RunScenarioMethod, HarnessServiceServer.RunScenario),
		},
		{
			MethodName: "GetRun",
			Handler:    unaryHandler(GetRunMethod, HarnessServiceServer.GetRun),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bist/harness/v1/harness.proto",
}

// HarnessServiceClient is the client API for HarnessService.
type HarnessServiceClient interface {
	RunScenario(ctx context.Context, in *RunScenarioRequest, opts ...grpc.CallOption) (*Run, error)
	GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*Run, error)
}

type harnessServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewHarnessServiceClient returns a client using cc.
func NewHarnessServiceClient(cc grpc.ClientConnInterface) HarnessServiceClient {
	return &harnessServiceClient{cc}
}

func (c *harnessServiceClient) RunScenario(ctx context.Context, in *RunScenarioRequest, opts ...grpc.CallOption) (*Run, error) {
	return c.invoke(ctx, RunScenarioMethod, in.ToStruct(), opts)
}

func (c *harnessServiceClient) GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*Run, error) {
	return c.invoke(ctx, GetRunMethod, in.ToStruct(), opts)
}

func (c *harnessServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*Run, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return RunFromStruct(out)
}
