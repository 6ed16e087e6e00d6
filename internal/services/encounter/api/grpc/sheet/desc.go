// Package sheet exposes initiative.v1.SheetService over gRPC and provides the
// remote store the sync layer uses against it.
//
// Messages are google.protobuf.Struct values carrying the sheet JSON shape,
// so the service needs no generated code beyond the well-known types.
package sheet

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "initiative.v1.SheetService"

	CreateSheetMethod = "/" + ServiceName + "/CreateSheet"
	GetSheetMethod    = "/" + ServiceName + "/GetSheet"
	UpdateSheetMethod = "/" + ServiceName + "/UpdateSheet"
	ListSheetsMethod  = "/" + ServiceName + "/ListSheets"
	SubscribeMethod   = "/" + ServiceName + "/Subscribe"
)

// SheetServiceServer is the server API for SheetService.
type SheetServiceServer interface {
	CreateSheet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSheet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSheet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSheets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterSheetServiceServer registers srv on s.
func RegisterSheetServiceServer(s grpc.ServiceRegistrar, srv SheetServiceServer) {
	s.RegisterService(&SheetService_ServiceDesc, srv)
}

type unaryCall func(SheetServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SheetServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SheetServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SheetServiceServer).Subscribe(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// SheetService_ServiceDesc is the grpc.ServiceDesc for SheetService.
var SheetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SheetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSheet", Handler: unaryHandler(CreateSheetMethod, SheetServiceServer.CreateSheet)},
		{MethodName: "GetSheet", Handler: unaryHandler(GetSheetMethod, SheetServiceServer.GetSheet)},
		{MethodName: "UpdateSheet", Handler: unaryHandler(UpdateSheetMethod, SheetServiceServer.UpdateSheet)},
		{MethodName: "ListSheets", Handler: unaryHandler(ListSheetsMethod, SheetServiceServer.ListSheets)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "initiative/v1/sheet.proto",
}

// SheetServiceClient is the client API for SheetService.
type SheetServiceClient interface {
	CreateSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListSheets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type sheetServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSheetServiceClient returns a client bound to cc.
func NewSheetServiceClient(cc grpc.ClientConnInterface) SheetServiceClient {
	return &sheetServiceClient{cc: cc}
}

func (c *sheetServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sheetServiceClient) CreateSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CreateSheetMethod, in, opts...)
}

func (c *sheetServiceClient) GetSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetSheetMethod, in, opts...)
}

func (c *sheetServiceClient) UpdateSheet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, UpdateSheetMethod, in, opts...)
}

func (c *sheetServiceClient) ListSheets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListSheetsMethod, in, opts...)
}

func (c *sheetServiceClient) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &SheetService_ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
