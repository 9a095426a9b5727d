// Package battlev1 declares the duel.battle.v1.BattleService gRPC contract.
// Requests and responses are google.protobuf.Struct documents whose field
// names match the JSON encoding of the battle and resolution types.
package battlev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "duel.battle.v1.BattleService"

// Method names.
const (
	MethodCreateBattle      = "CreateBattle"
	MethodSubmitChoice      = "SubmitChoice"
	MethodSubmitReplacement = "SubmitReplacement"
	MethodGetBattle         = "GetBattle"
	MethodExportReplay      = "ExportReplay"
)

// FullMethod returns the "/service/method" path of method.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// BattleServiceServer is the server API for BattleService.
type BattleServiceServer interface {
	CreateBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitChoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitReplacement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportReplay(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(BattleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BattleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BattleServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for BattleService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BattleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateBattle, BattleServiceServer.CreateBattle),
		unary(MethodSubmitChoice, BattleServiceServer.SubmitChoice),
		unary(MethodSubmitReplacement, BattleServiceServer.SubmitReplacement),
		unary(MethodGetBattle, BattleServiceServer.GetBattle),
		unary(MethodExportReplay, BattleServiceServer.ExportReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duel/battle/v1/battle.proto",
}

// RegisterBattleServiceServer registers srv on s.
func RegisterBattleServiceServer(s grpc.ServiceRegistrar, srv BattleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// BattleServiceClient is the client API for BattleService.
type BattleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBattleServiceClient wraps cc.
func NewBattleServiceClient(cc grpc.ClientConnInterface) *BattleServiceClient {
	return &BattleServiceClient{cc: cc}
}

func (c *BattleServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BattleServiceClient) CreateBattle(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCreateBattle, in, opts...)
}

func (c *BattleServiceClient) SubmitChoice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSubmitChoice, in, opts...)
}

func (c *BattleServiceClient) SubmitReplacement(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSubmitReplacement, in, opts...)
}

func (c *BattleServiceClient) GetBattle(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetBattle, in, opts...)
}

func (c *BattleServiceClient) ExportReplay(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodExportReplay, in, opts...)
}
