// Package agent exposes the tool dispatcher to the language-model agent over
// gRPC. Requests and results travel as google.protobuf.Struct so the wire
// shape matches the JSON tool contract.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "launchpad.tools.v1.ToolService"

	executeMethod = "/" + ServiceName + "/Execute"
)

// ToolServiceServer is the server API for the tool service.
type ToolServiceServer interface {
	// Execute runs {"tool": name, "arguments": {...}} and returns the tool result.
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ToolServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ToolServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ToolServiceDesc describes the tool service for grpc.Server.RegisterService.
var ToolServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ToolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "launchpad/tools/v1/tools.proto",
}

// Executor runs a tool and returns its JSON result.
type Executor interface {
	Execute(ctx context.Context, userID, name string, args json.RawMessage) json.RawMessage
}

// Authenticator resolves a bearer token to an account.
type Authenticator func(ctx context.Context, token string) (*identity.Account, error)

// Server implements ToolServiceServer over an Executor.
type Server struct {
	exec   Executor
	auth   Authenticator
	logger *slog.Logger
}

var _ ToolServiceServer = (*Server)(nil)

// NewServer creates a Server.
func NewServer(exec Executor, auth Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{exec: exec, auth: auth, logger: logger}
}

// Execute authenticates the caller from metadata and dispatches the tool.
// Tool failures are returned in the result struct, not as gRPC errors.
func (s *Server) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			token = identity.BearerToken(vals[0])
		}
	}
	account, err := s.auth(ctx, token)
	if errors.Is(err, domain.ErrUnauthorized) {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid bearer token")
	}
	if err != nil {
		s.logger.Error("Failed to authenticate tool call", "error", err)
		return nil, status.Error(codes.Internal, "failed to resolve account")
	}

	fields := req.GetFields()
	tool := fields["tool"].GetStringValue()
	if tool == "" {
		return nil, status.Error(codes.InvalidArgument, "tool is required")
	}
	var args json.RawMessage
	if v, ok := fields["arguments"]; ok {
		if _, isStruct := v.GetKind().(*structpb.Value_StructValue); !isStruct {
			return nil, status.Error(codes.InvalidArgument, "arguments must be an object")
		}
		if args, err = protojson.Marshal(v); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "encode arguments: %v", err)
		}
	}

	out := s.exec.Execute(ctx, account.ID, tool, args)
	res := &structpb.Struct{}
	if err := protojson.Unmarshal(out, res); err != nil {
		s.logger.Error("Tool result is not an object", "tool", tool, "error", err)
		return nil, status.Error(codes.Internal, "tool result is not an object")
	}
	return res, nil
}

// NewGRPCServer builds a grpc.Server serving the tool service and the
// standard health service.
func NewGRPCServer(srv ToolServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	g := grpc.NewServer(opts...)
	g.RegisterService(&ToolServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)
	return g
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelDebug
		if code != codes.OK {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "gRPC call", "method", info.FullMethod, "code", code.String(),
			"duration_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}
