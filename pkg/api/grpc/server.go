// Package grpcapi implements the calc.v1.Calculator gRPC service.
//
// The service is described by hand with well-known protobuf types as its
// messages, so no generated code is needed to serve or call it:
//
//	Evaluate(StringValue) returns (Struct)       // expression -> evaluation record
//	Parse(StringValue) returns (StringValue)     // expression -> formatted AST
//	Tokenize(StringValue) returns (ListValue)    // expression -> tokens
//	GetEvaluation(StringValue) returns (Struct)  // id -> evaluation record
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/calc/pkg/expr"
	"github.com/lemonberrylabs/calc/pkg/observability"
	"github.com/lemonberrylabs/calc/pkg/runtime"
	"github.com/lemonberrylabs/calc/pkg/store"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "calc.v1.Calculator"

// CalculatorServer is the server API for the Calculator service.
type CalculatorServer interface {
	Evaluate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Parse(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Tokenize(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetEvaluation(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Server implements CalculatorServer over an Engine and a Store.
type Server struct {
	engine *runtime.Engine
	store  *store.Store
	logger *slog.Logger
	grpc   *grpc.Server
}

var _ CalculatorServer = (*Server)(nil)

// New creates a new gRPC server. A nil logger disables request logging.
func New(engine *runtime.Engine, s *store.Store, logger *slog.Logger) *Server {
	srv := &Server{
		engine: engine,
		store:  s,
		logger: logger,
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.logCalls))
	RegisterCalculatorServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	observability.LogServerStart(s.logger, "grpc", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	done := observability.TimedOperation()
	resp, err := handler(ctx, req)
	if s.logger != nil {
		s.logger.Debug("grpc call",
			slog.String("method", info.FullMethod),
			slog.String("code", status.Code(err).String()),
			slog.Float64("duration_ms", observability.Millis(done())),
		)
	}
	return resp, err
}

// --- Calculator Service ---

// Evaluate runs an expression and records it. Expressions that fail to
// evaluate are recorded too, and reported as InvalidArgument with the
// record attached as a status detail.
func (s *Server) Evaluate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	text, err := requireExpression(req)
	if err != nil {
		return nil, err
	}

	res, runErr := s.engine.Run(runtime.WithSurface(ctx, "grpc"), text)
	if runErr != nil && expr.Stage(runErr) == "" {
		return nil, status.FromContextError(runErr).Err()
	}

	ev := s.store.Record(store.FromRun(text, "grpc", res, runErr))
	record, err := evaluationToProto(ev)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode evaluation: %v", err)
	}

	if runErr != nil {
		st := status.Newf(codes.InvalidArgument, "%s error: %v", expr.Stage(runErr), runErr)
		if withDetails, derr := st.WithDetails(record); derr == nil {
			st = withDetails
		}
		return nil, st.Err()
	}
	return record, nil
}

// Parse returns the fully parenthesised form of an expression.
func (s *Server) Parse(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	text, err := requireExpression(req)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Parse(runtime.WithSurface(ctx, "grpc"), text)
	if err != nil {
		return nil, pipelineStatus(err)
	}
	return wrapperspb.String(expr.Format(res.AST)), nil
}

// Tokenize returns the token stream of an expression.
func (s *Server) Tokenize(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	text, err := requireExpression(req)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Tokenize(runtime.WithSurface(ctx, "grpc"), text)
	if err != nil {
		return nil, pipelineStatus(err)
	}

	values := make([]*structpb.Value, len(res.Tokens))
	for i, tok := range res.Tokens {
		fields := map[string]*structpb.Value{
			"type":  structpb.NewStringValue(tok.Type.String()),
			"value": structpb.NewStringValue(tok.Value),
			"pos":   structpb.NewNumberValue(float64(tok.Pos)),
		}
		if tok.Type == expr.TokenNumber {
			fields["number"] = structpb.NewNumberValue(tok.Num)
		}
		values[i] = structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	return &structpb.ListValue{Values: values}, nil
}

// GetEvaluation returns a recorded evaluation by ID.
func (s *Server) GetEvaluation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	ev, err := s.store.Get(req.GetValue())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	record, err := evaluationToProto(ev)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode evaluation: %v", err)
	}
	return record, nil
}

// --- Helpers ---

func requireExpression(req *wrapperspb.StringValue) (string, error) {
	if req.GetValue() == "" {
		return "", status.Error(codes.InvalidArgument, "expression is required")
	}
	return req.GetValue(), nil
}

func pipelineStatus(err error) error {
	if expr.Stage(err) == "" {
		return status.FromContextError(err).Err()
	}
	return status.Errorf(codes.InvalidArgument, "%s error: %v", expr.Stage(err), err)
}

// evaluationToProto converts a record through its JSON form, so gRPC and
// REST clients see the same field names.
func evaluationToProto(ev *store.Evaluation) (*structpb.Struct, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// --- Service registration ---

// RegisterCalculatorServer registers srv on s.
func RegisterCalculatorServer(s grpc.ServiceRegistrar, srv CalculatorServer) {
	s.RegisterService(&calculatorServiceDesc, srv)
}

var calculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Parse", Handler: parseHandler},
		{MethodName: "Tokenize", Handler: tokenizeHandler},
		{MethodName: "GetEvaluation", Handler: getEvaluationHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// unary builds a grpc.MethodHandler for a method taking a StringValue.
func unary[Resp any](method string, call func(CalculatorServer, context.Context, *wrapperspb.StringValue) (Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalculatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CalculatorServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	evaluateHandler      = unary("Evaluate", CalculatorServer.Evaluate)
	parseHandler         = unary("Parse", CalculatorServer.Parse)
	tokenizeHandler      = unary("Tokenize", CalculatorServer.Tokenize)
	getEvaluationHandler = unary("GetEvaluation", CalculatorServer.GetEvaluation)
)
