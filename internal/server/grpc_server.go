package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tabbench.v1.BenchmarkService"

// BenchmarkServer is the server API of ServiceName. Messages are
// google.protobuf.Struct values holding the same JSON bodies as the HTTP API.
type BenchmarkServer interface {
	GetSpecification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProblem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateEvaluator(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DropEvaluator(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DropProblem(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BenchmarkServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BenchmarkServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BenchmarkServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BenchmarkServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetSpecification", BenchmarkServer.GetSpecification),
		unaryHandler("CreateProblem", BenchmarkServer.CreateProblem),
		unaryHandler("CreateEvaluator", BenchmarkServer.CreateEvaluator),
		unaryHandler("Evaluate", BenchmarkServer.Evaluate),
		unaryHandler("DropEvaluator", BenchmarkServer.DropEvaluator),
		unaryHandler("DropProblem", BenchmarkServer.DropProblem),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tabbench/v1/benchmark.proto",
}

// RegisterBenchmarkServer registers srv on s.
func RegisterBenchmarkServer(s grpc.ServiceRegistrar, srv BenchmarkServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCServer implements BenchmarkServer over a session store.
type GRPCServer struct {
	store *session.Store
}

func NewGRPCServer(store *session.Store) *GRPCServer {
	return &GRPCServer{store: store}
}

func (s *GRPCServer) GetSpecification(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(s.store.Factory().Specification())
}

func (s *GRPCServer) CreateProblem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := checkSeedNumber(in); err != nil {
		return nil, statusError(err)
	}
	var req createProblemRequest
	if err := decode(in, &req); err != nil {
		return nil, statusError(err)
	}
	seed, err := req.seed()
	if err != nil {
		return nil, statusError(err)
	}
	rec, err := s.store.CreateProblem(seed)
	if err != nil {
		return nil, statusError(err)
	}
	logger.Info("problem created", "problem_id", rec.ID, "seed", seed)
	return respond(problemToJSON(rec))
}

func (s *GRPCServer) CreateEvaluator(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createEvaluatorRequest
	if err := decode(in, &req); err != nil {
		return nil, statusError(err)
	}
	if req.ProblemID == "" {
		return nil, statusError(fmt.Errorf("%w: problem_id is required", errBadRequest))
	}
	params, err := req.params()
	if err != nil {
		return nil, statusError(err)
	}
	rec, err := s.store.CreateEvaluator(req.ProblemID, params)
	if err != nil {
		return nil, statusError(err)
	}
	logger.Info("evaluator created", "evaluator_id", rec.ID, "problem_id", req.ProblemID)
	return respond(rec.Snapshot())
}

func (s *GRPCServer) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req evaluateRequest
	if err := decode(in, &req); err != nil {
		return nil, statusError(err)
	}
	if req.EvaluatorID == "" {
		return nil, statusError(fmt.Errorf("%w: evaluator_id is required", errBadRequest))
	}
	budget, err := req.budget()
	if err != nil {
		return nil, statusError(err)
	}
	view, values, err := s.store.Evaluate(req.EvaluatorID, budget)
	if err != nil {
		return nil, statusError(err)
	}
	return respond(evaluateResponse{Evaluator: view, Values: values})
}

func (s *GRPCServer) DropEvaluator(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req evaluatorRequest
	if err := decode(in, &req); err != nil {
		return nil, statusError(err)
	}
	if req.EvaluatorID == "" {
		return nil, statusError(fmt.Errorf("%w: evaluator_id is required", errBadRequest))
	}
	if err := s.store.DropEvaluator(req.EvaluatorID); err != nil {
		return nil, statusError(err)
	}
	logger.Info("evaluator dropped", "evaluator_id", req.EvaluatorID)
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) DropProblem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req problemRequest
	if err := decode(in, &req); err != nil {
		return nil, statusError(err)
	}
	if req.ProblemID == "" {
		return nil, statusError(fmt.Errorf("%w: problem_id is required", errBadRequest))
	}
	if err := s.store.DropProblem(req.ProblemID); err != nil {
		return nil, statusError(err)
	}
	logger.Info("problem dropped", "problem_id", req.ProblemID)
	return &structpb.Struct{}, nil
}

// checkSeedNumber rejects a numeric seed that a double may already have
// rounded. Such seeds must be sent as decimal strings.
func checkSeedNumber(in *structpb.Struct) error {
	n, ok := in.GetFields()["seed"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}
	if v := n.NumberValue; math.Abs(v) > maxExactSeed || v != math.Trunc(v) {
		return fmt.Errorf("%w: numeric seed %v is not exact; send it as a decimal string", benchmark.ErrInvalidSeed, v)
	}
	return nil
}

func statusError(err error) error {
	return status.Error(grpcCode(err), err.Error())
}

// decode converts a Struct message into a request body.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// encode converts a response body into a Struct message. Numbers travel as
// doubles, so seeds and non-finite floats use string forms in their JSON.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func respond(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, statusError(err)
	}
	return out, nil
}

// Client calls ServiceName on a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decode(out, resp)
}

// Specification fetches the served problem's specification.
func (c *Client) Specification(ctx context.Context) (benchmark.Specification, error) {
	var spec benchmark.Specification
	err := c.invoke(ctx, "GetSpecification", struct{}{}, &spec)
	return spec, err
}

// CreateProblem registers a problem and returns its id.
func (c *Client) CreateProblem(ctx context.Context, seed int64) (string, error) {
	var resp problemResponse
	sv := seedValue(seed)
	if err := c.invoke(ctx, "CreateProblem", createProblemRequest{Seed: &sv}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateEvaluator registers an evaluator under problemID.
func (c *Client) CreateEvaluator(ctx context.Context, problemID string, params []int) (session.View, error) {
	var view session.View
	err := c.invoke(ctx, "CreateEvaluator", createEvaluatorRequest{ProblemID: problemID, Params: params}, &view)
	return view, err
}

// Evaluate advances an evaluator by budget epochs.
func (c *Client) Evaluate(ctx context.Context, evaluatorID string, budget int) (benchmark.Values, error) {
	var resp evaluateResponse
	err := c.invoke(ctx, "Evaluate", evaluateRequest{EvaluatorID: evaluatorID, Budget: &budget}, &resp)
	return resp.Values, err
}

// DropProblem releases a problem and its evaluators.
func (c *Client) DropProblem(ctx context.Context, problemID string) error {
	return c.invoke(ctx, "DropProblem", problemRequest{ProblemID: problemID}, nil)
}

// DropEvaluator releases an evaluator.
func (c *Client) DropEvaluator(ctx context.Context, evaluatorID string) error {
	return c.invoke(ctx, "DropEvaluator", evaluatorRequest{EvaluatorID: evaluatorID}, nil)
}
