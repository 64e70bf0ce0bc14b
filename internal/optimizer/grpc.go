package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"fleet-view/internal/fleet"
)

// OptimizeMethod es el método unario expuesto por el optimizador. Request y
// response viajan como google.protobuf.Struct con el mismo esquema JSON que
// la variante HTTP.
const OptimizeMethod = "/fleet.v1.RouteOptimizer/OptimizeRoutes"

type GRPCClient struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

func NewGRPCClient(addr string, lg *slog.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("optimizer grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, logger: lg.With("component", "optimizer", "transport", "grpc")}, nil
}

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

func (g *GRPCClient) Optimize(ctx context.Context, req Request) (fleet.OptimizationResult, error) {
	in, err := toStruct(req)
	if err != nil {
		return fleet.OptimizationResult{}, failed("grpc", err)
	}
	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, OptimizeMethod, in, out); err != nil {
		return fleet.OptimizationResult{}, failed("grpc", err)
	}
	resp, err := fromStruct(out)
	if err != nil {
		return fleet.OptimizationResult{}, failed("grpc", err)
	}
	g.logger.Debug("optimizer: response", "routes", len(resp.OptimizedRoutes))
	return resp.Result(), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct) (Response, error) {
	b, err := protojson.Marshal(s)
	if err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
