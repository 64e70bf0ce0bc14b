package optimizer

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"fleet-view/internal/fleet"
)

// startOptimizer registra a mano el servicio; no hay código generado.
func startOptimizer(t *testing.T, handle func(*structpb.Struct) (*structpb.Struct, error)) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "fleet.v1.RouteOptimizer",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "OptimizeRoutes",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return handle(in)
			},
		}},
	}, struct{}{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", quiet(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClientOptimize(t *testing.T) {
	var got *structpb.Struct
	c := startOptimizer(t, func(in *structpb.Struct) (*structpb.Struct, error) {
		got = in
		return structpb.NewStruct(map[string]any{
			"optimized_routes": []any{map[string]any{
				"vehicle_id": 5,
				"total_time": 30.0,
				"stops": []any{
					map[string]any{"order_id": 1, "type": "pickup", "location": map[string]any{"latitude": 1.0, "longitude": 2.0}},
					map[string]any{"order_id": 1, "type": "dropoff", "location": map[string]any{"latitude": 3.0, "longitude": 4.0}},
				},
			}},
			"unassigned_orders": []any{2},
		})
	})

	res, err := c.Optimize(context.Background(), Request{
		Orders:   []OrderIn{{ID: 1}},
		Vehicles: []VehicleIn{{ID: 5, StartLocation: Location{Latitude: 9, Longitude: 8}}},
	})
	require.NoError(t, err)

	vehicles := got.GetFields()["vehicles"].GetListValue().GetValues()
	require.Len(t, vehicles, 1)
	assert.Equal(t, 5.0, vehicles[0].GetStructValue().GetFields()["id"].GetNumberValue())

	require.Len(t, res.Routes, 1)
	assert.Equal(t, fleet.VehicleID(5), res.Routes[0].VehicleID)
	require.NotNil(t, res.Routes[0].TotalTime)
	assert.Equal(t, 30.0, *res.Routes[0].TotalTime)
	assert.Equal(t, []fleet.Stop{
		{OrderID: 1, Position: fleet.LatLng{Lat: 1, Lng: 2}, Kind: fleet.StopPickup},
		{OrderID: 1, Position: fleet.LatLng{Lat: 3, Lng: 4}, Kind: fleet.StopDropoff},
	}, res.Routes[0].Stops)
	assert.Equal(t, []fleet.OrderID{2}, res.Unassigned)
}

func TestGRPCClientFailure(t *testing.T) {
	c := startOptimizer(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "solver down")
	})

	_, err := c.Optimize(context.Background(), Request{})
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
