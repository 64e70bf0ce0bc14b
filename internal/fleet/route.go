package fleet

type OrderID int64

// Order is read-only input for overlays and optimization requests.
type Order struct {
	ID      OrderID
	Pickup  *LatLng
	Dropoff *LatLng
}

type StopKind string

const (
	StopPickup  StopKind = "pickup"
	StopDropoff StopKind = "dropoff"
)

type Stop struct {
	OrderID  OrderID
	Position LatLng
	Kind     StopKind
}

// OptimizedRoute lists stops in traversal order. Nothing downstream may
// reorder them.
type OptimizedRoute struct {
	VehicleID     VehicleID
	Stops         []Stop
	TotalDistance *float64
	TotalTime     *float64
}

type OptimizationResult struct {
	Routes     []OptimizedRoute
	Unassigned []OrderID
}
