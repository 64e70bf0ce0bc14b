// Package optimizer talks to the external route optimization service.
package optimizer

import (
	"fleet-view/internal/fleet"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type OrderIn struct {
	ID              fleet.OrderID `json:"id"`
	PickupLocation  Location      `json:"pickup_location"`
	DropoffLocation Location      `json:"dropoff_location"`
}

type VehicleIn struct {
	ID            fleet.VehicleID `json:"id"`
	StartLocation Location        `json:"start_location"`
	EndLocation   *Location       `json:"end_location,omitempty"`
}

type Request struct {
	Orders   []OrderIn   `json:"orders"`
	Vehicles []VehicleIn `json:"vehicles"`
}

type StopOut struct {
	OrderID  fleet.OrderID `json:"order_id"`
	Location Location      `json:"location"`
	Type     string        `json:"type"`
}

type RouteOut struct {
	VehicleID     fleet.VehicleID `json:"vehicle_id"`
	Stops         []StopOut       `json:"stops"`
	TotalDistance *float64        `json:"total_distance,omitempty"`
	TotalTime     *float64        `json:"total_time,omitempty"`
}

type Response struct {
	OptimizedRoutes  []RouteOut      `json:"optimized_routes"`
	UnassignedOrders []fleet.OrderID `json:"unassigned_orders"`
}

func toLocation(p fleet.LatLng) Location {
	return Location{Latitude: p.Lat, Longitude: p.Lng}
}

// BuildRequest keeps only orders with both endpoints and vehicles with a
// position; the optimizer cannot place anything else.
func BuildRequest(orders []fleet.Order, vehicles []fleet.Vehicle) Request {
	req := Request{
		Orders:   make([]OrderIn, 0, len(orders)),
		Vehicles: make([]VehicleIn, 0, len(vehicles)),
	}
	for _, o := range orders {
		if o.Pickup == nil || o.Dropoff == nil {
			continue
		}
		req.Orders = append(req.Orders, OrderIn{
			ID:              o.ID,
			PickupLocation:  toLocation(*o.Pickup),
			DropoffLocation: toLocation(*o.Dropoff),
		})
	}
	for _, v := range vehicles {
		pos, ok := v.Position()
		if !ok {
			continue
		}
		req.Vehicles = append(req.Vehicles, VehicleIn{ID: v.ID, StartLocation: toLocation(pos)})
	}
	return req
}

// Result converts the wire response. Stop order and unknown stop types
// are passed through untouched.
func (r Response) Result() fleet.OptimizationResult {
	out := fleet.OptimizationResult{
		Routes:     make([]fleet.OptimizedRoute, 0, len(r.OptimizedRoutes)),
		Unassigned: append([]fleet.OrderID(nil), r.UnassignedOrders...),
	}
	for _, rt := range r.OptimizedRoutes {
		route := fleet.OptimizedRoute{
			VehicleID:     rt.VehicleID,
			Stops:         make([]fleet.Stop, 0, len(rt.Stops)),
			TotalDistance: rt.TotalDistance,
			TotalTime:     rt.TotalTime,
		}
		for _, s := range rt.Stops {
			route.Stops = append(route.Stops, fleet.Stop{
				OrderID:  s.OrderID,
				Position: fleet.LatLng{Lat: s.Location.Latitude, Lng: s.Location.Longitude},
				Kind:     fleet.StopKind(s.Type),
			})
		}
		out.Routes = append(out.Routes, route)
	}
	return out
}
