// Package overlay dibuja las rutas optimizadas y los pedidos sin asignar.
// Cada resultado nuevo reemplaza por completo al anterior.
package overlay

import (
	"log/slog"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
	"fleet-view/internal/render"
)

// Palette colors routes by their index in the optimizer response. The same
// vehicle can change color between responses.
var Palette = []string{"#2563eb", "#16a34a", "#f59e0b", "#9333ea", "#0891b2", "#db2777"}

const (
	ColorPickup            = "#16a34a"
	ColorDropoff           = "#dc2626"
	ColorUnassignedPickup  = "#f59e0b"
	ColorUnassignedDropoff = "#7c3aed"

	routeWeight = 4
	stopRadius  = 6
)

type Builder struct {
	r       render.Renderer
	logger  *slog.Logger
	handles []render.Handle
	points  []fleet.LatLng
}

func New(r render.Renderer, lg *slog.Logger) *Builder {
	return &Builder{r: r, logger: lg.With("component", "overlay")}
}

// RouteColor returns the line color of the route at index i.
func RouteColor(i int) string {
	return Palette[i%len(Palette)]
}

// Rebuild tears down every overlay handle and draws routes and unassigned
// orders from scratch.
func (b *Builder) Rebuild(routes []fleet.OptimizedRoute, unassigned []fleet.OrderID, orders []fleet.Order) {
	b.Clear()

	for i, route := range routes {
		path := make([]fleet.LatLng, 0, len(route.Stops))
		for _, s := range route.Stops {
			path = append(path, s.Position)
		}
		if len(path) >= 2 {
			b.handles = append(b.handles, b.r.DrawPolyline(path, render.Style{Color: RouteColor(i), Weight: routeWeight}))
		}
		for _, s := range route.Stops {
			b.circle(s.Position, stopColor(s.Kind))
		}
	}

	byID := make(map[fleet.OrderID]fleet.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	skipped := 0
	for _, id := range unassigned {
		o, ok := byID[id]
		if !ok {
			skipped++
			continue
		}
		if o.Pickup != nil {
			b.circle(*o.Pickup, ColorUnassignedPickup)
		}
		if o.Dropoff != nil {
			b.circle(*o.Dropoff, ColorUnassignedDropoff)
		}
	}

	observability.OverlayRebuilds.Inc()
	b.logger.Debug("overlay rebuilt", "routes", len(routes), "unassigned", len(unassigned), "unknown_orders", skipped, "handles", len(b.handles))
}

func (b *Builder) circle(pos fleet.LatLng, color string) {
	b.handles = append(b.handles, b.r.DrawCircle(pos, render.Style{Color: color, Radius: stopRadius, FillOpacity: 0.9}))
	b.points = append(b.points, pos)
}

// Points returns every stop and unassigned-order position currently drawn.
func (b *Builder) Points() []fleet.LatLng {
	return append([]fleet.LatLng(nil), b.points...)
}

func (b *Builder) Len() int { return len(b.handles) }

// Clear removes every overlay handle.
func (b *Builder) Clear() {
	for _, h := range b.handles {
		b.r.RemoveShape(h)
	}
	b.handles = nil
	b.points = nil
}

func stopColor(k fleet.StopKind) string {
	if k == fleet.StopPickup {
		return ColorPickup
	}
	return ColorDropoff
}
