// Package render define la frontera con el widget de mapa: primitivas de
// dibujo y los tipos que viajan por ella.
package render

import "fleet-view/internal/fleet"

// Handle es una referencia opaca a una primitiva dibujada. Sólo su dueño
// (reconciler u overlay) la conserva.
type Handle string

// KeepZoom le pide al widget mantener el zoom actual.
const KeepZoom = -1

type Icon struct {
	Label     string `json:"label"`
	Color     string `json:"color"`
	Highlight bool   `json:"highlight"`
}

type Style struct {
	Color       string  `json:"color"`
	Weight      int     `json:"weight,omitempty"`
	Radius      int     `json:"radius,omitempty"`
	FillOpacity float64 `json:"fill_opacity,omitempty"`
}

// Bounds is the south-west / north-east corner pair of a region.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoundsOf returns the minimal region containing every point. ok is false
// for an empty slice.
func BoundsOf(points []fleet.LatLng) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{South: points[0].Lat, North: points[0].Lat, West: points[0].Lng, East: points[0].Lng}
	for _, p := range points[1:] {
		b.South = min(b.South, p.Lat)
		b.North = max(b.North, p.Lat)
		b.West = min(b.West, p.Lng)
		b.East = max(b.East, p.Lng)
	}
	return b, true
}

// Renderer is the map widget. Calls are made from a single goroutine.
type Renderer interface {
	CreateMarker(pos fleet.LatLng, icon Icon) Handle
	SetPosition(h Handle, pos fleet.LatLng)
	SetIcon(h Handle, icon Icon)
	OpenPopup(h Handle)
	SetPopupContent(h Handle, content string)
	DestroyMarker(h Handle)

	DrawPolyline(points []fleet.LatLng, style Style) Handle
	DrawCircle(pos fleet.LatLng, style Style) Handle
	RemoveShape(h Handle)

	FitBounds(b Bounds, padding int)
	SetView(pos fleet.LatLng, zoom int, animate bool)
}
