// Package rendertest provides an in-memory Renderer that records every call.
package rendertest

import (
	"fmt"
	"sync"

	"fleet-view/internal/fleet"
	"fleet-view/internal/render"
)

type Call struct {
	Op       string
	Handle   render.Handle
	Position fleet.LatLng
	Points   []fleet.LatLng
	Icon     render.Icon
	Style    render.Style
	Content  string
	Bounds   render.Bounds
	Padding  int
	Zoom     int
	Animate  bool
}

// Marker is the widget-side view of a live vehicle marker.
type Marker struct {
	Position  fleet.LatLng
	Icon      render.Icon
	Popup     string
	PopupOpen bool
}

type Recorder struct {
	mu      sync.Mutex
	seq     int
	calls   []Call
	markers map[render.Handle]*Marker
	shapes  map[render.Handle]Call
}

func New() *Recorder {
	return &Recorder{
		markers: make(map[render.Handle]*Marker),
		shapes:  make(map[render.Handle]Call),
	}
}

func (r *Recorder) next() render.Handle {
	r.seq++
	return render.Handle(fmt.Sprintf("h%d", r.seq))
}

func (r *Recorder) record(c Call) {
	r.calls = append(r.calls, c)
}

func (r *Recorder) marker(h render.Handle) *Marker {
	m, ok := r.markers[h]
	if !ok {
		panic(fmt.Sprintf("rendertest: %s on unknown marker %s", r.calls[len(r.calls)-1].Op, h))
	}
	return m
}

func (r *Recorder) CreateMarker(pos fleet.LatLng, icon render.Icon) render.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.next()
	r.record(Call{Op: "CreateMarker", Handle: h, Position: pos, Icon: icon})
	r.markers[h] = &Marker{Position: pos, Icon: icon}
	return h
}

func (r *Recorder) SetPosition(h render.Handle, pos fleet.LatLng) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "SetPosition", Handle: h, Position: pos})
	r.marker(h).Position = pos
}

func (r *Recorder) SetIcon(h render.Handle, icon render.Icon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "SetIcon", Handle: h, Icon: icon})
	r.marker(h).Icon = icon
}

func (r *Recorder) OpenPopup(h render.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "OpenPopup", Handle: h})
	r.marker(h).PopupOpen = true
}

func (r *Recorder) SetPopupContent(h render.Handle, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "SetPopupContent", Handle: h, Content: content})
	r.marker(h).Popup = content
}

func (r *Recorder) DestroyMarker(h render.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "DestroyMarker", Handle: h})
	r.marker(h)
	delete(r.markers, h)
}

func (r *Recorder) DrawPolyline(points []fleet.LatLng, style render.Style) render.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.next()
	c := Call{Op: "DrawPolyline", Handle: h, Points: append([]fleet.LatLng(nil), points...), Style: style}
	r.record(c)
	r.shapes[h] = c
	return h
}

func (r *Recorder) DrawCircle(pos fleet.LatLng, style render.Style) render.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.next()
	c := Call{Op: "DrawCircle", Handle: h, Position: pos, Style: style}
	r.record(c)
	r.shapes[h] = c
	return h
}

func (r *Recorder) RemoveShape(h render.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "RemoveShape", Handle: h})
	if _, ok := r.shapes[h]; !ok {
		panic(fmt.Sprintf("rendertest: RemoveShape on unknown shape %s", h))
	}
	delete(r.shapes, h)
}

func (r *Recorder) FitBounds(b render.Bounds, padding int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "FitBounds", Bounds: b, Padding: padding})
}

func (r *Recorder) SetView(pos fleet.LatLng, zoom int, animate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "SetView", Position: pos, Zoom: zoom, Animate: animate})
}

// Calls returns every recorded call, optionally filtered by op.
func (r *Recorder) Calls(ops ...string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ops) == 0 {
		return append([]Call(nil), r.calls...)
	}
	var out []Call
	for _, c := range r.calls {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (r *Recorder) Count(op string) int { return len(r.Calls(op)) }

// Reset forgets recorded calls but keeps the live scene.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) Markers() map[render.Handle]Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[render.Handle]Marker, len(r.markers))
	for h, m := range r.markers {
		out[h] = *m
	}
	return out
}

func (r *Recorder) Shapes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shapes)
}
