package render

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
)

// Sink recibe cada comando ya serializado como una línea NDJSON.
type Sink interface {
	Publish(line []byte)
}

// Command es el formato en el cable de cada primitiva.
type Command struct {
	Op       string         `json:"op"`
	Handle   Handle         `json:"handle,omitempty"`
	Position *fleet.LatLng  `json:"position,omitempty"`
	Points   []fleet.LatLng `json:"points,omitempty"`
	Icon     *Icon          `json:"icon,omitempty"`
	Style    *Style         `json:"style,omitempty"`
	Content  *string        `json:"content,omitempty"`
	Bounds   *Bounds        `json:"bounds,omitempty"`
	Padding  int            `json:"padding,omitempty"`
	Zoom     *int           `json:"zoom,omitempty"`
	Animate  bool           `json:"animate,omitempty"`
}

// Stream implements Renderer by publishing NDJSON commands. Handles are
// allocated locally so callers never wait on the widget.
type Stream struct {
	sink   Sink
	logger *slog.Logger
}

func NewStream(sink Sink, lg *slog.Logger) *Stream {
	return &Stream{sink: sink, logger: lg.With("component", "render")}
}

func (s *Stream) send(c Command) {
	b, err := json.Marshal(c)
	if err != nil {
		s.logger.Error("render: encode failed", "op", c.Op, "err", err)
		return
	}
	observability.RenderCommands.WithLabelValues(c.Op).Inc()
	s.sink.Publish(b)
}

func newHandle(prefix string) Handle {
	return Handle(prefix + "-" + uuid.NewString())
}

func (s *Stream) CreateMarker(pos fleet.LatLng, icon Icon) Handle {
	h := newHandle("m")
	s.send(Command{Op: "create_marker", Handle: h, Position: &pos, Icon: &icon})
	return h
}

func (s *Stream) SetPosition(h Handle, pos fleet.LatLng) {
	s.send(Command{Op: "set_position", Handle: h, Position: &pos})
}

func (s *Stream) SetIcon(h Handle, icon Icon) {
	s.send(Command{Op: "set_icon", Handle: h, Icon: &icon})
}

func (s *Stream) OpenPopup(h Handle) {
	s.send(Command{Op: "open_popup", Handle: h})
}

func (s *Stream) SetPopupContent(h Handle, content string) {
	s.send(Command{Op: "set_popup_content", Handle: h, Content: &content})
}

func (s *Stream) DestroyMarker(h Handle) {
	s.send(Command{Op: "destroy_marker", Handle: h})
}

func (s *Stream) DrawPolyline(points []fleet.LatLng, style Style) Handle {
	h := newHandle("l")
	s.send(Command{Op: "draw_polyline", Handle: h, Points: points, Style: &style})
	return h
}

func (s *Stream) DrawCircle(pos fleet.LatLng, style Style) Handle {
	h := newHandle("c")
	s.send(Command{Op: "draw_circle", Handle: h, Position: &pos, Style: &style})
	return h
}

func (s *Stream) RemoveShape(h Handle) {
	s.send(Command{Op: "remove_shape", Handle: h})
}

func (s *Stream) FitBounds(b Bounds, padding int) {
	s.send(Command{Op: "fit_bounds", Bounds: &b, Padding: padding})
}

func (s *Stream) SetView(pos fleet.LatLng, zoom int, animate bool) {
	c := Command{Op: "set_view", Position: &pos, Animate: animate}
	if zoom != KeepZoom {
		c.Zoom = &zoom
	}
	s.send(c)
}
