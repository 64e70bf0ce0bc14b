// Package reconcile keeps one rendered marker per positioned vehicle and
// updates it in place as telemetry and selection change.
package reconcile

import (
	"fmt"
	"html"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
	"fleet-view/internal/render"
	"fleet-view/internal/store"
)

const (
	colorDefault   = "#ef4444"
	colorHighlight = "#2563eb"
)

type entry struct {
	handle render.Handle
	pos    fleet.LatLng
	icon   render.Icon
	popup  string
}

// Result resume lo que hizo una pasada.
type Result struct {
	Created   []fleet.VehicleID
	Moved     []fleet.VehicleID
	Destroyed []fleet.VehicleID
}

// Reconciler owns the vehicle marker arena. It is not safe for concurrent
// use; the map view calls it from its event loop only.
type Reconciler struct {
	r      render.Renderer
	logger *slog.Logger
	arena  map[fleet.VehicleID]*entry
}

func New(r render.Renderer, lg *slog.Logger) *Reconciler {
	return &Reconciler{
		r:      r,
		logger: lg.With("component", "reconcile"),
		arena:  make(map[fleet.VehicleID]*entry),
	}
}

// Reconcile brings the arena in line with snap. selected is the highlighted
// vehicle, or nil.
func (rc *Reconciler) Reconcile(snap store.Snapshot, selected *fleet.VehicleID) Result {
	var res Result

	for _, id := range slices.Sorted(maps.Keys(rc.arena)) {
		e := rc.arena[id]
		v, ok := snap.Get(id)
		if ok {
			if _, hasPos := v.Position(); hasPos {
				continue
			}
		}
		rc.r.DestroyMarker(e.handle)
		delete(rc.arena, id)
		res.Destroyed = append(res.Destroyed, id)
		observability.MarkerOps.WithLabelValues("destroy").Inc()
	}

	for _, v := range snap.Vehicles() {
		pos, ok := v.Position()
		if !ok {
			continue
		}
		icon := iconFor(v, selected != nil && *selected == v.ID)
		popup := popupFor(v, pos)

		e, exists := rc.arena[v.ID]
		if !exists {
			h := rc.r.CreateMarker(pos, icon)
			rc.r.SetPopupContent(h, popup)
			rc.arena[v.ID] = &entry{handle: h, pos: pos, icon: icon, popup: popup}
			res.Created = append(res.Created, v.ID)
			observability.MarkerOps.WithLabelValues("create").Inc()
			continue
		}

		if e.pos != pos {
			rc.r.SetPosition(e.handle, pos)
			e.pos = pos
			res.Moved = append(res.Moved, v.ID)
			observability.MarkerOps.WithLabelValues("move").Inc()
		}
		if e.icon != icon {
			rc.r.SetIcon(e.handle, icon)
			e.icon = icon
			observability.MarkerOps.WithLabelValues("restyle").Inc()
		}
		// Se reescribe en sitio; nunca se cierra y reabre el popup.
		if e.popup != popup {
			rc.r.SetPopupContent(e.handle, popup)
			e.popup = popup
		}
	}

	if len(res.Created)+len(res.Destroyed) > 0 {
		rc.logger.Debug("markers reconciled", "created", len(res.Created), "destroyed", len(res.Destroyed), "live", len(rc.arena))
	}
	return res
}

// OpenPopup opens the popup of a live marker. It reports false when the
// vehicle has no marker.
func (rc *Reconciler) OpenPopup(id fleet.VehicleID) bool {
	e, ok := rc.arena[id]
	if !ok {
		return false
	}
	rc.r.OpenPopup(e.handle)
	return true
}

// Position returns the rendered position of a vehicle's marker.
func (rc *Reconciler) Position(id fleet.VehicleID) (fleet.LatLng, bool) {
	e, ok := rc.arena[id]
	if !ok {
		return fleet.LatLng{}, false
	}
	return e.pos, true
}

func (rc *Reconciler) Len() int { return len(rc.arena) }

// Close destroys every live marker.
func (rc *Reconciler) Close() {
	for id, e := range rc.arena {
		rc.r.DestroyMarker(e.handle)
		delete(rc.arena, id)
		observability.MarkerOps.WithLabelValues("destroy").Inc()
	}
}

func iconFor(v fleet.Vehicle, highlight bool) render.Icon {
	label := v.Name
	if label == "" {
		label = "#" + strconv.FormatInt(int64(v.ID), 10)
	}
	icon := render.Icon{Label: label, Color: colorDefault, Highlight: highlight}
	if highlight {
		icon.Color = colorHighlight
	}
	return icon
}

func popupFor(v fleet.Vehicle, pos fleet.LatLng) string {
	status := string(v.Status)
	if status == "" {
		status = "unknown"
	}
	return fmt.Sprintf(`<div><div class="font-bold">%s</div><div>Status: %s</div><div>Lat: %s, Lng: %s</div></div>`,
		html.EscapeString(v.Name),
		html.EscapeString(status),
		strconv.FormatFloat(pos.Lat, 'f', -1, 64),
		strconv.FormatFloat(pos.Lng, 'f', -1, 64),
	)
}
