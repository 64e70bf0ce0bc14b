// Package selection tracks the single focused vehicle and keeps the camera
// on it while it moves.
package selection

import (
	"fmt"
	"log/slog"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
	"fleet-view/internal/render"
	"fleet-view/internal/store"
)

// PopupOpener abre el popup de un vehículo sin exponer su handle.
type PopupOpener interface {
	OpenPopup(id fleet.VehicleID) bool
}

type Controller struct {
	r      render.Renderer
	logger *slog.Logger

	selected *fleet.VehicleID
	changed  bool
	followed *fleet.LatLng
}

func New(r render.Renderer, lg *slog.Logger) *Controller {
	return &Controller{r: r, logger: lg.With("component", "selection")}
}

// Select overwrites the current selection. The id must exist in snap.
func (c *Controller) Select(snap store.Snapshot, id fleet.VehicleID) error {
	if _, ok := snap.Get(id); !ok {
		return fmt.Errorf("select %d: %w", id, fleet.ErrUnknownVehicle)
	}
	if c.selected != nil && *c.selected == id {
		return nil
	}
	c.selected = &id
	c.changed = true
	c.followed = nil
	c.logger.Debug("vehicle selected", "id", id)
	return nil
}

func (c *Controller) Clear() {
	if c.selected != nil {
		c.logger.Debug("selection cleared", "id", *c.selected)
	}
	c.selected = nil
	c.changed = false
	c.followed = nil
}

// Selected returns a copy of the selected id, or nil.
func (c *Controller) Selected() *fleet.VehicleID {
	if c.selected == nil {
		return nil
	}
	id := *c.selected
	return &id
}

// Prune drops the selection when its vehicle is no longer in snap.
func (c *Controller) Prune(snap store.Snapshot) bool {
	if c.selected == nil {
		return false
	}
	if _, ok := snap.Get(*c.selected); ok {
		return false
	}
	c.Clear()
	return true
}

// Follow recenters on the selected vehicle when the selection changed or
// the vehicle moved since the last follow, then opens its popup. It must
// run after markers are reconciled. Reports whether the camera moved.
func (c *Controller) Follow(snap store.Snapshot, popups PopupOpener) bool {
	if c.selected == nil {
		return false
	}
	v, ok := snap.Get(*c.selected)
	if !ok {
		return false
	}
	pos, ok := v.Position()
	if !ok {
		// sin posición: se vuelve a centrar cuando reaparezca
		c.followed = nil
		return false
	}
	if !c.changed && c.followed != nil && *c.followed == pos {
		return false
	}

	c.r.SetView(pos, render.KeepZoom, true)
	popups.OpenPopup(v.ID)
	observability.ViewportCommands.WithLabelValues("follow").Inc()

	c.changed = false
	c.followed = &pos
	return true
}
