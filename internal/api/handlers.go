package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"fleet-view/internal/fleet"
	"fleet-view/internal/link"
	"fleet-view/internal/optimizer"
)

type vehiclesResponse struct {
	Vehicles []fleet.Vehicle  `json:"vehicles"`
	Selected *fleet.VehicleID `json:"selected"`
}

type selectionRequest struct {
	VehicleID *fleet.VehicleID `json:"vehicle_id"`
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// viewError traduce los errores del map view a códigos HTTP.
func viewError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, fleet.ErrUnknownVehicle):
		return errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, fleet.ErrClosed), errors.Is(err, optimizer.ErrNotConfigured):
		return errorJSON(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, optimizer.ErrRequestFailed):
		return errorJSON(c, http.StatusBadGateway, err.Error())
	}
	return errorJSON(c, http.StatusInternalServerError, err.Error())
}

func (h *Handler) health(c echo.Context) error {
	statuses := make([]link.Status, 0, len(h.Channels))
	for _, ch := range h.Channels {
		statuses = append(statuses, ch.Status())
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "channels": statuses})
}

func (h *Handler) listVehicles(c echo.Context) error {
	return c.JSON(http.StatusOK, vehiclesResponse{
		Vehicles: h.View.Snapshot().Vehicles(),
		Selected: h.View.Selected(),
	})
}

func vehicleID(c echo.Context) (fleet.VehicleID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return fleet.VehicleID(id), err == nil
}

func (h *Handler) getVehicle(c echo.Context) error {
	id, ok := vehicleID(c)
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid vehicle id")
	}
	v, ok := h.View.Snapshot().Get(id)
	if !ok {
		return errorJSON(c, http.StatusNotFound, fleet.ErrUnknownVehicle.Error())
	}
	return c.JSON(http.StatusOK, v)
}

// deleteVehicle quita el vehículo del mapa: marcador, selección y encuadre.
func (h *Handler) deleteVehicle(c echo.Context) error {
	id, ok := vehicleID(c)
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid vehicle id")
	}
	if err := h.View.RemoveVehicle(c.Request().Context(), id); err != nil {
		return viewError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// postSelection handles both row clicks and marker clicks.
func (h *Handler) postSelection(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil || req.VehicleID == nil {
		return errorJSON(c, http.StatusBadRequest, "vehicle_id required")
	}
	if err := h.View.Select(c.Request().Context(), *req.VehicleID); err != nil {
		return viewError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) deleteSelection(c echo.Context) error {
	if err := h.View.ClearSelection(); err != nil {
		return viewError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) reloadOrders(c echo.Context) error {
	list, err := h.Orders.List(c.Request().Context())
	if err != nil {
		h.Logger.Error("orders reload failed", "err", err)
		return errorJSON(c, http.StatusBadGateway, "order source unavailable")
	}
	if err := h.View.SetOrders(list); err != nil {
		return viewError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"orders": len(list)})
}

// optimize espera la respuesta del optimizador; el resultado se aplica al
// mapa en la siguiente pasada.
func (h *Handler) optimize(c echo.Context) error {
	if err := h.View.Optimize(c.Request().Context()); err != nil {
		h.Logger.Warn("optimize failed", "err", err)
		return viewError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
