// Package api is the control surface of a running map view.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-view/internal/fleet"
	"fleet-view/internal/link"
	"fleet-view/internal/orders"
	"fleet-view/internal/store"
)

// MapView is what the handlers need from the live view.
type MapView interface {
	Snapshot() store.Snapshot
	Selected() *fleet.VehicleID
	Select(ctx context.Context, id fleet.VehicleID) error
	ClearSelection() error
	RemoveVehicle(ctx context.Context, id fleet.VehicleID) error
	SetOrders(orders []fleet.Order) error
	Optimize(ctx context.Context) error
}

// Channel reports the state of a telemetry channel.
type Channel interface {
	Status() link.Status
}

type Handler struct {
	View     MapView
	Orders   orders.Source
	Channels []Channel
	Logger   *slog.Logger
}

func NewRouter(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(h.Logger))

	e.GET("/healthz", h.health)
	e.GET("/vehicles", h.listVehicles)
	e.GET("/vehicles/:id", h.getVehicle)
	e.DELETE("/vehicles/:id", h.deleteVehicle)
	e.POST("/selection", h.postSelection)
	e.DELETE("/selection", h.deleteSelection)
	e.POST("/orders/reload", h.reloadOrders)
	e.POST("/optimize", h.optimize)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// requestLogger registra método, ruta, status y duración de cada request.
func requestLogger(lg *slog.Logger) echo.MiddlewareFunc {
	lg = lg.With("component", "api")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			lg.Info("request",
				"method", c.Request().Method,
				"path", c.Request().URL.RequestURI(),
				"status", c.Response().Status,
				"bytes", c.Response().Size,
				"dur_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}
