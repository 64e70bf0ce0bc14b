package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-view/internal/fleet"
	"fleet-view/internal/link"
	"fleet-view/internal/optimizer"
	"fleet-view/internal/orders"
	"fleet-view/internal/store"
)

type fakeView struct {
	store       *store.VehicleStore
	selected    *fleet.VehicleID
	orders      []fleet.Order
	optimizeErr error
}

func (f *fakeView) Snapshot() store.Snapshot   { return f.store.Snapshot() }
func (f *fakeView) Selected() *fleet.VehicleID { return f.selected }

func (f *fakeView) Select(_ context.Context, id fleet.VehicleID) error {
	if _, ok := f.store.Get(id); !ok {
		return fleet.ErrUnknownVehicle
	}
	f.selected = &id
	return nil
}

func (f *fakeView) ClearSelection() error {
	f.selected = nil
	return nil
}

func (f *fakeView) RemoveVehicle(_ context.Context, id fleet.VehicleID) error {
	if _, ok := f.store.Remove(id); !ok {
		return fleet.ErrUnknownVehicle
	}
	if f.selected != nil && *f.selected == id {
		f.selected = nil
	}
	return nil
}

func (f *fakeView) SetOrders(o []fleet.Order) error {
	f.orders = o
	return nil
}

func (f *fakeView) Optimize(context.Context) error { return f.optimizeErr }

type fakeChannel struct{}

func (fakeChannel) Status() link.Status { return link.Status{Channel: "tcp", State: "connected"} }

type failingSource struct{}

func (failingSource) List(context.Context) ([]fleet.Order, error) { return nil, errors.New("down") }

func newTestAPI(t *testing.T) (*fakeView, http.Handler) {
	t.Helper()
	s := store.NewVehicleStore()
	lat, lng := 10.0, 20.0
	s.Replace([]fleet.Vehicle{
		{ID: 1, Name: "Van 1", Status: fleet.StatusIdle, CurrentLat: &lat, CurrentLng: &lng},
		{ID: 2, Name: "Van 2", Status: fleet.StatusCharging},
	})
	v := &fakeView{store: s}
	h := &Handler{
		View:     v,
		Orders:   orders.Static{{ID: 7}},
		Channels: []Channel{fakeChannel{}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return v, NewRouter(h)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"connected"`)
}

func TestListVehicles(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(h, http.MethodGet, "/vehicles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Vehicles []fleet.Vehicle `json:"vehicles"`
		Selected *int64          `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Vehicles, 2)
	assert.Equal(t, "Van 1", body.Vehicles[0].Name)
	assert.Nil(t, body.Vehicles[1].CurrentLat)
	assert.Nil(t, body.Selected)
}

func TestGetVehicle(t *testing.T) {
	_, h := newTestAPI(t)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/vehicles/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/vehicles/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/vehicles/x", "").Code)
}

func TestDeleteVehicle(t *testing.T) {
	v, h := newTestAPI(t)
	require.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/selection", `{"vehicle_id":1}`).Code)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/vehicles/1", "").Code)
	assert.Nil(t, v.selected)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/vehicles/1", "").Code)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/vehicles/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodDelete, "/vehicles/x", "").Code)
}

func TestSelection(t *testing.T) {
	v, h := newTestAPI(t)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/selection", `{"vehicle_id":2}`).Code)
	require.NotNil(t, v.selected)
	assert.Equal(t, fleet.VehicleID(2), *v.selected)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/selection", `{"vehicle_id":9}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/selection", `{}`).Code)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/selection", "").Code)
	assert.Nil(t, v.selected)
}

func TestReloadOrders(t *testing.T) {
	v, h := newTestAPI(t)
	rec := do(h, http.MethodPost, "/orders/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":1}`, rec.Body.String())
	assert.Len(t, v.orders, 1)

	bad := NewRouter(&Handler{View: v, Orders: failingSource{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Equal(t, http.StatusBadGateway, do(bad, http.MethodPost, "/orders/reload", "").Code)
}

func TestOptimize(t *testing.T) {
	v, h := newTestAPI(t)
	assert.Equal(t, http.StatusAccepted, do(h, http.MethodPost, "/optimize", "").Code)

	v.optimizeErr = optimizer.ErrRequestFailed
	assert.Equal(t, http.StatusBadGateway, do(h, http.MethodPost, "/optimize", "").Code)

	v.optimizeErr = optimizer.ErrNotConfigured
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/optimize", "").Code)

	v.optimizeErr = fleet.ErrClosed
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/optimize", "").Code)
}

func TestMetrics(t *testing.T) {
	_, h := newTestAPI(t)
	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
