package viewport

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-view/internal/fleet"
	"fleet-view/internal/render"
	"fleet-view/internal/render/rendertest"
)

func newTestController(p Policy) (*Controller, *rendertest.Recorder) {
	rec := rendertest.New()
	return New(rec, p, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), rec
}

func TestNoPointsNoCommand(t *testing.T) {
	c, rec := newTestController(PolicyStructural)
	c.Bump()
	assert.Equal(t, ActionNone, c.Update(nil, false, false))
	assert.Empty(t, rec.Calls())
}

func TestSinglePointCentersAtCurrentZoom(t *testing.T) {
	c, rec := newTestController(PolicyStructural)
	c.Bump()
	assert.Equal(t, ActionCenter, c.Update([]fleet.LatLng{{Lat: 10, Lng: 20}}, false, false))

	views := rec.Calls("SetView")
	require.Len(t, views, 1)
	assert.Equal(t, fleet.LatLng{Lat: 10, Lng: 20}, views[0].Position)
	assert.Equal(t, render.KeepZoom, views[0].Zoom)
	assert.True(t, views[0].Animate)
	assert.Zero(t, rec.Count("FitBounds"))
}

func TestManyPointsFitExactBounds(t *testing.T) {
	c, rec := newTestController(PolicyStructural)
	c.Bump()
	pts := []fleet.LatLng{{Lat: 10, Lng: 20}, {Lat: -5, Lng: 30}, {Lat: 3, Lng: -7}}
	assert.Equal(t, ActionFit, c.Update(pts, false, false))

	fits := rec.Calls("FitBounds")
	require.Len(t, fits, 1)
	assert.Equal(t, render.Bounds{South: -5, West: -7, North: 10, East: 30}, fits[0].Bounds)
	assert.Equal(t, DefaultPadding, fits[0].Padding)
	assert.Zero(t, rec.Count("SetView"))
}

func TestRecomputesOnlyWhenVersionChanges(t *testing.T) {
	c, rec := newTestController(PolicyStructural)
	pts := []fleet.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}

	assert.Equal(t, ActionNone, c.Update(pts, true, false), "no structural change yet")
	c.Bump()
	assert.Equal(t, ActionFit, c.Update(pts, false, false))
	assert.Equal(t, ActionNone, c.Update(pts, true, false), "movement alone does not refit")
	assert.Equal(t, 1, rec.Count("FitBounds"))
}

func TestTickPolicyRefitsOnMovement(t *testing.T) {
	c, rec := newTestController(PolicyTick)
	pts := []fleet.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}

	c.Update(pts, true, false)
	c.Update(pts, true, false)
	c.Update(pts, false, false)
	assert.Equal(t, 2, rec.Count("FitBounds"))
}

func TestFollowOverridesFit(t *testing.T) {
	c, rec := newTestController(PolicyStructural)
	c.Bump()
	assert.Equal(t, ActionNone, c.Update([]fleet.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, false, true))
	assert.Empty(t, rec.Calls())
	// The overridden change is consumed, not replayed on the next pass.
	assert.Equal(t, ActionNone, c.Update([]fleet.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, false, false))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStructural, p)

	p, err = ParsePolicy("tick")
	require.NoError(t, err)
	assert.Equal(t, PolicyTick, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
