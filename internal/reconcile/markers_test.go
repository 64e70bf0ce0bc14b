package reconcile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-view/internal/fleet"
	"fleet-view/internal/render/rendertest"
	"fleet-view/internal/store"
)

func newTestReconciler() (*Reconciler, *rendertest.Recorder, *store.VehicleStore) {
	rec := rendertest.New()
	return New(rec, slog.New(slog.NewTextHandler(io.Discard, nil))), rec, store.NewVehicleStore()
}

func at(id fleet.VehicleID, lat, lng float64) fleet.VehiclePatch {
	return fleet.VehiclePatch{ID: id, CurrentLat: fleet.CoordOf(lat), CurrentLng: fleet.CoordOf(lng)}
}

func TestNewVehicleCreatesMarkerWithPopup(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))

	res := rc.Reconcile(s.Snapshot(), nil)
	assert.Equal(t, []fleet.VehicleID{1}, res.Created)

	creates := rec.Calls("CreateMarker")
	require.Len(t, creates, 1)
	assert.Equal(t, fleet.LatLng{Lat: 10, Lng: 20}, creates[0].Position)
	assert.Equal(t, 1, rec.Count("SetPopupContent"))
	assert.Zero(t, rec.Count("OpenPopup"))
}

func TestUnpositionedVehicleHasNoMarker(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(fleet.VehiclePatch{ID: 1, CurrentLat: fleet.CoordOf(10)})

	rc.Reconcile(s.Snapshot(), nil)
	assert.Zero(t, rec.Count("CreateMarker"))
	assert.Zero(t, rc.Len())
}

func TestPositionChangeMovesInPlace(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	rc.Reconcile(s.Snapshot(), nil)
	rec.Reset()

	s.Upsert(at(1, 11, 21))
	res := rc.Reconcile(s.Snapshot(), nil)

	assert.Equal(t, []fleet.VehicleID{1}, res.Moved)
	assert.Zero(t, rec.Count("CreateMarker"))
	assert.Zero(t, rec.Count("DestroyMarker"))
	moves := rec.Calls("SetPosition")
	require.Len(t, moves, 1)
	assert.Equal(t, fleet.LatLng{Lat: 11, Lng: 21}, moves[0].Position)
}

func TestSamePositionByValueIsNotAMove(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	rc.Reconcile(s.Snapshot(), nil)
	rec.Reset()

	s.Upsert(at(1, 10, 20))
	rc.Reconcile(s.Snapshot(), nil)
	assert.Empty(t, rec.Calls())
}

func TestLosingPositionDestroysOnceAndReappearCreatesOnce(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	rc.Reconcile(s.Snapshot(), nil)

	s.Upsert(fleet.VehiclePatch{ID: 1, CurrentLat: fleet.NullCoord()})
	rc.Reconcile(s.Snapshot(), nil)
	rc.Reconcile(s.Snapshot(), nil)
	assert.Equal(t, 1, rec.Count("DestroyMarker"))

	s.Upsert(at(1, 12, 22))
	rc.Reconcile(s.Snapshot(), nil)
	rc.Reconcile(s.Snapshot(), nil)
	assert.Equal(t, 2, rec.Count("CreateMarker"))
	assert.Len(t, rec.Markers(), 1)
}

func TestHighlightFollowsSelection(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	s.Upsert(at(2, 30, 40))

	a, b := fleet.VehicleID(1), fleet.VehicleID(2)
	rc.Reconcile(s.Snapshot(), &a)
	rc.Reconcile(s.Snapshot(), &b)

	highlighted := 0
	for _, m := range rec.Markers() {
		if m.Icon.Highlight {
			highlighted++
			assert.Equal(t, colorHighlight, m.Icon.Color)
		}
	}
	assert.Equal(t, 1, highlighted)

	pos, ok := rc.Position(2)
	require.True(t, ok)
	assert.Equal(t, fleet.LatLng{Lat: 30, Lng: 40}, pos)
}

func TestOpenPopupIsRefreshedInPlace(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	rc.Reconcile(s.Snapshot(), nil)
	require.True(t, rc.OpenPopup(1))
	rec.Reset()

	st := fleet.StatusCharging
	s.Upsert(fleet.VehiclePatch{ID: 1, Status: &st})
	rc.Reconcile(s.Snapshot(), nil)

	assert.Equal(t, 1, rec.Count("SetPopupContent"))
	assert.Zero(t, rec.Count("OpenPopup"))
	for _, m := range rec.Markers() {
		assert.True(t, m.PopupOpen)
		assert.Contains(t, m.Popup, "Status: charging")
	}
}

func TestPopupEscapesName(t *testing.T) {
	name := "<b>x</b>"
	v := fleet.Vehicle{ID: 1, Name: name}
	assert.NotContains(t, popupFor(v, fleet.LatLng{}), name)
}

func TestOpenPopupWithoutMarker(t *testing.T) {
	rc, _, _ := newTestReconciler()
	assert.False(t, rc.OpenPopup(9))
}

func TestCloseDestroysEveryHandle(t *testing.T) {
	rc, rec, s := newTestReconciler()
	s.Upsert(at(1, 10, 20))
	s.Upsert(at(2, 11, 21))
	rc.Reconcile(s.Snapshot(), nil)

	rc.Close()
	assert.Equal(t, 2, rec.Count("DestroyMarker"))
	assert.Empty(t, rec.Markers())
	assert.Zero(t, rc.Len())
}
