package fleet

import (
	"fmt"
	"strings"
)

type VehicleID int64

// Status es el estado operativo reportado por el vehículo.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusEnroute     Status = "enroute"
	StatusCharging    Status = "charging"
	StatusMaintenance Status = "maintenance"
)

// ParseStatus normaliza el texto recibido por telemetría.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusIdle, StatusEnroute, StatusCharging, StatusMaintenance:
		return st, nil
	}
	return "", fmt.Errorf("parse status %q: unknown value", s)
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vehicle keeps both coordinates separately because telemetry may null
// either one; the vehicle only has a position when both are set.
type Vehicle struct {
	ID         VehicleID `json:"id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	CurrentLat *float64  `json:"current_lat"`
	CurrentLng *float64  `json:"current_lng"`
}

func (v Vehicle) Position() (LatLng, bool) {
	if v.CurrentLat == nil || v.CurrentLng == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *v.CurrentLat, Lng: *v.CurrentLng}, true
}

// Clone copies the coordinate pointers so callers never alias store state.
func (v Vehicle) Clone() Vehicle {
	out := v
	out.CurrentLat = copyFloat(v.CurrentLat)
	out.CurrentLng = copyFloat(v.CurrentLng)
	return out
}

// Coordinate is a tri-state field: absent, null or value.
type Coordinate struct {
	Set   bool
	Value *float64
}

func CoordOf(f float64) Coordinate { return Coordinate{Set: true, Value: &f} }

func NullCoord() Coordinate { return Coordinate{Set: true} }

// VehiclePatch is a partial telemetry record. Nil Name/Status and unset
// coordinates leave the stored value untouched.
type VehiclePatch struct {
	ID         VehicleID
	Name       *string
	Status     *Status
	CurrentLat Coordinate
	CurrentLng Coordinate
}

// Apply merges the patch onto v and returns the result.
func (p VehiclePatch) Apply(v Vehicle) Vehicle {
	out := v.Clone()
	out.ID = p.ID
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CurrentLat.Set {
		out.CurrentLat = copyFloat(p.CurrentLat.Value)
	}
	if p.CurrentLng.Set {
		out.CurrentLng = copyFloat(p.CurrentLng.Value)
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
