package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"fleet-view/internal/fleet"
)

// Update is one decoded vehicle_update. Ignored lists fields that were
// present but could not be normalized and were left out of the patch.
type Update struct {
	Patch   fleet.VehiclePatch
	Ignored []string
}

var null = []byte("null")

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), null)
}

func latValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -90 && v <= 90
}

func lngValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -180 && v <= 180
}

// DecodeUpdate parses a full or partial vehicle record, keeping absent and
// null apart. A missing or non-integer id or a bad coordinate rejects the
// whole record.
func DecodeUpdate(data []byte) (Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Update{}, fmt.Errorf("decode vehicle_update: not an object: %w", fleet.ErrMalformedTelemetry)
	}

	var u Update
	raw, ok := fields["id"]
	if !ok || isNull(raw) {
		return Update{}, fmt.Errorf("decode vehicle_update: missing id: %w", fleet.ErrMalformedTelemetry)
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return Update{}, fmt.Errorf("decode vehicle_update: id %s: %w", raw, fleet.ErrMalformedTelemetry)
	}
	u.Patch.ID = fleet.VehicleID(id)

	if raw, ok := fields["name"]; ok {
		var name string
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &name); err != nil {
				u.Ignored = append(u.Ignored, "name")
			} else {
				u.Patch.Name = &name
			}
		} else {
			u.Patch.Name = &name
		}
	}

	if raw, ok := fields["status"]; ok && !isNull(raw) {
		if st, err := parseStatus(raw); err != nil {
			u.Ignored = append(u.Ignored, "status")
		} else {
			u.Patch.Status = &st
		}
	}

	var err error
	if u.Patch.CurrentLat, err = coordinate(fields, "current_lat", latValid); err != nil {
		return Update{}, err
	}
	if u.Patch.CurrentLng, err = coordinate(fields, "current_lng", lngValid); err != nil {
		return Update{}, err
	}
	return u, nil
}

func coordinate(fields map[string]json.RawMessage, key string, valid func(float64) bool) (fleet.Coordinate, error) {
	raw, ok := fields[key]
	if !ok {
		return fleet.Coordinate{}, nil
	}
	if isNull(raw) {
		return fleet.NullCoord(), nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || !valid(v) {
		return fleet.Coordinate{}, fmt.Errorf("decode vehicle_update: %s %s: %w", key, raw, fleet.ErrMalformedTelemetry)
	}
	return fleet.CoordOf(v), nil
}

// DecodeSnapshot parses a vehicle_resync payload. Malformed records are
// skipped and counted in the second return value; a payload that is not an
// array fails as a whole.
func DecodeSnapshot(data []byte) ([]fleet.Vehicle, int, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decode vehicle_resync: not an array: %w", fleet.ErrMalformedTelemetry)
	}
	return DecodeRecords(records)
}

// DecodeRecords turns full records into vehicles. Absent fields are null.
func DecodeRecords(records []json.RawMessage) ([]fleet.Vehicle, int, error) {
	out := make([]fleet.Vehicle, 0, len(records))
	seen := make(map[fleet.VehicleID]int, len(records))
	skipped := 0
	for _, rec := range records {
		u, err := DecodeUpdate(rec)
		if err != nil {
			skipped++
			continue
		}
		v := u.Patch.Apply(fleet.Vehicle{})
		// último valor gana si el snapshot repite un id
		if i, dup := seen[v.ID]; dup {
			out[i] = v
			continue
		}
		seen[v.ID] = len(out)
		out = append(out, v)
	}
	return out, skipped, nil
}

func parseStatus(raw json.RawMessage) (fleet.Status, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return fleet.ParseStatus(s)
}
