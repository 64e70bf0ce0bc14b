package store

import (
	"slices"
	"sync"

	"fleet-view/internal/fleet"
)

// Change describes what a single write did to one vehicle.
type Change struct {
	ID          fleet.VehicleID
	Created     bool
	Removed     bool
	HadPosition bool
	HasPosition bool
	Moved       bool
}

// Structural reports whether the set of positioned vehicles changed.
func (c Change) Structural() bool { return c.HadPosition != c.HasPosition }

// VehicleStore es el registro autoritativo de vehículos en memoria.
// Las escrituras y los snapshots se serializan con el mismo lock, así que
// un lector nunca ve un registro a medio actualizar.
type VehicleStore struct {
	mu       sync.RWMutex
	vehicles map[fleet.VehicleID]fleet.Vehicle
	version  uint64
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{vehicles: make(map[fleet.VehicleID]fleet.Vehicle)}
}

// Upsert merges only the fields present in the patch.
func (s *VehicleStore) Upsert(p fleet.VehiclePatch) Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.vehicles[p.ID]
	next := p.Apply(prev)
	s.vehicles[p.ID] = next
	s.version++

	return diff(p.ID, prev, existed, next, true)
}

func (s *VehicleStore) Remove(id fleet.VehicleID) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.vehicles[id]
	if !ok {
		return Change{}, false
	}
	delete(s.vehicles, id)
	s.version++

	return diff(id, prev, true, fleet.Vehicle{}, false), true
}

// Replace swaps the whole registry for a resync snapshot. Vehicles missing
// from the snapshot are removed; stale partial state is not merged.
func (s *VehicleStore) Replace(vehicles []fleet.Vehicle) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[fleet.VehicleID]fleet.Vehicle, len(vehicles))
	for _, v := range vehicles {
		next[v.ID] = v.Clone()
	}

	changes := make([]Change, 0, len(next)+len(s.vehicles))
	for id, prev := range s.vehicles {
		nv, ok := next[id]
		changes = append(changes, diff(id, prev, true, nv, ok))
	}
	for id, nv := range next {
		if _, ok := s.vehicles[id]; !ok {
			changes = append(changes, diff(id, fleet.Vehicle{}, false, nv, true))
		}
	}
	slices.SortFunc(changes, func(a, b Change) int { return cmpID(a.ID, b.ID) })

	s.vehicles = next
	s.version++
	return changes
}

func (s *VehicleStore) Get(id fleet.VehicleID) (fleet.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	return v.Clone(), ok
}

func (s *VehicleStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		version:  s.version,
		vehicles: make(map[fleet.VehicleID]fleet.Vehicle, len(s.vehicles)),
		ids:      make([]fleet.VehicleID, 0, len(s.vehicles)),
	}
	for id, v := range s.vehicles {
		snap.vehicles[id] = v.Clone()
		snap.ids = append(snap.ids, id)
	}
	slices.SortFunc(snap.ids, cmpID)
	return snap
}

// Snapshot is an immutable copy of the registry ordered by id.
type Snapshot struct {
	version  uint64
	vehicles map[fleet.VehicleID]fleet.Vehicle
	ids      []fleet.VehicleID
}

func (s Snapshot) Version() uint64 { return s.version }

func (s Snapshot) Len() int { return len(s.ids) }

func (s Snapshot) Get(id fleet.VehicleID) (fleet.Vehicle, bool) {
	v, ok := s.vehicles[id]
	return v.Clone(), ok
}

func (s Snapshot) Vehicles() []fleet.Vehicle {
	out := make([]fleet.Vehicle, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.vehicles[id].Clone())
	}
	return out
}

// Positions returns the position of every positioned vehicle in id order.
func (s Snapshot) Positions() []fleet.LatLng {
	out := make([]fleet.LatLng, 0, len(s.ids))
	for _, id := range s.ids {
		if p, ok := s.vehicles[id].Position(); ok {
			out = append(out, p)
		}
	}
	return out
}

func diff(id fleet.VehicleID, prev fleet.Vehicle, existed bool, next fleet.Vehicle, exists bool) Change {
	c := Change{ID: id, Created: !existed && exists, Removed: existed && !exists}
	var pp, np fleet.LatLng
	if existed {
		pp, c.HadPosition = prev.Position()
	}
	if exists {
		np, c.HasPosition = next.Position()
	}
	c.Moved = c.HadPosition && c.HasPosition && pp != np
	return c
}

func cmpID(a, b fleet.VehicleID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
