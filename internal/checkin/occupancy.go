package checkin

import (
	"checkin-desk/internal/domain"
)

// RoomCount number of checked-in students mapped to a room in a section
type RoomCount struct {
	SectionID string
	RoomID    string
	Students  int
}

// Occupancy section_id -> room_id -> students. Derived per transaction attempt, never persisted.
type Occupancy map[string]map[string]int

// ComputeOccupancy seeds every configured room with zero and adds the counted students.
// Counts for rooms no longer configured are dropped.
func ComputeOccupancy(sections []domain.Section, counts []RoomCount) Occupancy {
	occ := make(Occupancy, len(sections))
	for _, sec := range sections {
		rooms := make(map[string]int, len(sec.Rooms))
		for _, r := range sec.Rooms {
			rooms[r.RoomID] = 0
		}
		occ[sec.SectionID] = rooms
	}
	for _, c := range counts {
		rooms, ok := occ[c.SectionID]
		if !ok {
			continue
		}
		if _, ok := rooms[c.RoomID]; !ok {
			continue
		}
		rooms[c.RoomID] += c.Students
	}
	return occ
}

// Get current students in room
func (o Occupancy) Get(sectionID, roomID string) int {
	return o[sectionID][roomID]
}

// Add adjusts a room by delta, flooring at zero
func (o Occupancy) Add(sectionID, roomID string, delta int) {
	rooms, ok := o[sectionID]
	if !ok {
		rooms = map[string]int{}
		o[sectionID] = rooms
	}
	v := rooms[roomID] + delta
	if v < 0 {
		v = 0
	}
	rooms[roomID] = v
}

// Clone deep copy, so a plan never mutates the snapshot it was built from
func (o Occupancy) Clone() Occupancy {
	out := make(Occupancy, len(o))
	for sec, rooms := range o {
		cp := make(map[string]int, len(rooms))
		for id, n := range rooms {
			cp[id] = n
		}
		out[sec] = cp
	}
	return out
}
