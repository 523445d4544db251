package checkin

import (
	"checkin-desk/internal/domain"
)

// candidate a room with enough remaining seats for the team being placed
type candidate struct {
	room  *domain.Room
	used  int
	index int // position in the section's configured order
}

func (c candidate) remaining() int { return c.room.MaxStudents - c.used }

// roomRule compares two candidates for a team of size n.
// Negative: a wins. Positive: b wins. Zero: undecided.
type roomRule struct {
	name    string
	compare func(a, b candidate, n int) int
}

// roomRules is evaluated left to right; the first non-zero rule decides.
var roomRules = []roomRule{
	{"priority", func(a, b candidate, _ int) int {
		return a.room.Priority - b.room.Priority
	}},
	{"preferred-size", func(a, b candidate, n int) int {
		return boolRank(a.room.Prefers(n), b.room.Prefers(n))
	}},
	{"not-excluded", func(a, b candidate, n int) int {
		return boolRank(!a.room.Excludes(n), !b.room.Excludes(n))
	}},
	{"exact-fit", func(a, b candidate, n int) int {
		return boolRank(a.remaining() == n, b.remaining() == n)
	}},
	{"fill-ratio", func(a, b candidate, _ int) int {
		// a.used/a.max vs b.used/b.max without floats
		return a.used*b.room.MaxStudents - b.used*a.room.MaxStudents
	}},
	{"remaining", func(a, b candidate, _ int) int {
		return b.remaining() - a.remaining()
	}},
	{"config-order", func(a, b candidate, _ int) int {
		return a.index - b.index
	}},
}

// boolRank: the side holding true wins
func boolRank(a, b bool) int {
	switch {
	case a && !b:
		return -1
	case !a && b:
		return 1
	}
	return 0
}

func compareCandidates(a, b candidate, n int) int {
	for _, r := range roomRules {
		if c := r.compare(a, b, n); c != 0 {
			return c
		}
	}
	return 0
}

// SelectRoom picks the room in section for a team of size n. Rooms are read-only here;
// the caller records the placement in occ.
func SelectRoom(section *domain.Section, occ Occupancy, n int) (*domain.Room, error) {
	var best *candidate
	for i := range section.Rooms {
		c := candidate{
			room:  &section.Rooms[i],
			used:  occ.Get(section.SectionID, section.Rooms[i].RoomID),
			index: i,
		}
		if c.remaining() < n {
			continue
		}
		if best == nil || compareCandidates(c, *best, n) < 0 {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return nil, ErrNoSpace
	}
	return best.room, nil
}
