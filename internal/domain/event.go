package domain

import (
	"database/sql"
)

// Event check-in event (events table). Sections are loaded from event_sections/section_rooms.
type Event struct {
	EventID        string         `db:"event_id"`
	EventName      string         `db:"event_name"`
	WebhookURL     sql.NullString `db:"webhook_url"`
	WaiverRequired bool           `db:"waiver_required"`
	EmailSubject   sql.NullString `db:"email_subject"`
	Sections       []Section      `db:"-"`
}

// Section independent allocation pool; every checked-in team holds one room per section
type Section struct {
	SectionID   string `db:"section_id"`
	EventID     string `db:"event_id"`
	SectionName string `db:"section_name"`
	Position    int    `db:"position"`
	Rooms       []Room `db:"-"`
}

// Room capacitated destination inside a section
type Room struct {
	RoomID         string `db:"room_id"`
	SectionID      string `db:"section_id"`
	RoomName       string `db:"room_name"`
	MaxStudents    int    `db:"max_students"`
	PreferTeamSize []int  `db:"prefer_team_size"` // nil = no preference
	Priority       int    `db:"priority"`         // lower fills first
	Position       int    `db:"position"`
}

// HasPreference reports whether the room declares preferred team sizes. An empty list is no preference.
func (r Room) HasPreference() bool {
	return len(r.PreferTeamSize) > 0
}

// Prefers reports whether size is one of the preferred team sizes
func (r Room) Prefers(size int) bool {
	for _, s := range r.PreferTeamSize {
		if s == size {
			return true
		}
	}
	return false
}

// Excludes reports whether the room declares preferences that leave size out
func (r Room) Excludes(size int) bool {
	return r.HasPreference() && !r.Prefers(size)
}

// FindSection returns the section with the given id
func (e *Event) FindSection(sectionID string) (*Section, bool) {
	for i := range e.Sections {
		if e.Sections[i].SectionID == sectionID {
			return &e.Sections[i], true
		}
	}
	return nil, false
}

// FindRoom returns the room with the given id inside the section
func (s *Section) FindRoom(roomID string) (*Room, bool) {
	for i := range s.Rooms {
		if s.Rooms[i].RoomID == roomID {
			return &s.Rooms[i], true
		}
	}
	return nil, false
}
