package domain

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Action per-team check-in action submitted by the desk operator
type Action string

const (
	ActionSkip     Action = "__skip__"
	ActionAuto     Action = "__auto__"
	ActionExisting Action = "__existing__"
	ActionClear    Action = "__clear__"
	ActionUndo     Action = "__undo__"
)

// Valid reports whether a is one of the recognized actions
func (a Action) Valid() bool {
	switch a {
	case ActionSkip, ActionAuto, ActionExisting, ActionClear, ActionUndo:
		return true
	}
	return false
}

// RoomAssignments section_id -> room_id, stored as JSONB
type RoomAssignments map[string]string

// Value implements driver.Valuer; an empty map is stored as NULL
func (ra RoomAssignments) Value() (driver.Value, error) {
	if len(ra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]string(ra))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (ra *RoomAssignments) Scan(src any) error {
	if src == nil {
		*ra = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("room_assignments: unsupported type %T", src)
	}
	if len(b) == 0 {
		*ra = nil
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("room_assignments: %w", err)
	}
	*ra = m
	return nil
}

// Clone returns an independent copy
func (ra RoomAssignments) Clone() RoomAssignments {
	if ra == nil {
		return nil
	}
	out := make(RoomAssignments, len(ra))
	for k, v := range ra {
		out[k] = v
	}
	return out
}

// SectionIDs returns the keys in sorted order
func (ra RoomAssignments) SectionIDs() []string {
	ids := make([]string, 0, len(ra))
	for k := range ra {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}

// Team competing team (teams table)
type Team struct {
	TeamID          string          `db:"team_id"`
	OrgID           string          `db:"org_id"`
	EventID         string          `db:"event_id"`
	TeamName        string          `db:"team_name"`
	Number          sql.NullString  `db:"number"` // 3-digit, immutable once set
	RoomAssignments RoomAssignments `db:"room_assignments"`
	IsCheckedIn     bool            `db:"is_checked_in"`
}

// Student team member (students table)
type Student struct {
	StudentID       string          `db:"student_id"`
	TeamID          string          `db:"team_id"`
	FirstName       string          `db:"fname"`
	LastName        string          `db:"lname"`
	Waiver          sql.NullString  `db:"waiver"`
	Number          sql.NullString  `db:"number"` // team number + one letter
	RoomAssignments RoomAssignments `db:"room_assignments"`
	IsCheckedIn     bool            `db:"is_checked_in"`
}

// HasWaiver reports whether a signed waiver reference is on file
func (s Student) HasWaiver() bool {
	return s.Waiver.Valid && s.Waiver.String != ""
}

// FullName "First Last"
func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
