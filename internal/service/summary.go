package service

import (
	"sort"
	"time"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
)

const (
	StatusCheckedIn    = "Checked In"
	StatusNotCheckedIn = "Not Checked In"
)

// Assignment one section -> room pair, names resolved for display
type Assignment struct {
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
}

// StudentSummary one student line of the report
type StudentSummary struct {
	StudentID   string       `json:"student_id"`
	Name        string       `json:"name"`
	Number      string       `json:"number,omitempty"`
	Waiver      bool         `json:"waiver"`
	CheckedIn   bool         `json:"checked_in"`
	Status      string       `json:"status"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// TeamSummary one team block of the report
type TeamSummary struct {
	TeamID      string           `json:"team_id"`
	TeamName    string           `json:"team_name"`
	Number      string           `json:"number,omitempty"`
	CheckedIn   bool             `json:"checked_in"`
	Status      string           `json:"status"`
	Assignments []Assignment     `json:"assignments,omitempty"`
	Students    []StudentSummary `json:"students"`
}

// Summary check-in status report of one organization
type Summary struct {
	EventID          string        `json:"event_id"`
	EventName        string        `json:"event_name"`
	OrgID            string        `json:"org_id"`
	OrgName          string        `json:"org_name"`
	SectionIDs       []string      `json:"section_ids"`
	SectionNames     []string      `json:"section_names"`
	Teams            []TeamSummary `json:"teams"`
	CheckedInNumbers []string      `json:"checked_in_numbers"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// BuildSummary renders the organization's current teams/students. Teams are listed with
// numbered ones first (by number), then the rest by name.
func BuildSummary(ev *domain.Event, org *domain.Organization, docs []*checkin.TeamDoc, now time.Time) *Summary {
	s := &Summary{
		EventID:          ev.EventID,
		EventName:        ev.EventName,
		OrgID:            org.OrgID,
		OrgName:          org.OrgName,
		SectionIDs:       make([]string, 0, len(ev.Sections)),
		SectionNames:     make([]string, 0, len(ev.Sections)),
		Teams:            make([]TeamSummary, 0, len(docs)),
		CheckedInNumbers: []string{},
		GeneratedAt:      now.UTC(),
	}
	for _, sec := range ev.Sections {
		s.SectionIDs = append(s.SectionIDs, sec.SectionID)
		s.SectionNames = append(s.SectionNames, sectionLabel(sec))
	}

	for _, doc := range docs {
		t := doc.Team
		ts := TeamSummary{
			TeamID:    t.TeamID,
			TeamName:  t.TeamName,
			Number:    t.Number.String,
			CheckedIn: t.IsCheckedIn,
			Status:    status(t.IsCheckedIn),
			Students:  make([]StudentSummary, 0, len(doc.Students)),
		}
		if t.IsCheckedIn {
			ts.Assignments = resolveAssignments(ev, t.RoomAssignments)
			if ts.Number != "" {
				s.CheckedInNumbers = append(s.CheckedInNumbers, ts.Number)
			}
		}
		for _, st := range doc.Students {
			ss := StudentSummary{
				StudentID: st.StudentID,
				Name:      st.FullName(),
				Number:    st.Number.String,
				Waiver:    st.HasWaiver(),
				CheckedIn: st.IsCheckedIn,
				Status:    status(st.IsCheckedIn),
			}
			if st.IsCheckedIn {
				ss.Assignments = resolveAssignments(ev, st.RoomAssignments)
			}
			ts.Students = append(ts.Students, ss)
		}
		sort.SliceStable(ts.Students, func(i, j int) bool {
			return lessNumber(ts.Students[i].Number, ts.Students[j].Number)
		})
		s.Teams = append(s.Teams, ts)
	}

	sort.SliceStable(s.Teams, func(i, j int) bool {
		return lessNumber(s.Teams[i].Number, s.Teams[j].Number)
	})
	sort.Strings(s.CheckedInNumbers)
	return s
}

// CheckedInCount number of checked-in teams
func (s *Summary) CheckedInCount() int {
	n := 0
	for _, t := range s.Teams {
		if t.CheckedIn {
			n++
		}
	}
	return n
}

func status(checkedIn bool) string {
	if checkedIn {
		return StatusCheckedIn
	}
	return StatusNotCheckedIn
}

// lessNumber orders numbered entries first; unnumbered keep their relative order
func lessNumber(a, b string) bool {
	switch {
	case a == "":
		return false
	case b == "":
		return true
	}
	return a < b
}

func sectionLabel(sec domain.Section) string {
	if sec.SectionName != "" {
		return sec.SectionName
	}
	return sec.SectionID
}

func resolveAssignments(ev *domain.Event, ra domain.RoomAssignments) []Assignment {
	if len(ra) == 0 {
		return nil
	}
	out := make([]Assignment, 0, len(ra))
	for _, sec := range ev.Sections {
		roomID, ok := ra[sec.SectionID]
		if !ok {
			continue
		}
		a := Assignment{SectionID: sec.SectionID, SectionName: sectionLabel(sec), RoomID: roomID, RoomName: roomID}
		if room, ok := sec.FindRoom(roomID); ok && room.RoomName != "" {
			a.RoomName = room.RoomName
		}
		out = append(out, a)
	}
	return out
}

// RoomFor display name of the room assigned in section, "" when none
func RoomFor(assignments []Assignment, sectionID string) string {
	for _, a := range assignments {
		if a.SectionID == sectionID {
			return a.RoomName
		}
	}
	return ""
}
