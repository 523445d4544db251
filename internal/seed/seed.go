// Package seed reads check-in fixtures (events, rooms, organizations, teams) from YAML.
package seed

import (
	"database/sql"
	"fmt"
	"os"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
	"checkin-desk/internal/repository"

	"gopkg.in/yaml.v3"
)

type File struct {
	Events        []Event        `yaml:"events"`
	Organizations []Organization `yaml:"organizations"`
}

type Event struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	WebhookURL     string    `yaml:"webhook_url"`
	WaiverRequired bool      `yaml:"waiver_required"`
	EmailSubject   string    `yaml:"email_subject"`
	Sections       []Section `yaml:"sections"`
}

type Section struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Rooms []Room `yaml:"rooms"`
}

type Room struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	MaxStudents    int    `yaml:"max_students"`
	PreferTeamSize []int  `yaml:"prefer_team_size"`
	Priority       int    `yaml:"priority"`
}

type Organization struct {
	ID           string `yaml:"id"`
	Event        string `yaml:"event"` // may be omitted when the file has one event
	Name         string `yaml:"name"`
	ContactEmail string `yaml:"contact_email"`
	Teams        []Team `yaml:"teams"`
}

type Team struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Students []Student `yaml:"students"`
}

type Student struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Waiver    string `yaml:"waiver"`
}

// LoadFile reads and converts a fixture file
func LoadFile(path string) (*repository.Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(b)
}

// Parse converts YAML into a normalized fixture
func Parse(b []byte) (*repository.Fixture, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := &repository.Fixture{}
	for _, e := range f.Events {
		ev := domain.Event{
			EventID:        e.ID,
			EventName:      e.Name,
			WebhookURL:     nullString(e.WebhookURL),
			WaiverRequired: e.WaiverRequired,
			EmailSubject:   nullString(e.EmailSubject),
		}
		for _, s := range e.Sections {
			sec := domain.Section{SectionID: s.ID, SectionName: s.Name}
			for _, r := range s.Rooms {
				if r.MaxStudents < 0 {
					return nil, fmt.Errorf("room %q: max_students must not be negative", r.Name)
				}
				for _, n := range r.PreferTeamSize {
					if n <= 0 {
						return nil, fmt.Errorf("room %q: prefer_team_size must be positive", r.Name)
					}
				}
				sec.Rooms = append(sec.Rooms, domain.Room{
					RoomID:         r.ID,
					RoomName:       r.Name,
					MaxStudents:    r.MaxStudents,
					PreferTeamSize: r.PreferTeamSize,
					Priority:       r.Priority,
				})
			}
			ev.Sections = append(ev.Sections, sec)
		}
		out.Events = append(out.Events, ev)
	}
	// event ids first, organizations refer to them
	out.Normalize()

	known := map[string]bool{}
	for _, ev := range out.Events {
		known[ev.EventID] = true
	}

	for _, o := range f.Organizations {
		eventID := o.Event
		if eventID == "" && len(out.Events) == 1 {
			eventID = out.Events[0].EventID
		}
		if !known[eventID] {
			return nil, fmt.Errorf("organization %q: unknown event %q", o.Name, o.Event)
		}
		org := domain.Organization{
			OrgID:        o.ID,
			EventID:      eventID,
			OrgName:      o.Name,
			ContactEmail: nullString(o.ContactEmail),
		}
		out.Organizations = append(out.Organizations, org)
		out.Normalize()
		org = out.Organizations[len(out.Organizations)-1]

		for _, t := range o.Teams {
			doc := checkin.TeamDoc{Team: domain.Team{
				TeamID:   t.ID,
				OrgID:    org.OrgID,
				EventID:  eventID,
				TeamName: t.Name,
			}}
			for _, s := range t.Students {
				doc.Students = append(doc.Students, domain.Student{
					StudentID: s.ID,
					FirstName: s.FirstName,
					LastName:  s.LastName,
					Waiver:    nullString(s.Waiver),
				})
			}
			out.Teams = append(out.Teams, doc)
		}
	}
	out.Normalize()
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
