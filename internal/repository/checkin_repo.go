package repository

import (
	"context"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"

	"github.com/google/uuid"
)

// CheckInReader read side shared by the store and its transactions
type CheckInReader interface {
	// LoadEvent event with sections and rooms in configured order; checkin.ErrEventNotFound if absent
	LoadEvent(ctx context.Context, eventID string) (*domain.Event, error)

	// LoadOrganization checkin.ErrOrganizationNotFound if absent or registered for another event
	LoadOrganization(ctx context.Context, eventID, orgID string) (*domain.Organization, error)

	// ListTeams teams of the organization with their students (ordered by fname, lname, id).
	// teamIDs nil lists every team; unknown ids are left out.
	ListTeams(ctx context.Context, eventID, orgID string, teamIDs []string) ([]*checkin.TeamDoc, error)

	// RoomCounts checked-in students per (section, room) across the event
	RoomCounts(ctx context.Context, eventID string) ([]checkin.RoomCount, error)

	// TeamNumbers every issued team number in the event
	TeamNumbers(ctx context.Context, eventID string) ([]string, error)
}

// CheckInTx one transaction attempt
type CheckInTx interface {
	CheckInReader

	// Apply writes the plan's team and student updates
	Apply(ctx context.Context, plan *checkin.Plan) error
}

// TxOptions per-transaction switches
type TxOptions struct {
	// ReadOnly transactions are always rolled back
	ReadOnly bool
}

// CheckInStore serializable document store behind the check-in desk
type CheckInStore interface {
	CheckInReader

	// RunInTx runs fn in one serializable transaction and commits when fn returns nil.
	// A write conflict surfaces as store.ErrConflict; replaying is up to the caller.
	RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx CheckInTx) error) error

	// Load upserts fixture data (events, rooms, organizations, teams, students)
	Load(ctx context.Context, f *Fixture) error
}

// Fixture seed data for a store
type Fixture struct {
	Events        []domain.Event
	Organizations []domain.Organization
	Teams         []checkin.TeamDoc
}

// Normalize fills missing ids with random UUIDs and links children to their parents
func (f *Fixture) Normalize() {
	for i := range f.Events {
		ev := &f.Events[i]
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		for j := range ev.Sections {
			sec := &ev.Sections[j]
			if sec.SectionID == "" {
				sec.SectionID = uuid.NewString()
			}
			sec.EventID = ev.EventID
			if sec.Position == 0 {
				sec.Position = j + 1
			}
			for k := range sec.Rooms {
				room := &sec.Rooms[k]
				if room.RoomID == "" {
					room.RoomID = uuid.NewString()
				}
				room.SectionID = sec.SectionID
				if room.Position == 0 {
					room.Position = k + 1
				}
			}
		}
	}
	for i := range f.Organizations {
		if f.Organizations[i].OrgID == "" {
			f.Organizations[i].OrgID = uuid.NewString()
		}
	}
	for i := range f.Teams {
		doc := &f.Teams[i]
		if doc.Team.TeamID == "" {
			doc.Team.TeamID = uuid.NewString()
		}
		for j := range doc.Students {
			s := &doc.Students[j]
			if s.StudentID == "" {
				s.StudentID = uuid.NewString()
			}
			s.TeamID = doc.Team.TeamID
		}
	}
}
