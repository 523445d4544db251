package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
	"checkin-desk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryFixture() *Fixture {
	return &Fixture{
		Events: []domain.Event{{
			EventID:   "ev-1",
			EventName: "Regional",
			Sections: []domain.Section{{
				SectionID: "main",
				Rooms: []domain.Room{
					{RoomID: "R1", MaxStudents: 4},
					{RoomID: "R2", MaxStudents: 4, Priority: 1},
				},
			}},
		}},
		Organizations: []domain.Organization{{OrgID: "org-1", EventID: "ev-1", OrgName: "North High"}},
		Teams: []checkin.TeamDoc{
			{
				Team: domain.Team{TeamID: "t1", OrgID: "org-1", EventID: "ev-1", TeamName: "Alpha"},
				Students: []domain.Student{
					{StudentID: "s2", FirstName: "Zed"},
					{StudentID: "s1", FirstName: "Amy"},
				},
			},
			{Team: domain.Team{TeamID: "t2", OrgID: "org-1", EventID: "ev-1", TeamName: "Beta"}},
		},
	}
}

func TestMemoryCheckInStore_Reads(t *testing.T) {
	s := NewMemoryCheckInStore()
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, memoryFixture()))

	ev, err := s.LoadEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, ev.Sections, 1)
	assert.Equal(t, "main", ev.Sections[0].Rooms[1].SectionID)
	assert.Equal(t, 2, ev.Sections[0].Rooms[1].Position)

	_, err = s.LoadEvent(ctx, "nope")
	assert.ErrorIs(t, err, checkin.ErrEventNotFound)

	_, err = s.LoadOrganization(ctx, "ev-2", "org-1")
	assert.ErrorIs(t, err, checkin.ErrOrganizationNotFound)

	docs, err := s.ListTeams(ctx, "ev-1", "org-1", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Alpha", docs[0].Team.TeamName)
	assert.Equal(t, "s1", docs[0].Students[0].StudentID)
	assert.Equal(t, "t1", docs[0].Students[0].TeamID)

	docs, err = s.ListTeams(ctx, "ev-1", "org-1", []string{"t2", "ghost"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "t2", docs[0].Team.TeamID)
}

func TestMemoryCheckInStore_CommitAndCounts(t *testing.T) {
	s := NewMemoryCheckInStore()
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, memoryFixture()))

	plan := &checkin.Plan{
		Teams: []checkin.Write{{Kind: checkin.WriteCheckIn, ID: "t1", Number: "001", RoomAssignments: domain.RoomAssignments{"main": "R1"}}},
		Students: []checkin.Write{
			{Kind: checkin.WriteCheckIn, ID: "s1", Number: "001A", RoomAssignments: domain.RoomAssignments{"main": "R1"}},
			{Kind: checkin.WriteCheckIn, ID: "s2", Number: "001B", RoomAssignments: domain.RoomAssignments{"main": "R1"}},
		},
	}
	err := s.RunInTx(ctx, TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, plan)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Commits())

	counts, err := s.RoomCounts(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []checkin.RoomCount{{SectionID: "main", RoomID: "R1", Students: 2}}, counts)

	numbers, err := s.TeamNumbers(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"001"}, numbers)

	undo := &checkin.Plan{
		Teams:    []checkin.Write{{Kind: checkin.WriteUndo, ID: "t1"}},
		Students: []checkin.Write{{Kind: checkin.WriteUndo, ID: "s1"}, {Kind: checkin.WriteUndo, ID: "s2"}},
	}
	require.NoError(t, s.RunInTx(ctx, TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, undo)
	}))

	counts, err = s.RoomCounts(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, counts)

	docs, err := s.ListTeams(ctx, "ev-1", "org-1", []string{"t1"})
	require.NoError(t, err)
	assert.False(t, docs[0].Team.IsCheckedIn)
	assert.Equal(t, sql.NullString{String: "001", Valid: true}, docs[0].Team.Number)
	assert.Equal(t, "R1", docs[0].Team.RoomAssignments["main"])

	cleared := &checkin.Plan{Teams: []checkin.Write{{Kind: checkin.WriteClear, ID: "t1"}}}
	require.NoError(t, s.RunInTx(ctx, TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, cleared)
	}))
	docs, err = s.ListTeams(ctx, "ev-1", "org-1", []string{"t1"})
	require.NoError(t, err)
	assert.False(t, docs[0].Team.Number.Valid)
	assert.Nil(t, docs[0].Team.RoomAssignments)
}

func TestMemoryCheckInStore_RollbackAndConflicts(t *testing.T) {
	s := NewMemoryCheckInStore()
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, memoryFixture()))

	plan := &checkin.Plan{Teams: []checkin.Write{{Kind: checkin.WriteCheckIn, ID: "t2", Number: "005"}}}
	boom := errors.New("boom")

	err := s.RunInTx(ctx, TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		require.NoError(t, tx.Apply(ctx, plan))
		numbers, err := tx.TeamNumbers(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"005"}, numbers)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s.FailNextCommits(1)
	err = s.RunInTx(ctx, TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, plan)
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, s.RunInTx(ctx, TxOptions{ReadOnly: true}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, plan)
	}))

	numbers, err := s.TeamNumbers(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, numbers)
	assert.Equal(t, 0, s.Commits())
}

func TestMemoryCheckInStore_LoadRejectsOrphans(t *testing.T) {
	s := NewMemoryCheckInStore()
	err := s.Load(context.Background(), &Fixture{
		Organizations: []domain.Organization{{OrgID: "o", EventID: "missing"}},
	})
	assert.ErrorIs(t, err, checkin.ErrEventNotFound)
}

func TestFixture_NormalizeFillsIDs(t *testing.T) {
	f := &Fixture{
		Events: []domain.Event{{Sections: []domain.Section{{Rooms: []domain.Room{{}, {}}}}}},
		Teams:  []checkin.TeamDoc{{Students: []domain.Student{{}}}},
	}
	f.Normalize()

	ev := f.Events[0]
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, ev.EventID, ev.Sections[0].EventID)
	assert.NotEqual(t, ev.Sections[0].Rooms[0].RoomID, ev.Sections[0].Rooms[1].RoomID)
	assert.Equal(t, ev.Sections[0].SectionID, ev.Sections[0].Rooms[1].SectionID)
	assert.Equal(t, f.Teams[0].Team.TeamID, f.Teams[0].Students[0].TeamID)
}
