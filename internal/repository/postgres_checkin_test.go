package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
	"checkin-desk/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCheckInStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresCheckInStore(db)
}

func TestPostgresLoadEvent_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM events`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"event_id", "event_name", "webhook_url", "waiver_required", "email_subject",
		}).AddRow("ev-1", "Regional", "https://hooks.example.com/x", true, nil))

	mock.ExpectQuery(`FROM event_sections`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"section_id", "section_name", "position", "room_id", "room_name",
			"max_students", "prefer_team_size", "priority", "position",
		}).
			AddRow("main", "Main Hall", 1, "R1", "Room 1", 4, "{4,5}", 0, 1).
			AddRow("main", "Main Hall", 1, "R2", "Room 2", 6, nil, 1, 2).
			AddRow("lab", "Lab", 2, nil, nil, nil, nil, nil, nil))

	ev, err := repo.LoadEvent(context.Background(), "ev-1")
	require.NoError(t, err)

	assert.Equal(t, "Regional", ev.EventName)
	assert.True(t, ev.WaiverRequired)
	assert.Equal(t, "https://hooks.example.com/x", ev.WebhookURL.String)
	assert.False(t, ev.EmailSubject.Valid)

	require.Len(t, ev.Sections, 2)
	hall := ev.Sections[0]
	require.Len(t, hall.Rooms, 2)
	assert.Equal(t, domain.Room{RoomID: "R1", SectionID: "main", RoomName: "Room 1", MaxStudents: 4, PreferTeamSize: []int{4, 5}, Position: 1}, hall.Rooms[0])
	assert.Nil(t, hall.Rooms[1].PreferTeamSize)
	assert.Equal(t, 1, hall.Rooms[1].Priority)
	assert.Equal(t, "lab", ev.Sections[1].SectionID)
	assert.Empty(t, ev.Sections[1].Rooms)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadEvent_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM events`).WithArgs("ev-x").WillReturnError(sql.ErrNoRows)

	ev, err := repo.LoadEvent(context.Background(), "ev-x")
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, checkin.ErrEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadOrganization_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM organizations`).WithArgs("org-1", "ev-1").WillReturnError(sql.ErrNoRows)

	_, err := repo.LoadOrganization(context.Background(), "ev-1", "org-1")
	assert.ErrorIs(t, err, checkin.ErrOrganizationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTeams_AttachesStudents(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM teams`).
		WithArgs("ev-1", "org-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"team_id", "org_id", "event_id", "team_name", "number", "room_assignments", "is_checked_in",
		}).
			AddRow("t1", "org-1", "ev-1", "Alpha", "001", []byte(`{"main":"R1"}`), true).
			AddRow("t2", "org-1", "ev-1", "Beta", nil, nil, false))

	mock.ExpectQuery(`FROM students`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"student_id", "team_id", "fname", "lname", "waiver", "number", "room_assignments", "is_checked_in",
		}).
			AddRow("s1", "t1", "Amy", "Lee", "waiver.pdf", "001A", []byte(`{"main":"R1"}`), true).
			AddRow("s2", "t2", "Bo", "Chen", nil, nil, nil, false))

	docs, err := repo.ListTeams(context.Background(), "ev-1", "org-1", []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, domain.RoomAssignments{"main": "R1"}, docs[0].Team.RoomAssignments)
	assert.Equal(t, "001", docs[0].Team.Number.String)
	require.Len(t, docs[0].Students, 1)
	assert.True(t, docs[0].Students[0].HasWaiver())
	assert.False(t, docs[1].Team.Number.Valid)
	require.Len(t, docs[1].Students, 1)
	assert.False(t, docs[1].Students[0].HasWaiver())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTeams_EmptySelection(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	docs, err := repo.ListTeams(context.Background(), "ev-1", "org-1", []string{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRoomCountsAndNumbers(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`jsonb_each_text`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "count"}).
			AddRow("main", "R1", int64(3)).
			AddRow("lab", "L2", int64(5)))
	mock.ExpectQuery(`SELECT number FROM teams`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"number"}).AddRow("001").AddRow("002"))

	counts, err := repo.RoomCounts(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []checkin.RoomCount{
		{SectionID: "main", RoomID: "R1", Students: 3},
		{SectionID: "lab", RoomID: "L2", Students: 5},
	}, counts)

	numbers, err := repo.TeamNumbers(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 2, checkin.MaxTeamNumber(numbers))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx_AppliesPlan(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	plan := &checkin.Plan{
		Teams: []checkin.Write{
			{Kind: checkin.WriteCheckIn, ID: "t1", Number: "003", RoomAssignments: domain.RoomAssignments{"main": "R1"}},
			{Kind: checkin.WriteUndo, ID: "t2"},
		},
		Students: []checkin.Write{
			{Kind: checkin.WriteClear, ID: "s9"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE teams SET number = \$2, room_assignments = \$3::jsonb, is_checked_in = TRUE`).
		WithArgs("t1", "003", `{"main":"R1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE teams SET is_checked_in = FALSE`).
		WithArgs("t2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE students SET number = NULL, room_assignments = NULL, is_checked_in = FALSE`).
		WithArgs("s9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, plan)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx_MissingRowRollsBack(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE teams`).WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return tx.Apply(ctx, &checkin.Plan{Teams: []checkin.Write{{Kind: checkin.WriteUndo, ID: "gone"}}})
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx_SerializationFailureIsConflict(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

	err := repo.RunInTx(context.Background(), TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT number FROM teams`).WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	err = repo.RunInTx(context.Background(), TxOptions{}, func(ctx context.Context, tx CheckInTx) error {
		_, err := tx.TeamNumbers(ctx, "ev-1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx_ReadOnlyNeverCommits(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	called := false
	err := repo.RunInTx(context.Background(), TxOptions{ReadOnly: true}, func(ctx context.Context, tx CheckInTx) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadFixture(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	f := &Fixture{
		Events: []domain.Event{{
			EventID: "ev-1", EventName: "Regional",
			Sections: []domain.Section{{SectionID: "main", SectionName: "Main", Rooms: []domain.Room{
				{RoomID: "R1", RoomName: "Room 1", MaxStudents: 4, PreferTeamSize: []int{4}},
			}}},
		}},
		Organizations: []domain.Organization{{OrgID: "org-1", EventID: "ev-1", OrgName: "North"}},
		Teams: []checkin.TeamDoc{{
			Team:     domain.Team{TeamID: "t1", OrgID: "org-1", EventID: "ev-1", TeamName: "Alpha"},
			Students: []domain.Student{{StudentID: "s1", FirstName: "Amy"}},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO events`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO event_sections`).WithArgs("main", "ev-1", "Main", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO section_rooms`).
		WithArgs("R1", "main", "Room 1", 4, "{4}", 0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO organizations`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO teams`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO students`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Load(context.Background(), f))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadFixture_RollsBackOnError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO events`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Load(context.Background(), &Fixture{Events: []domain.Event{{EventID: "ev-1"}}})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
