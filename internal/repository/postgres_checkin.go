package repository

import (
	"context"
	"database/sql"
	"fmt"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
	"checkin-desk/internal/store"

	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresCheckInStore check-in store on PostgreSQL (SERIALIZABLE transactions)
type PostgresCheckInStore struct {
	pgCheckIn
	db *sql.DB
}

// NewPostgresCheckInStore creates the store
func NewPostgresCheckInStore(db *sql.DB) *PostgresCheckInStore {
	return &PostgresCheckInStore{pgCheckIn: pgCheckIn{q: db}, db: db}
}

// 确保实现了接口
var _ CheckInStore = (*PostgresCheckInStore)(nil)

// RunInTx runs fn inside a SERIALIZABLE transaction
func (s *PostgresCheckInStore) RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx CheckInTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", store.MapConflict(err))
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgCheckInTx{pgCheckIn{q: tx}}); err != nil {
		return store.MapConflict(err)
	}
	if opts.ReadOnly {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", store.MapConflict(err))
	}
	return nil
}

type pgCheckInTx struct {
	pgCheckIn
}

var _ CheckInTx = (*pgCheckInTx)(nil)

type pgCheckIn struct {
	q querier
}

func (r pgCheckIn) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var ev domain.Event
	err := r.q.QueryRowContext(ctx, `
		SELECT event_id, event_name, webhook_url, waiver_required, email_subject
		FROM events
		WHERE event_id = $1
	`, eventID).Scan(&ev.EventID, &ev.EventName, &ev.WebhookURL, &ev.WaiverRequired, &ev.EmailSubject)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %s: %w", eventID, checkin.ErrEventNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT
			s.section_id,
			s.section_name,
			s.position,
			r.room_id,
			r.room_name,
			r.max_students,
			r.prefer_team_size,
			r.priority,
			r.position
		FROM event_sections s
		LEFT JOIN section_rooms r ON r.section_id = s.section_id
		WHERE s.event_id = $1
		ORDER BY s.position, s.section_id, r.position, r.room_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sec      domain.Section
			roomID   sql.NullString
			roomName sql.NullString
			maxStud  sql.NullInt64
			prefer   pq.Int64Array
			priority sql.NullInt64
			position sql.NullInt64
		)
		if err := rows.Scan(&sec.SectionID, &sec.SectionName, &sec.Position,
			&roomID, &roomName, &maxStud, &prefer, &priority, &position); err != nil {
			return nil, fmt.Errorf("failed to scan event room: %w", err)
		}
		if n := len(ev.Sections); n == 0 || ev.Sections[n-1].SectionID != sec.SectionID {
			sec.EventID = ev.EventID
			ev.Sections = append(ev.Sections, sec)
		}
		if !roomID.Valid {
			continue
		}
		cur := &ev.Sections[len(ev.Sections)-1]
		cur.Rooms = append(cur.Rooms, domain.Room{
			RoomID:         roomID.String,
			SectionID:      cur.SectionID,
			RoomName:       roomName.String,
			MaxStudents:    int(maxStud.Int64),
			PreferTeamSize: intsOrNil(prefer),
			Priority:       int(priority.Int64),
			Position:       int(position.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list event rooms: %w", err)
	}
	return &ev, nil
}

func (r pgCheckIn) LoadOrganization(ctx context.Context, eventID, orgID string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.q.QueryRowContext(ctx, `
		SELECT org_id, event_id, org_name, contact_email
		FROM organizations
		WHERE org_id = $1 AND event_id = $2
	`, orgID, eventID).Scan(&org.OrgID, &org.EventID, &org.OrgName, &org.ContactEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization %s: %w", orgID, checkin.ErrOrganizationNotFound)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (r pgCheckIn) ListTeams(ctx context.Context, eventID, orgID string, teamIDs []string) ([]*checkin.TeamDoc, error) {
	query := `
		SELECT team_id, org_id, event_id, team_name, number, room_assignments, is_checked_in
		FROM teams
		WHERE event_id = $1 AND org_id = $2`
	args := []any{eventID, orgID}
	if teamIDs != nil {
		if len(teamIDs) == 0 {
			return nil, nil
		}
		query += ` AND team_id = ANY($3)`
		args = append(args, pq.Array(teamIDs))
	}
	query += ` ORDER BY team_name, team_id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var docs []*checkin.TeamDoc
	byID := map[string]*checkin.TeamDoc{}
	ids := []string{}
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.TeamID, &t.OrgID, &t.EventID, &t.TeamName, &t.Number, &t.RoomAssignments, &t.IsCheckedIn); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		doc := &checkin.TeamDoc{Team: t}
		docs = append(docs, doc)
		byID[t.TeamID] = doc
		ids = append(ids, t.TeamID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	if len(ids) == 0 {
		return docs, nil
	}

	srows, err := r.q.QueryContext(ctx, `
		SELECT student_id, team_id, fname, lname, waiver, number, room_assignments, is_checked_in
		FROM students
		WHERE team_id = ANY($1)
		ORDER BY fname, lname, student_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer srows.Close()

	for srows.Next() {
		var s domain.Student
		if err := srows.Scan(&s.StudentID, &s.TeamID, &s.FirstName, &s.LastName, &s.Waiver, &s.Number, &s.RoomAssignments, &s.IsCheckedIn); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		if doc, ok := byID[s.TeamID]; ok {
			doc.Students = append(doc.Students, s)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return docs, nil
}

func (r pgCheckIn) RoomCounts(ctx context.Context, eventID string) ([]checkin.RoomCount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT ra.key, ra.value, COUNT(*)
		FROM students s
		JOIN teams t ON t.team_id = s.team_id
		CROSS JOIN LATERAL jsonb_each_text(s.room_assignments) AS ra(key, value)
		WHERE t.event_id = $1
		  AND s.is_checked_in
		  AND s.room_assignments IS NOT NULL
		GROUP BY ra.key, ra.value
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count room occupancy: %w", err)
	}
	defer rows.Close()

	var counts []checkin.RoomCount
	for rows.Next() {
		var c checkin.RoomCount
		if err := rows.Scan(&c.SectionID, &c.RoomID, &c.Students); err != nil {
			return nil, fmt.Errorf("failed to scan room occupancy: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count room occupancy: %w", err)
	}
	return counts, nil
}

func (r pgCheckIn) TeamNumbers(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT number FROM teams WHERE event_id = $1 AND number IS NOT NULL
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan team number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list team numbers: %w", err)
	}
	return numbers, nil
}

func (r pgCheckIn) Apply(ctx context.Context, plan *checkin.Plan) error {
	for _, w := range plan.Teams {
		if err := r.applyWrite(ctx, "teams", "team_id", w); err != nil {
			return err
		}
	}
	for _, w := range plan.Students {
		if err := r.applyWrite(ctx, "students", "student_id", w); err != nil {
			return err
		}
	}
	return nil
}

func (r pgCheckIn) applyWrite(ctx context.Context, table, idColumn string, w checkin.Write) error {
	var (
		query string
		args  []any
	)
	switch w.Kind {
	case checkin.WriteCheckIn:
		query = fmt.Sprintf(`UPDATE %s SET number = $2, room_assignments = $3::jsonb, is_checked_in = TRUE WHERE %s = $1`, table, idColumn)
		args = []any{w.ID, w.Number, w.RoomAssignments}
	case checkin.WriteUndo:
		query = fmt.Sprintf(`UPDATE %s SET is_checked_in = FALSE WHERE %s = $1`, table, idColumn)
		args = []any{w.ID}
	case checkin.WriteClear:
		query = fmt.Sprintf(`UPDATE %s SET number = NULL, room_assignments = NULL, is_checked_in = FALSE WHERE %s = $1`, table, idColumn)
		args = []any{w.ID}
	default:
		return fmt.Errorf("unknown write kind %d for %s %s", w.Kind, table, w.ID)
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s %s %s: %w", w.Kind, table, w.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s %s: %w", w.Kind, table, w.ID, sql.ErrNoRows)
	}
	return nil
}

// Load upserts the fixture in one transaction
func (s *PostgresCheckInStore) Load(ctx context.Context, f *Fixture) error {
	f.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range f.Events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (event_id, event_name, webhook_url, waiver_required, email_subject)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id)
			DO UPDATE SET event_name = EXCLUDED.event_name,
			              webhook_url = EXCLUDED.webhook_url,
			              waiver_required = EXCLUDED.waiver_required,
			              email_subject = EXCLUDED.email_subject
		`, ev.EventID, ev.EventName, ev.WebhookURL, ev.WaiverRequired, ev.EmailSubject); err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", ev.EventID, err)
		}
		for _, sec := range ev.Sections {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO event_sections (section_id, event_id, section_name, position)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (section_id)
				DO UPDATE SET section_name = EXCLUDED.section_name, position = EXCLUDED.position
			`, sec.SectionID, ev.EventID, sec.SectionName, sec.Position); err != nil {
				return fmt.Errorf("failed to upsert section %s: %w", sec.SectionID, err)
			}
			for _, room := range sec.Rooms {
				var prefer any
				if room.HasPreference() {
					prefer = pq.Array(int64s(room.PreferTeamSize))
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO section_rooms (room_id, section_id, room_name, max_students, prefer_team_size, priority, position)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
					ON CONFLICT (room_id)
					DO UPDATE SET room_name = EXCLUDED.room_name,
					              max_students = EXCLUDED.max_students,
					              prefer_team_size = EXCLUDED.prefer_team_size,
					              priority = EXCLUDED.priority,
					              position = EXCLUDED.position
				`, room.RoomID, sec.SectionID, room.RoomName, room.MaxStudents, prefer, room.Priority, room.Position); err != nil {
					return fmt.Errorf("failed to upsert room %s: %w", room.RoomID, err)
				}
			}
		}
	}

	for _, org := range f.Organizations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO organizations (org_id, event_id, org_name, contact_email)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (org_id)
			DO UPDATE SET org_name = EXCLUDED.org_name, contact_email = EXCLUDED.contact_email
		`, org.OrgID, org.EventID, org.OrgName, org.ContactEmail); err != nil {
			return fmt.Errorf("failed to upsert organization %s: %w", org.OrgID, err)
		}
	}

	for _, doc := range f.Teams {
		t := doc.Team
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (team_id, org_id, event_id, team_name, number, room_assignments, is_checked_in)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
			ON CONFLICT (team_id)
			DO UPDATE SET team_name = EXCLUDED.team_name
		`, t.TeamID, t.OrgID, t.EventID, t.TeamName, t.Number, t.RoomAssignments, t.IsCheckedIn); err != nil {
			return fmt.Errorf("failed to upsert team %s: %w", t.TeamID, err)
		}
		for _, st := range doc.Students {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO students (student_id, team_id, fname, lname, waiver, number, room_assignments, is_checked_in)
				VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
				ON CONFLICT (student_id)
				DO UPDATE SET fname = EXCLUDED.fname, lname = EXCLUDED.lname, waiver = EXCLUDED.waiver
			`, st.StudentID, t.TeamID, st.FirstName, st.LastName, st.Waiver, st.Number, st.RoomAssignments, st.IsCheckedIn); err != nil {
				return fmt.Errorf("failed to upsert student %s: %w", st.StudentID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixture: %w", err)
	}
	return nil
}

func intsOrNil(a pq.Int64Array) []int {
	if len(a) == 0 {
		return nil
	}
	out := make([]int, len(a))
	for i, v := range a {
		out[i] = int(v)
	}
	return out
}

func int64s(a []int) []int64 {
	out := make([]int64, len(a))
	for i, v := range a {
		out[i] = int64(v)
	}
	return out
}
