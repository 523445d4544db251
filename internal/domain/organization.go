package domain

import (
	"database/sql"
)

// Organization a school/club registered for an event (organizations table)
type Organization struct {
	OrgID        string         `db:"org_id"`
	EventID      string         `db:"event_id"`
	OrgName      string         `db:"org_name"`
	ContactEmail sql.NullString `db:"contact_email"`
}
