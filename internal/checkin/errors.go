package checkin

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrNotConfigured        = errors.New("room assignments not configured for event")
	ErrNotCheckedIn         = errors.New("team is not checked in")
	ErrAlreadyCheckedIn     = errors.New("team is already checked in; undo first")
	ErrInvalidAction        = errors.New("invalid check-in action")
	ErrNoSpace              = errors.New("no room has space for team")
	ErrRoomNotFound         = errors.New("assigned room not found")
	ErrWaiverMissing        = errors.New("student is missing a required waiver")
	ErrSuffixExhausted      = errors.New("no student number suffix left (A-Z in use)")
)

// TeamError attributes a failure to the team (and optionally section/student) being processed
type TeamError struct {
	TeamID string
	Detail string
	Err    error
}

func (e *TeamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("team %s: %v (%s)", e.TeamID, e.Err, e.Detail)
	}
	return fmt.Sprintf("team %s: %v", e.TeamID, e.Err)
}

func (e *TeamError) Unwrap() error { return e.Err }

func teamErr(teamID string, err error, detailFormat string, args ...any) error {
	te := &TeamError{TeamID: teamID, Err: err}
	if detailFormat != "" {
		te.Detail = fmt.Sprintf(detailFormat, args...)
	}
	return te
}
