package checkin

import (
	"checkin-desk/internal/domain"
)

// TeamDoc a team with its current students
type TeamDoc struct {
	Team     domain.Team
	Students []domain.Student
}

// Snapshot everything a batch reads, taken at transaction open
type Snapshot struct {
	Event         *domain.Event
	Occupancy     Occupancy
	CheckedIn     map[string]bool // team ids of the organization already checked in
	MaxTeamNumber int
	Teams         map[string]*TeamDoc // selected team ids only
}

// Options per-call switches
type Options struct {
	AllowIncompleteWaivers bool
}

// WriteKind what a buffered write does to the check-in fields
type WriteKind int

const (
	// WriteCheckIn sets number, room_assignments and is_checked_in=true
	WriteCheckIn WriteKind = iota + 1
	// WriteUndo sets is_checked_in=false and keeps number/room_assignments
	WriteUndo
	// WriteClear removes number and room_assignments and sets is_checked_in=false
	WriteClear
)

func (k WriteKind) String() string {
	switch k {
	case WriteCheckIn:
		return "checkin"
	case WriteUndo:
		return "undo"
	case WriteClear:
		return "clear"
	}
	return "unknown"
}

// Write one buffered update of a team or student document
type Write struct {
	Kind            WriteKind
	ID              string
	Number          string
	RoomAssignments domain.RoomAssignments
}

// Outcome what happened to one selected team
type Outcome struct {
	TeamID          string                 `json:"team_id"`
	Action          domain.Action          `json:"action"`
	Result          string                 `json:"result"` // skipped|undone|cleared|checked_in
	Number          string                 `json:"number,omitempty"`
	RoomAssignments domain.RoomAssignments `json:"room_assignments,omitempty"`
	StudentNumbers  map[string]string      `json:"student_numbers,omitempty"`
}

// Plan result of a batch: the write set plus what was decided per team
type Plan struct {
	Processed []string
	Teams     []Write
	Students  []Write
	Outcomes  []Outcome
	Occupancy Occupancy
}

// Build runs the per-team state machine over the selected entries. It only reads snap and
// returns the write set; nothing outside the returned plan is touched, so a transaction
// retry can call it again on a fresh snapshot.
func Build(snap *Snapshot, selected Request, opts Options) (*Plan, error) {
	if snap.Event == nil {
		return nil, ErrEventNotFound
	}
	if len(snap.Event.Sections) == 0 {
		return nil, ErrNotConfigured
	}

	p := &planner{
		snap:      snap,
		opts:      opts,
		occ:       snap.Occupancy.Clone(),
		checkedIn: make(map[string]bool, len(snap.CheckedIn)),
		issuer:    NewNumberIssuer(snap.MaxTeamNumber),
		plan:      &Plan{Processed: make([]string, 0, len(selected))},
	}
	for id, v := range snap.CheckedIn {
		p.checkedIn[id] = v
	}

	for _, e := range selected {
		if err := p.process(e); err != nil {
			return nil, err
		}
		p.plan.Processed = append(p.plan.Processed, e.TeamID)
	}
	p.plan.Occupancy = p.occ
	return p.plan, nil
}

type planner struct {
	snap      *Snapshot
	opts      Options
	occ       Occupancy
	checkedIn map[string]bool
	issuer    *NumberIssuer
	plan      *Plan
}

func (p *planner) process(e Entry) error {
	// skip is honored before the lookup, stale ids included
	if e.Action == domain.ActionSkip {
		p.outcome(e, "skipped", nil)
		return nil
	}
	doc, ok := p.snap.Teams[e.TeamID]
	if !ok || doc == nil {
		return teamErr(e.TeamID, ErrTeamNotFound, "")
	}
	size := len(doc.Students)

	switch {
	case size == 0:
		p.outcome(e, "skipped", nil)
		return nil
	case e.Action == domain.ActionUndo:
		return p.undo(e, doc)
	case p.checkedIn[e.TeamID]:
		return teamErr(e.TeamID, ErrAlreadyCheckedIn, "action %s", e.Action)
	case e.Action == domain.ActionClear:
		return p.clear(e, doc)
	case e.Action == domain.ActionAuto || e.Action == domain.ActionExisting:
		return p.assign(e, doc, size)
	}
	return teamErr(e.TeamID, ErrInvalidAction, "%q", e.Action)
}

func (p *planner) undo(e Entry, doc *TeamDoc) error {
	if !p.checkedIn[e.TeamID] {
		return teamErr(e.TeamID, ErrNotCheckedIn, "")
	}
	// frees exactly the seats RoomCounts charged: checked-in students only, configured rooms only
	for _, s := range doc.Students {
		if !s.IsCheckedIn {
			continue
		}
		for _, sectionID := range s.RoomAssignments.SectionIDs() {
			roomID := s.RoomAssignments[sectionID]
			sec, ok := p.snap.Event.FindSection(sectionID)
			if !ok {
				continue
			}
			if _, ok := sec.FindRoom(roomID); !ok {
				continue
			}
			p.occ.Add(sectionID, roomID, -1)
		}
	}
	p.checkedIn[e.TeamID] = false

	p.plan.Teams = append(p.plan.Teams, Write{Kind: WriteUndo, ID: doc.Team.TeamID})
	for _, s := range doc.Students {
		p.plan.Students = append(p.plan.Students, Write{Kind: WriteUndo, ID: s.StudentID})
	}
	p.outcome(e, "undone", nil)
	return nil
}

func (p *planner) clear(e Entry, doc *TeamDoc) error {
	p.plan.Teams = append(p.plan.Teams, Write{Kind: WriteClear, ID: doc.Team.TeamID})
	for _, s := range doc.Students {
		p.plan.Students = append(p.plan.Students, Write{Kind: WriteClear, ID: s.StudentID})
	}
	p.outcome(e, "cleared", nil)
	return nil
}

func (p *planner) assign(e Entry, doc *TeamDoc, size int) error {
	rooms := make(domain.RoomAssignments, len(p.snap.Event.Sections))
	for i := range p.snap.Event.Sections {
		sec := &p.snap.Event.Sections[i]
		room, err := p.resolveRoom(e, doc, sec, size)
		if err != nil {
			return err
		}
		rooms[sec.SectionID] = room.RoomID
		p.occ.Add(sec.SectionID, room.RoomID, size)
	}

	teamNumber := p.issuer.TeamNumber(doc.Team.Number.String)
	studentNumbers, err := StudentNumbers(teamNumber, doc.Students)
	if err != nil {
		return teamErr(e.TeamID, err, "%d students", size)
	}

	p.plan.Teams = append(p.plan.Teams, Write{
		Kind:            WriteCheckIn,
		ID:              doc.Team.TeamID,
		Number:          teamNumber,
		RoomAssignments: rooms,
	})
	for _, s := range doc.Students {
		if p.snap.Event.WaiverRequired && !p.opts.AllowIncompleteWaivers && !s.HasWaiver() {
			return teamErr(e.TeamID, ErrWaiverMissing, "student %s %s", s.StudentID, s.FullName())
		}
		p.plan.Students = append(p.plan.Students, Write{
			Kind:            WriteCheckIn,
			ID:              s.StudentID,
			Number:          studentNumbers[s.StudentID],
			RoomAssignments: rooms.Clone(),
		})
	}
	p.checkedIn[e.TeamID] = true

	o := p.outcome(e, "checked_in", rooms)
	o.Number = teamNumber
	o.StudentNumbers = studentNumbers
	return nil
}

func (p *planner) resolveRoom(e Entry, doc *TeamDoc, sec *domain.Section, size int) (*domain.Room, error) {
	if e.Action == domain.ActionAuto {
		room, err := SelectRoom(sec, p.occ, size)
		if err != nil {
			return nil, teamErr(e.TeamID, err, "section %s, %d students", sec.SectionID, size)
		}
		return room, nil
	}

	roomID := doc.Team.RoomAssignments[sec.SectionID]
	room, ok := sec.FindRoom(roomID)
	if roomID == "" || !ok {
		return nil, teamErr(e.TeamID, ErrRoomNotFound, "section %s, room %q", sec.SectionID, roomID)
	}
	if room.MaxStudents-p.occ.Get(sec.SectionID, room.RoomID) < size {
		return nil, teamErr(e.TeamID, ErrNoSpace, "section %s, room %s, %d students", sec.SectionID, room.RoomID, size)
	}
	return room, nil
}

func (p *planner) outcome(e Entry, result string, rooms domain.RoomAssignments) *Outcome {
	p.plan.Outcomes = append(p.plan.Outcomes, Outcome{
		TeamID:          e.TeamID,
		Action:          e.Action,
		Result:          result,
		RoomAssignments: rooms,
	})
	return &p.plan.Outcomes[len(p.plan.Outcomes)-1]
}
