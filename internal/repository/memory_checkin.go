package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/domain"
	"checkin-desk/internal/store"
)

// MemoryCheckInStore: 用于 DB 未就绪时的联测和单元测试
// - transactions hold the lock for their whole run, so they are trivially serializable
// - writes go to a working copy that replaces the state on commit
// - FailNextCommits makes commits fail with store.ErrConflict to exercise replay
type MemoryCheckInStore struct {
	mu    sync.Mutex
	state *memoryState

	failCommits int
	commits     int
}

type memoryState struct {
	events   map[string]*domain.Event // events are never written by a transaction
	orgs     map[string]domain.Organization
	teams    map[string]domain.Team
	students map[string]domain.Student
}

func NewMemoryCheckInStore() *MemoryCheckInStore {
	return &MemoryCheckInStore{state: &memoryState{
		events:   map[string]*domain.Event{},
		orgs:     map[string]domain.Organization{},
		teams:    map[string]domain.Team{},
		students: map[string]domain.Student{},
	}}
}

var _ CheckInStore = (*MemoryCheckInStore)(nil)

// FailNextCommits makes the next n commits fail with store.ErrConflict
func (s *MemoryCheckInStore) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

// Commits number of successful commits
func (s *MemoryCheckInStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryCheckInStore) RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx CheckInTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memoryTx{st: work}); err != nil {
		return err
	}
	if opts.ReadOnly {
		return nil
	}
	if s.failCommits > 0 {
		s.failCommits--
		return store.ErrConflict
	}
	s.state = work
	s.commits++
	return nil
}

func (s *MemoryCheckInStore) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.loadEvent(eventID)
}

func (s *MemoryCheckInStore) LoadOrganization(ctx context.Context, eventID, orgID string) (*domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.loadOrganization(eventID, orgID)
}

func (s *MemoryCheckInStore) ListTeams(ctx context.Context, eventID, orgID string, teamIDs []string) ([]*checkin.TeamDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listTeams(eventID, orgID, teamIDs), nil
}

func (s *MemoryCheckInStore) RoomCounts(ctx context.Context, eventID string) ([]checkin.RoomCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.roomCounts(eventID), nil
}

func (s *MemoryCheckInStore) TeamNumbers(ctx context.Context, eventID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.teamNumbers(eventID), nil
}

// Load adds or replaces fixture records
func (s *MemoryCheckInStore) Load(ctx context.Context, f *Fixture) error {
	f.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range f.Events {
		ev := f.Events[i]
		ev.Sections = make([]domain.Section, len(f.Events[i].Sections))
		for j, sec := range f.Events[i].Sections {
			sec.Rooms = append([]domain.Room(nil), sec.Rooms...)
			ev.Sections[j] = sec
		}
		s.state.events[ev.EventID] = &ev
	}
	for _, org := range f.Organizations {
		if _, ok := s.state.events[org.EventID]; !ok {
			return fmt.Errorf("organization %s: %w", org.OrgID, checkin.ErrEventNotFound)
		}
		s.state.orgs[org.OrgID] = org
	}
	for _, doc := range f.Teams {
		if _, ok := s.state.orgs[doc.Team.OrgID]; !ok {
			return fmt.Errorf("team %s: %w", doc.Team.TeamID, checkin.ErrOrganizationNotFound)
		}
		t := doc.Team
		t.RoomAssignments = t.RoomAssignments.Clone()
		s.state.teams[t.TeamID] = t
		for _, st := range doc.Students {
			st.RoomAssignments = st.RoomAssignments.Clone()
			s.state.students[st.StudentID] = st
		}
	}
	return nil
}

type memoryTx struct {
	st *memoryState
}

var _ CheckInTx = (*memoryTx)(nil)

func (tx *memoryTx) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	return tx.st.loadEvent(eventID)
}

func (tx *memoryTx) LoadOrganization(ctx context.Context, eventID, orgID string) (*domain.Organization, error) {
	return tx.st.loadOrganization(eventID, orgID)
}

func (tx *memoryTx) ListTeams(ctx context.Context, eventID, orgID string, teamIDs []string) ([]*checkin.TeamDoc, error) {
	return tx.st.listTeams(eventID, orgID, teamIDs), nil
}

func (tx *memoryTx) RoomCounts(ctx context.Context, eventID string) ([]checkin.RoomCount, error) {
	return tx.st.roomCounts(eventID), nil
}

func (tx *memoryTx) TeamNumbers(ctx context.Context, eventID string) ([]string, error) {
	return tx.st.teamNumbers(eventID), nil
}

func (tx *memoryTx) Apply(ctx context.Context, plan *checkin.Plan) error {
	for _, w := range plan.Teams {
		t, ok := tx.st.teams[w.ID]
		if !ok {
			return fmt.Errorf("%s team %s: %w", w.Kind, w.ID, checkin.ErrTeamNotFound)
		}
		applyCheckInFields(w, &t.Number, &t.RoomAssignments, &t.IsCheckedIn)
		tx.st.teams[w.ID] = t
	}
	for _, w := range plan.Students {
		s, ok := tx.st.students[w.ID]
		if !ok {
			return fmt.Errorf("%s student %s: not found", w.Kind, w.ID)
		}
		applyCheckInFields(w, &s.Number, &s.RoomAssignments, &s.IsCheckedIn)
		tx.st.students[w.ID] = s
	}
	return nil
}

func applyCheckInFields(w checkin.Write, number *sql.NullString, rooms *domain.RoomAssignments, checkedIn *bool) {
	switch w.Kind {
	case checkin.WriteCheckIn:
		*number = sql.NullString{String: w.Number, Valid: w.Number != ""}
		*rooms = w.RoomAssignments.Clone()
		*checkedIn = true
	case checkin.WriteUndo:
		*checkedIn = false
	case checkin.WriteClear:
		*number = sql.NullString{}
		*rooms = nil
		*checkedIn = false
	}
}

func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		events:   st.events,
		orgs:     st.orgs,
		teams:    make(map[string]domain.Team, len(st.teams)),
		students: make(map[string]domain.Student, len(st.students)),
	}
	for id, t := range st.teams {
		t.RoomAssignments = t.RoomAssignments.Clone()
		out.teams[id] = t
	}
	for id, s := range st.students {
		s.RoomAssignments = s.RoomAssignments.Clone()
		out.students[id] = s
	}
	return out
}

func (st *memoryState) loadEvent(eventID string) (*domain.Event, error) {
	ev, ok := st.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, checkin.ErrEventNotFound)
	}
	cp := *ev
	return &cp, nil
}

func (st *memoryState) loadOrganization(eventID, orgID string) (*domain.Organization, error) {
	org, ok := st.orgs[orgID]
	if !ok || org.EventID != eventID {
		return nil, fmt.Errorf("organization %s: %w", orgID, checkin.ErrOrganizationNotFound)
	}
	return &org, nil
}

func (st *memoryState) listTeams(eventID, orgID string, teamIDs []string) []*checkin.TeamDoc {
	var wanted map[string]bool
	if teamIDs != nil {
		wanted = make(map[string]bool, len(teamIDs))
		for _, id := range teamIDs {
			wanted[id] = true
		}
	}

	byID := map[string]*checkin.TeamDoc{}
	var docs []*checkin.TeamDoc
	for _, t := range st.teams {
		if t.EventID != eventID || t.OrgID != orgID {
			continue
		}
		if wanted != nil && !wanted[t.TeamID] {
			continue
		}
		t.RoomAssignments = t.RoomAssignments.Clone()
		doc := &checkin.TeamDoc{Team: t}
		docs = append(docs, doc)
		byID[t.TeamID] = doc
	}
	for _, s := range st.students {
		if doc, ok := byID[s.TeamID]; ok {
			s.RoomAssignments = s.RoomAssignments.Clone()
			doc.Students = append(doc.Students, s)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Team.TeamName != docs[j].Team.TeamName {
			return docs[i].Team.TeamName < docs[j].Team.TeamName
		}
		return docs[i].Team.TeamID < docs[j].Team.TeamID
	})
	for _, doc := range docs {
		sortStudents(doc.Students)
	}
	return docs
}

func sortStudents(students []domain.Student) {
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.StudentID < b.StudentID
	})
}

func (st *memoryState) roomCounts(eventID string) []checkin.RoomCount {
	type key struct{ section, room string }
	counts := map[key]int{}
	for _, s := range st.students {
		if !s.IsCheckedIn {
			continue
		}
		t, ok := st.teams[s.TeamID]
		if !ok || t.EventID != eventID {
			continue
		}
		for sec, room := range s.RoomAssignments {
			counts[key{sec, room}]++
		}
	}

	out := make([]checkin.RoomCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, checkin.RoomCount{SectionID: k.section, RoomID: k.room, Students: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID < out[j].SectionID
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

func (st *memoryState) teamNumbers(eventID string) []string {
	var numbers []string
	for _, t := range st.teams {
		if t.EventID == eventID && t.Number.Valid {
			numbers = append(numbers, t.Number.String)
		}
	}
	sort.Strings(numbers)
	return numbers
}
