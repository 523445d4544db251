package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/repository"
	"checkin-desk/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const occupancyTTL = 30 * time.Second

// CheckInServiceOptions optional collaborators
type CheckInServiceOptions struct {
	Retrier       *store.Retrier
	Notifier      *Notifier
	Cache         store.KV
	SummaryTTL    time.Duration
	NotifyTimeout time.Duration
}

// CheckInService transaction coordinator of the check-in desk
type CheckInService struct {
	store         repository.CheckInStore
	retrier       *store.Retrier
	notifier      *Notifier
	cache         store.KV
	summaryTTL    time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger

	wg sync.WaitGroup
}

func NewCheckInService(st repository.CheckInStore, opts CheckInServiceOptions, logger *zap.Logger) *CheckInService {
	if opts.Retrier == nil {
		opts.Retrier = store.NewRetrier(5, 20*time.Millisecond, logger)
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = 5 * time.Minute
	}
	return &CheckInService{
		store:         st,
		retrier:       opts.Retrier,
		notifier:      opts.Notifier,
		cache:         opts.Cache,
		summaryTTL:    opts.SummaryTTL,
		notifyTimeout: opts.NotifyTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// CheckIn processes one organization's batch atomically and returns the ids in scope
// (skipped teams included). The whole batch is replayed on a write conflict; post-commit
// notification runs in the background and never affects the result.
func (s *CheckInService) CheckIn(ctx context.Context, actor, eventID, orgID string, req checkin.Request, allowIncompleteWaivers bool) ([]string, error) {
	batchID := uuid.NewString()
	log := s.logger.With(
		zap.String("batch_id", batchID),
		zap.String("event_id", eventID),
		zap.String("org_id", orgID),
		zap.String("actor", actor),
	)
	opts := checkin.Options{AllowIncompleteWaivers: allowIncompleteWaivers}

	var (
		plan     *checkin.Plan
		attempts int
	)
	err := s.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		return s.store.RunInTx(ctx, repository.TxOptions{}, func(ctx context.Context, tx repository.CheckInTx) error {
			p, err := planBatch(ctx, tx, eventID, orgID, req, opts)
			if err != nil {
				return err
			}
			if err := tx.Apply(ctx, p); err != nil {
				return err
			}
			plan = p
			return nil
		})
	})
	if err != nil {
		log.Warn("check-in rejected", zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}

	log.Info("check-in committed",
		zap.Int("attempts", attempts),
		zap.Int("processed", len(plan.Processed)),
		zap.Int("team_writes", len(plan.Teams)),
		zap.Int("student_writes", len(plan.Students)),
	)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, store.SummaryKey(eventID, orgID), store.OccupancyKey(eventID)); err != nil {
			log.Warn("failed to invalidate cached reports", zap.Error(err))
		}
	}

	s.notifyAsync(Committed{
		BatchID:   batchID,
		Actor:     actor,
		EventID:   eventID,
		OrgID:     orgID,
		Request:   req,
		Processed: plan.Processed,
		Outcomes:  plan.Outcomes,
		Attempts:  attempts,
	})
	return plan.Processed, nil
}

// Preview result of a dry run
type Preview struct {
	Processed []string          `json:"processed"`
	Outcomes  []checkin.Outcome `json:"outcomes"`
	Occupancy checkin.Occupancy `json:"occupancy"`
}

// Preview plans the batch against current data inside a read-only transaction
func (s *CheckInService) Preview(ctx context.Context, eventID, orgID string, req checkin.Request, allowIncompleteWaivers bool) (*Preview, error) {
	opts := checkin.Options{AllowIncompleteWaivers: allowIncompleteWaivers}
	var out *Preview
	err := s.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		return s.store.RunInTx(ctx, repository.TxOptions{ReadOnly: true}, func(ctx context.Context, tx repository.CheckInTx) error {
			p, err := planBatch(ctx, tx, eventID, orgID, req, opts)
			if err != nil {
				return err
			}
			out = &Preview{Processed: p.Processed, Outcomes: p.Outcomes, Occupancy: p.Occupancy}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// planBatch loads the snapshot through tx and runs the planner on it
func planBatch(ctx context.Context, tx repository.CheckInReader, eventID, orgID string, req checkin.Request, opts checkin.Options) (*checkin.Plan, error) {
	ev, err := tx.LoadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.LoadOrganization(ctx, eventID, orgID); err != nil {
		return nil, err
	}
	if len(ev.Sections) == 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, checkin.ErrNotConfigured)
	}

	docs, err := tx.ListTeams(ctx, eventID, orgID, req.TeamIDs())
	if err != nil {
		return nil, err
	}
	counts, err := tx.RoomCounts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	numbers, err := tx.TeamNumbers(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snap := &checkin.Snapshot{
		Event:         ev,
		Occupancy:     checkin.ComputeOccupancy(ev.Sections, counts),
		CheckedIn:     make(map[string]bool, len(docs)),
		MaxTeamNumber: checkin.MaxTeamNumber(numbers),
		Teams:         make(map[string]*checkin.TeamDoc, len(docs)),
	}
	for _, doc := range docs {
		snap.Teams[doc.Team.TeamID] = doc
		if doc.Team.IsCheckedIn {
			snap.CheckedIn[doc.Team.TeamID] = true
		}
	}
	return checkin.Build(snap, checkin.Select(req, snap.CheckedIn), opts)
}

func (s *CheckInService) notifyAsync(c Committed) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("post-commit notifier panicked",
					zap.String("batch_id", c.BatchID),
					zap.Any("panic", r),
				)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		s.notifier.Notify(ctx, c)
	}()
}

// Wait blocks until background notifications have finished
func (s *CheckInService) Wait() {
	s.wg.Wait()
}

// Summary organization report, served from cache when present
func (s *CheckInService) Summary(ctx context.Context, eventID, orgID string) (*Summary, error) {
	key := store.SummaryKey(eventID, orgID)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var cached Summary
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				return &cached, nil
			}
			s.logger.Warn("dropping undecodable cached summary", zap.String("key", key))
		case !errors.Is(err, store.ErrMiss):
			s.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	summary, err := s.Roster(ctx, eventID, orgID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, key, string(b), s.summaryTTL); err != nil {
				s.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return summary, nil
}

// Roster organization report read straight from the store
func (s *CheckInService) Roster(ctx context.Context, eventID, orgID string) (*Summary, error) {
	ev, err := s.store.LoadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.LoadOrganization(ctx, eventID, orgID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListTeams(ctx, eventID, orgID, nil)
	if err != nil {
		return nil, err
	}
	return BuildSummary(ev, org, docs, s.now()), nil
}

// RoomOccupancy one room of the occupancy report
type RoomOccupancy struct {
	RoomID         string `json:"room_id"`
	RoomName       string `json:"room_name"`
	MaxStudents    int    `json:"max_students"`
	Students       int    `json:"students"`
	Remaining      int    `json:"remaining"`
	Priority       int    `json:"priority"`
	PreferTeamSize []int  `json:"prefer_team_size,omitempty"`
}

// SectionOccupancy rooms of one section in configured order
type SectionOccupancy struct {
	SectionID   string          `json:"section_id"`
	SectionName string          `json:"section_name"`
	Rooms       []RoomOccupancy `json:"rooms"`
}

// OccupancyReport derived occupancy of every room of an event
type OccupancyReport struct {
	EventID  string             `json:"event_id"`
	Sections []SectionOccupancy `json:"sections"`
}

// Occupancy derives current room occupancy; cached briefly and dropped after every commit
func (s *CheckInService) Occupancy(ctx context.Context, eventID string) (*OccupancyReport, error) {
	key := store.OccupancyKey(eventID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached OccupancyReport
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		}
	}

	ev, err := s.store.LoadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.RoomCounts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	occ := checkin.ComputeOccupancy(ev.Sections, counts)

	report := &OccupancyReport{EventID: eventID, Sections: make([]SectionOccupancy, 0, len(ev.Sections))}
	for _, sec := range ev.Sections {
		so := SectionOccupancy{SectionID: sec.SectionID, SectionName: sectionLabel(sec), Rooms: make([]RoomOccupancy, 0, len(sec.Rooms))}
		for _, r := range sec.Rooms {
			used := occ.Get(sec.SectionID, r.RoomID)
			so.Rooms = append(so.Rooms, RoomOccupancy{
				RoomID:         r.RoomID,
				RoomName:       r.RoomName,
				MaxStudents:    r.MaxStudents,
				Students:       used,
				Remaining:      r.MaxStudents - used,
				Priority:       r.Priority,
				PreferTeamSize: r.PreferTeamSize,
			})
		}
		report.Sections = append(report.Sections, so)
	}

	if s.cache != nil {
		if b, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, key, string(b), occupancyTTL); err != nil {
				s.logger.Warn("occupancy cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return report, nil
}
