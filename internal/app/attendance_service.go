// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"attendance/internal/domain"

	"go.uber.org/zap"
)

// ErrInvalidRequest indicates a malformed transition request (missing
// person id, empty break reason). Distinct from the state-machine
// precondition failures in the domain package.
var ErrInvalidRequest = errors.New("invalid request")

// AttendanceService is the state machine over work sessions. It
// serializes all operations per person with a keyed mutex, so two
// requests for the same person can never interleave their
// read-modify-write, while different people proceed concurrently.
type AttendanceService struct {
	store domain.AttendanceRepository
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAttendanceService creates an AttendanceService backed by the given store.
func NewAttendanceService(store domain.AttendanceRepository, log *zap.Logger) *AttendanceService {
	return &AttendanceService{
		store: store,
		log:   log,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *AttendanceService) personLock(personID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[personID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[personID] = l
	}
	return l
}

// ClockIn opens a working session. Fails with ErrAlreadyWorking if one
// exists.
func (s *AttendanceService) ClockIn(ctx context.Context, personID, displayName string) (*domain.Session, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, ErrInvalidRequest
	}
	if displayName == "" {
		displayName = personID
	}

	l := s.personLock(personID)
	l.Lock()
	defer l.Unlock()

	return s.store.ClockIn(ctx, personID, displayName, s.now())
}

// ClockOut closes the session: folds any open break, writes the history
// entry and deletes the session. Fails with ErrNotWorking if there is no
// session.
func (s *AttendanceService) ClockOut(ctx context.Context, personID string) (*domain.HistoryEntry, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, ErrInvalidRequest
	}

	l := s.personLock(personID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.ClockOut(ctx, personID, s.now())
	if err != nil {
		return nil, err
	}
	if res.Clamped {
		s.log.Warn("negative duration clamped during clock-out",
			zap.String("person", personID))
	}
	return &res.Entry, nil
}

// StartBreak moves a working session onto break. The reason is required
// and kept on the break entry.
func (s *AttendanceService) StartBreak(ctx context.Context, personID, displayName, reason string) (*domain.Session, error) {
	personID = strings.TrimSpace(personID)
	reason = strings.TrimSpace(reason)
	if personID == "" || reason == "" {
		return nil, ErrInvalidRequest
	}
	if displayName == "" {
		displayName = personID
	}

	l := s.personLock(personID)
	l.Lock()
	defer l.Unlock()

	return s.store.StartBreak(ctx, personID, displayName, reason, s.now())
}

// ResumeBreak folds the open break back into the session and returns to
// the working state, reporting the folded break's duration.
func (s *AttendanceService) ResumeBreak(ctx context.Context, personID string) (*domain.ResumeResult, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, ErrInvalidRequest
	}

	l := s.personLock(personID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.ResumeBreak(ctx, personID, s.now())
	if err != nil {
		return nil, err
	}
	if res.MissingBreakRow {
		s.log.Warn("no open break entry found on resume",
			zap.String("person", personID))
	}
	return res, nil
}

// ForceClose closes the session exactly as ClockOut does but with a
// caller-supplied reference instant. Used by the scheduler's daily close;
// a concurrent interactive clock-out and a forced close resolve to one
// winner, the loser sees ErrNotWorking. A session opened after ref is
// never closed: the store rechecks the start time under its own lock,
// so a close-and-reopen between listing and closing stays safe.
func (s *AttendanceService) ForceClose(ctx context.Context, personID string, ref time.Time) (*domain.HistoryEntry, error) {
	l := s.personLock(personID)
	l.Lock()
	defer l.Unlock()

	res, err := s.store.ForceClockOut(ctx, personID, ref)
	if err != nil {
		return nil, err
	}
	if res.Clamped {
		s.log.Warn("negative duration clamped during forced close",
			zap.String("person", personID))
	}
	return &res.Entry, nil
}

// PersonStatus is the live view of one person's state at a reference
// instant. WorkedSeconds excludes all break time, including the
// currently open break.
type PersonStatus struct {
	PersonID            string     `json:"personId"`
	DisplayName         string     `json:"displayName,omitempty"`
	State               string     `json:"state"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	WorkedSeconds       int64      `json:"workedSeconds"`
	BreakSeconds        int64      `json:"breakSeconds"`
	CurrentBreakSeconds int64      `json:"currentBreakSeconds"`
}

// StatusBoard partitions everyone with an open session.
type StatusBoard struct {
	Working []PersonStatus `json:"working"`
	OnBreak []PersonStatus `json:"onBreak"`
}

// Status returns the person's live status; state "out" when no session
// exists.
func (s *AttendanceService) Status(ctx context.Context, personID string) (*PersonStatus, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, ErrInvalidRequest
	}

	sess, err := s.store.GetSession(ctx, personID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return &PersonStatus{PersonID: personID, State: "out"}, nil
	}
	st := s.statusOf(*sess, s.now())
	return &st, nil
}

// StatusAll returns everyone with an open session, split into working
// and on-break.
func (s *AttendanceService) StatusAll(ctx context.Context) (*StatusBoard, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	board := &StatusBoard{
		Working: []PersonStatus{},
		OnBreak: []PersonStatus{},
	}
	for _, sess := range sessions {
		st := s.statusOf(sess, now)
		if sess.State == domain.StateOnBreak {
			board.OnBreak = append(board.OnBreak, st)
		} else {
			board.Working = append(board.Working, st)
		}
	}
	return board, nil
}

func (s *AttendanceService) statusOf(sess domain.Session, now time.Time) PersonStatus {
	worked, clamped := domain.NetWorkedSeconds(sess.StartedAt, sess.BreakSeconds, sess.BreakStart, now)
	if clamped {
		s.log.Warn("negative duration clamped in status view",
			zap.String("person", sess.PersonID))
	}

	started := sess.StartedAt
	st := PersonStatus{
		PersonID:      sess.PersonID,
		DisplayName:   sess.DisplayName,
		State:         string(sess.State),
		StartedAt:     &started,
		WorkedSeconds: worked,
		BreakSeconds:  sess.BreakSeconds,
	}
	if sess.BreakStart != nil {
		open := int64(now.Sub(*sess.BreakStart) / time.Second)
		if open < 0 {
			open = 0
		}
		st.CurrentBreakSeconds = open
	}
	return st
}
