// Package memory implements an in-memory store for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"attendance/internal/domain"
)

// DB implements every repository port in process memory. A single mutex
// guards all state, so each transition is trivially atomic.
type DB struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	history  []domain.HistoryEntry
	breaks   []domain.BreakEntry
	marks    map[string]string

	operators    []*domain.Operator
	authSessions map[string]*domain.AuthSession

	historyIDCounter  int64
	breakIDCounter    int64
	operatorIDCounter int64
}

// New creates an empty in-memory store.
func New() *DB {
	return &DB{
		sessions:     make(map[string]*domain.Session),
		marks:        make(map[string]string),
		authSessions: make(map[string]*domain.AuthSession),
	}
}

// Close satisfies the store lifecycle; nothing to release.
func (db *DB) Close() error { return nil }

// cloneSession copies a session without aliasing the stored BreakStart,
// so callers cannot mutate store state through the returned pointer.
func cloneSession(s *domain.Session) *domain.Session {
	cp := *s
	if s.BreakStart != nil {
		t := *s.BreakStart
		cp.BreakStart = &t
	}
	return &cp
}

// Ensure interfaces are met.
var _ domain.AttendanceRepository = (*DB)(nil)
var _ domain.HistoryRepository = (*DB)(nil)
var _ domain.BreakRepository = (*DB)(nil)
var _ domain.SchedulerMarkRepository = (*DB)(nil)
var _ domain.OperatorRepository = (*DB)(nil)
var _ domain.AuthSessionRepository = (*DB)(nil)

// --- AttendanceRepository ---

// ClockIn creates a working session for the person.
func (db *DB) ClockIn(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[personID]; ok {
		return nil, domain.ErrAlreadyWorking
	}

	s := &domain.Session{
		PersonID:    personID,
		DisplayName: displayName,
		State:       domain.StateWorking,
		StartedAt:   at,
	}
	db.sessions[personID] = s
	return cloneSession(s), nil
}

// ClockOut folds any open break, writes the history entry and deletes
// the session, all under the store lock.
func (db *DB) ClockOut(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.clockOutLocked(personID, at, false)
}

// ForceClockOut closes like ClockOut, refusing sessions opened after ref.
func (db *DB) ForceClockOut(ctx context.Context, personID string, ref time.Time) (*domain.ClockOutResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.clockOutLocked(personID, ref, true)
}

func (db *DB) clockOutLocked(personID string, at time.Time, mustSpan bool) (*domain.ClockOutResult, error) {
	s, ok := db.sessions[personID]
	if !ok {
		return nil, domain.ErrNotWorking
	}
	if mustSpan && s.StartedAt.After(at) {
		return nil, domain.ErrNotWorking
	}

	breakSecs := s.BreakSeconds
	clamped := false
	if s.State == domain.StateOnBreak {
		var c bool
		breakSecs, c = domain.FoldedBreakSeconds(s.BreakSeconds, *s.BreakStart, at)
		clamped = clamped || c
		db.closeOpenBreakLocked(personID, at)
	}

	worked, c := domain.NetWorkedSeconds(s.StartedAt, s.BreakSeconds, s.BreakStart, at)
	clamped = clamped || c

	db.historyIDCounter++
	entry := domain.HistoryEntry{
		ID:            db.historyIDCounter,
		PersonID:      personID,
		DisplayName:   s.DisplayName,
		Day:           domain.LocalDay(at),
		StartedAt:     s.StartedAt,
		EndedAt:       at,
		WorkedSeconds: worked,
		BreakSeconds:  breakSecs,
	}
	db.history = append(db.history, entry)
	delete(db.sessions, personID)

	return &domain.ClockOutResult{Entry: entry, Clamped: clamped}, nil
}

// StartBreak moves a working session onto break and opens a break entry.
func (db *DB) StartBreak(ctx context.Context, personID, displayName, reason string, at time.Time) (*domain.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[personID]
	if !ok {
		return nil, domain.ErrNotWorking
	}
	if s.State == domain.StateOnBreak {
		return nil, domain.ErrAlreadyOnBreak
	}

	t := at
	s.State = domain.StateOnBreak
	s.BreakStart = &t
	s.DisplayName = displayName

	db.breakIDCounter++
	db.breaks = append(db.breaks, domain.BreakEntry{
		ID:          db.breakIDCounter,
		PersonID:    personID,
		DisplayName: displayName,
		Reason:      reason,
		StartedAt:   at,
	})

	return cloneSession(s), nil
}

// ResumeBreak folds the open break into the session and completes the
// matching break entry.
func (db *DB) ResumeBreak(ctx context.Context, personID string, at time.Time) (*domain.ResumeResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[personID]
	if !ok {
		return nil, domain.ErrNotWorking
	}
	if s.State != domain.StateOnBreak {
		return nil, domain.ErrNotOnBreak
	}

	before := s.BreakSeconds
	folded, _ := domain.FoldedBreakSeconds(s.BreakSeconds, *s.BreakStart, at)
	s.BreakSeconds = folded
	s.BreakStart = nil
	s.State = domain.StateWorking

	completed := db.closeOpenBreakLocked(personID, at)

	return &domain.ResumeResult{
		Session:         *cloneSession(s),
		BreakSeconds:    folded - before,
		MissingBreakRow: !completed,
	}, nil
}

// closeOpenBreakLocked completes the most recent open break entry for
// the person. Caller holds db.mu.
func (db *DB) closeOpenBreakLocked(personID string, at time.Time) bool {
	for i := len(db.breaks) - 1; i >= 0; i-- {
		b := &db.breaks[i]
		if b.PersonID == personID && b.EndedAt == nil {
			end := at
			dur := int64(at.Sub(b.StartedAt) / time.Second)
			if dur < 0 {
				dur = 0
			}
			b.EndedAt = &end
			b.DurationSeconds = &dur
			return true
		}
	}
	return false
}

// GetSession returns the person's session, or nil when out.
func (db *DB) GetSession(ctx context.Context, personID string) (*domain.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[personID]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

// ListSessions returns all open sessions ordered by clock-in time.
func (db *DB) ListSessions(ctx context.Context) ([]domain.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Session, 0, len(db.sessions))
	for _, s := range db.sessions {
		out = append(out, *cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// --- HistoryRepository ---

// HistoryBetween returns history entries with fromDay <= Day <= toDay.
func (db *DB) HistoryBetween(ctx context.Context, fromDay, toDay string) ([]domain.HistoryEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.HistoryEntry
	for _, e := range db.history {
		if e.Day >= fromDay && e.Day <= toDay {
			out = append(out, e)
		}
	}
	return out, nil
}

// HistoryForPerson returns one person's history entries in the day range.
func (db *DB) HistoryForPerson(ctx context.Context, personID, fromDay, toDay string) ([]domain.HistoryEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.HistoryEntry
	for _, e := range db.history {
		if e.PersonID == personID && e.Day >= fromDay && e.Day <= toDay {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- BreakRepository ---

// ListRecentBreaks returns the person's most recent break entries.
func (db *DB) ListRecentBreaks(ctx context.Context, personID string, limit int) ([]domain.BreakEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.BreakEntry
	for _, b := range db.breaks {
		if b.PersonID == personID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- SchedulerMarkRepository ---

// LastCovered returns the last calendar day covered by the timer, or ""
// if it has never fired.
func (db *DB) LastCovered(ctx context.Context, timer string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.marks[timer], nil
}

// MarkCovered records the timer as having covered the day.
func (db *DB) MarkCovered(ctx context.Context, timer, day string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.marks[timer] = day
	return nil
}

// --- OperatorRepository ---

// OperatorByUsername retrieves an operator by username.
func (db *DB) OperatorByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, o := range db.operators {
		if o.Username == username {
			return o, nil
		}
	}
	return nil, nil
}

// OperatorByID retrieves an operator by ID.
func (db *DB) OperatorByID(ctx context.Context, id int64) (*domain.Operator, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, o := range db.operators {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

// CreateOperator creates a new operator.
func (db *DB) CreateOperator(ctx context.Context, username, passwordHash string) (*domain.Operator, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, o := range db.operators {
		if o.Username == username {
			return nil, errors.New("operator already exists")
		}
	}

	db.operatorIDCounter++
	o := &domain.Operator{
		ID:           db.operatorIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.operators = append(db.operators, o)
	return o, nil
}

// CountOperators returns the total number of operators.
func (db *DB) CountOperators(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.operators), nil
}

// --- AuthSessionRepository ---

// CreateAuthSession stores a login token.
func (db *DB) CreateAuthSession(ctx context.Context, operatorID int64, token string, expiresAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.authSessions[token] = &domain.AuthSession{
		Token:      token,
		OperatorID: operatorID,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

// AuthSessionByToken retrieves a login token, dropping it if expired.
func (db *DB) AuthSessionByToken(ctx context.Context, token string) (*domain.AuthSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.authSessions[token]
	if !ok {
		return nil, nil
	}
	if time.Now().After(s.ExpiresAt) {
		delete(db.authSessions, token)
		return nil, nil
	}
	return s, nil
}

// DeleteAuthSession removes a login token.
func (db *DB) DeleteAuthSession(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.authSessions, token)
	return nil
}

// DeleteExpiredAuthSessions removes all expired login tokens.
func (db *DB) DeleteExpiredAuthSessions(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now()
	for k, v := range db.authSessions {
		if now.After(v.ExpiresAt) {
			delete(db.authSessions, k)
		}
	}
	return nil
}
