// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

// SessionState is the state of an open work session. A person with no
// session row is "out"; that is not a stored state.
type SessionState string

const (
	// StateWorking means the person is clocked in and not on break.
	StateWorking SessionState = "working"
	// StateOnBreak means the person is clocked in with an open break.
	StateOnBreak SessionState = "on_break"
)

// Transition precondition failures. These are expected, user-facing
// results, not infrastructure errors.
var (
	ErrAlreadyWorking = errors.New("already clocked in")
	ErrNotWorking     = errors.New("not clocked in")
	ErrAlreadyOnBreak = errors.New("already on break")
	ErrNotOnBreak     = errors.New("not on break")
)

// ErrStorageUnavailable indicates the backing store could not be reached
// within the call's deadline. Surfaced to the requester as a retryable
// condition.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Session is a person's open work period from clock-in to clock-out.
// At most one exists per person. BreakStart is set if and only if
// State == StateOnBreak. BreakSeconds counts only completed breaks;
// time in a currently open break is not included.
type Session struct {
	PersonID     string       `json:"personId"`
	DisplayName  string       `json:"displayName"`
	State        SessionState `json:"state"`
	StartedAt    time.Time    `json:"startedAt"`
	BreakStart   *time.Time   `json:"breakStart,omitempty"`
	BreakSeconds int64        `json:"breakSeconds"`
}

// HistoryEntry is a closed session. Written exactly once, by clock-out
// or by the scheduler's forced close, and never updated afterwards.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	PersonID      string    `json:"personId"`
	DisplayName   string    `json:"displayName"`
	Day           string    `json:"day"` // local calendar day, "2006-01-02"
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	WorkedSeconds int64     `json:"workedSeconds"`
	BreakSeconds  int64     `json:"breakSeconds"`
}

// BreakEntry is one break within a session. EndedAt and DurationSeconds
// are nil while the break is open; at most one open entry exists per
// person, matching the session's StateOnBreak.
type BreakEntry struct {
	ID              int64      `json:"id"`
	PersonID        string     `json:"personId"`
	DisplayName     string     `json:"displayName"`
	Reason          string     `json:"reason"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

// ClockOutResult is what the store wrote when it closed a session.
// Clamped is set when the worked-seconds arithmetic produced a negative
// value that was clamped to zero (a consistency warning, not a failure).
type ClockOutResult struct {
	Entry   HistoryEntry
	Clamped bool
}

// ResumeResult is the outcome of folding an open break back into the
// session. MissingBreakRow is set when no open break entry was found to
// complete, which indicates inconsistent stored data.
type ResumeResult struct {
	Session         Session
	BreakSeconds    int64
	MissingBreakRow bool
}

// AttendanceRepository is the port for the session store. Each transition
// method applies its full effect atomically: under concurrent calls for
// the same person, exactly one writer wins and the loser observes the
// precondition failure. The timestamp passed in is the single "now" for
// the whole transition.
type AttendanceRepository interface {
	ClockIn(ctx context.Context, personID, displayName string, at time.Time) (*Session, error)
	ClockOut(ctx context.Context, personID string, at time.Time) (*ClockOutResult, error)
	// ForceClockOut closes like ClockOut at the synthetic instant ref,
	// but only a session that started at or before ref. A session opened
	// after ref belongs to a later day and is reported as ErrNotWorking,
	// checked under the same lock as the close itself.
	ForceClockOut(ctx context.Context, personID string, ref time.Time) (*ClockOutResult, error)
	StartBreak(ctx context.Context, personID, displayName, reason string, at time.Time) (*Session, error)
	ResumeBreak(ctx context.Context, personID string, at time.Time) (*ResumeResult, error)
	GetSession(ctx context.Context, personID string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
}

// HistoryRepository is the port for closed-session queries. Day bounds
// are inclusive local calendar days.
type HistoryRepository interface {
	HistoryBetween(ctx context.Context, fromDay, toDay string) ([]HistoryEntry, error)
	HistoryForPerson(ctx context.Context, personID, fromDay, toDay string) ([]HistoryEntry, error)
}

// BreakRepository is the port for break-entry queries.
type BreakRepository interface {
	ListRecentBreaks(ctx context.Context, personID string, limit int) ([]BreakEntry, error)
}

// SchedulerMarkRepository records the last calendar day each timer has
// covered, so that firings are idempotent across restarts.
type SchedulerMarkRepository interface {
	LastCovered(ctx context.Context, timer string) (string, error)
	MarkCovered(ctx context.Context, timer, day string) error
}

// ClosedLine is one row of a daily forced-close report.
type ClosedLine struct {
	DisplayName   string `json:"displayName"`
	WorkedSeconds int64  `json:"workedSeconds"`
}

// WeeklyRow is one person's aggregate over a seven-day window.
type WeeklyRow struct {
	PersonID       string `json:"personId"`
	DisplayName    string `json:"displayName"`
	WorkedSeconds  int64  `json:"workedSeconds"`
	DaysWorked     int    `json:"daysWorked"`
	MeanSecondsDay int64  `json:"meanSecondsPerDay"`
}

// Reporter is the port to the external reporting surface. Delivery is
// best-effort; implementations must not block scheduler progress.
type Reporter interface {
	DailyClose(ctx context.Context, day string, lines []ClosedLine) error
	Weekly(ctx context.Context, fromDay, toDay string, rows []WeeklyRow) error
}
