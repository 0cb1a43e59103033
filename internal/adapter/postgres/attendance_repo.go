package postgres

import (
	"context"
	"database/sql"
	"time"

	"attendance/internal/domain"
)

// Ensure interfaces are met.
var _ domain.AttendanceRepository = (*DB)(nil)
var _ domain.HistoryRepository = (*DB)(nil)
var _ domain.BreakRepository = (*DB)(nil)
var _ domain.SchedulerMarkRepository = (*DB)(nil)

// ClockIn creates the person's session row. The primary key on
// person_id makes the "at most one session" rule a database invariant.
func (d *DB) ClockIn(ctx context.Context, personID, displayName string, at time.Time) (*domain.Session, error) {
	err := d.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sessions(person_id, display_name, state, started_at, break_seconds)
			 VALUES($1, $2, $3, $4, 0) ON CONFLICT (person_id) DO NOTHING;`,
			personID, displayName, string(domain.StateWorking), at.UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAlreadyWorking
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		PersonID:    personID,
		DisplayName: displayName,
		State:       domain.StateWorking,
		StartedAt:   at,
	}, nil
}

// ClockOut closes the session in one transaction: the row is locked,
// any open break is folded and its entry completed, the history entry
// is appended and the session deleted. A concurrent transition for the
// same person blocks on the row lock and then fails its precondition.
func (d *DB) ClockOut(ctx context.Context, personID string, at time.Time) (*domain.ClockOutResult, error) {
	return d.clockOut(ctx, personID, at, false)
}

// ForceClockOut closes like ClockOut, refusing sessions opened after
// ref. The start-time check runs on the locked row, so a close-and-
// reopen racing the daily forced close cannot get its fresh session
// closed with yesterday's reference instant.
func (d *DB) ForceClockOut(ctx context.Context, personID string, ref time.Time) (*domain.ClockOutResult, error) {
	return d.clockOut(ctx, personID, ref, true)
}

func (d *DB) clockOut(ctx context.Context, personID string, at time.Time, mustSpan bool) (*domain.ClockOutResult, error) {
	var out domain.ClockOutResult
	err := d.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sess, err := lockSession(ctx, tx, personID)
		if err != nil {
			return err
		}
		if mustSpan && sess.StartedAt.After(at) {
			return domain.ErrNotWorking
		}

		breakTotal := sess.BreakSeconds
		clamped := false
		if sess.State == domain.StateOnBreak {
			var c bool
			breakTotal, c = domain.FoldedBreakSeconds(sess.BreakSeconds, *sess.BreakStart, at)
			clamped = clamped || c
			if _, err := completeOpenBreak(ctx, tx, personID, at, breakTotal-sess.BreakSeconds); err != nil {
				return err
			}
		}

		worked, c := domain.NetWorkedSeconds(sess.StartedAt, sess.BreakSeconds, sess.BreakStart, at)
		clamped = clamped || c

		entry := domain.HistoryEntry{
			PersonID:      personID,
			DisplayName:   sess.DisplayName,
			Day:           domain.LocalDay(at),
			StartedAt:     sess.StartedAt,
			EndedAt:       at,
			WorkedSeconds: worked,
			BreakSeconds:  breakTotal,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO history(person_id, display_name, day, started_at, ended_at, worked_seconds, break_seconds)
			 VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id;`,
			entry.PersonID, entry.DisplayName, entry.Day, entry.StartedAt.UTC(), entry.EndedAt.UTC(),
			entry.WorkedSeconds, entry.BreakSeconds,
		).Scan(&entry.ID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE person_id=$1;", personID); err != nil {
			return err
		}

		out = domain.ClockOutResult{Entry: entry, Clamped: clamped}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StartBreak moves the locked session onto break and opens a break entry.
func (d *DB) StartBreak(ctx context.Context, personID, displayName, reason string, at time.Time) (*domain.Session, error) {
	var out domain.Session
	err := d.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sess, err := lockSession(ctx, tx, personID)
		if err != nil {
			return err
		}
		if sess.State == domain.StateOnBreak {
			return domain.ErrAlreadyOnBreak
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET state=$1, break_started_at=$2, display_name=$3 WHERE person_id=$4;",
			string(domain.StateOnBreak), at.UTC(), displayName, personID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO breaks(person_id, display_name, reason, started_at) VALUES($1, $2, $3, $4);",
			personID, displayName, reason, at.UTC()); err != nil {
			return err
		}

		t := at
		out = *sess
		out.DisplayName = displayName
		out.State = domain.StateOnBreak
		out.BreakStart = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResumeBreak folds the open break into the locked session and completes
// the matching break entry.
func (d *DB) ResumeBreak(ctx context.Context, personID string, at time.Time) (*domain.ResumeResult, error) {
	var out domain.ResumeResult
	err := d.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		sess, err := lockSession(ctx, tx, personID)
		if err != nil {
			return err
		}
		if sess.State != domain.StateOnBreak {
			return domain.ErrNotOnBreak
		}

		folded, _ := domain.FoldedBreakSeconds(sess.BreakSeconds, *sess.BreakStart, at)
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET state=$1, break_started_at=NULL, break_seconds=$2 WHERE person_id=$3;",
			string(domain.StateWorking), folded, personID); err != nil {
			return err
		}

		completed, err := completeOpenBreak(ctx, tx, personID, at, folded-sess.BreakSeconds)
		if err != nil {
			return err
		}

		updated := *sess
		updated.State = domain.StateWorking
		updated.BreakStart = nil
		updated.BreakSeconds = folded
		out = domain.ResumeResult{
			Session:         updated,
			BreakSeconds:    folded - sess.BreakSeconds,
			MissingBreakRow: !completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns the person's session, or nil when out.
func (d *DB) GetSession(ctx context.Context, personID string) (*domain.Session, error) {
	var out *domain.Session
	err := d.run(ctx, func(ctx context.Context) error {
		row := d.sql.QueryRowContext(ctx,
			`SELECT person_id, display_name, state, started_at, break_started_at, break_seconds
			 FROM sessions WHERE person_id=$1;`, personID)
		s, err := scanSession(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListSessions returns all open sessions ordered by clock-in time.
func (d *DB) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := d.run(ctx, func(ctx context.Context) error {
		rows, err := d.sql.QueryContext(ctx,
			`SELECT person_id, display_name, state, started_at, break_started_at, break_seconds
			 FROM sessions ORDER BY started_at;`)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		out = out[:0]
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, *s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var (
		s          domain.Session
		state      string
		breakStart sql.NullTime
	)
	if err := r.Scan(&s.PersonID, &s.DisplayName, &state, &s.StartedAt, &breakStart, &s.BreakSeconds); err != nil {
		return nil, err
	}
	s.State = domain.SessionState(state)
	if breakStart.Valid {
		t := breakStart.Time
		s.BreakStart = &t
	}
	return &s, nil
}

// lockSession reads the session row FOR UPDATE, serializing all
// transitions for one person on the row lock. ErrNotWorking when the
// person has no session.
func lockSession(ctx context.Context, tx *sql.Tx, personID string) (*domain.Session, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT person_id, display_name, state, started_at, break_started_at, break_seconds
		 FROM sessions WHERE person_id=$1 FOR UPDATE;`, personID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotWorking
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// completeOpenBreak fills in the end instant and duration of the
// person's open break entry. Reports whether a row was found; the
// caller treats a miss as a consistency warning.
func completeOpenBreak(ctx context.Context, tx *sql.Tx, personID string, at time.Time, duration int64) (bool, error) {
	if duration < 0 {
		duration = 0
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE breaks SET ended_at=$1, duration_seconds=$2
		 WHERE id = (SELECT id FROM breaks WHERE person_id=$3 AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1);`,
		at.UTC(), duration, personID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
