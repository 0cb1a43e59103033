package postgres

import (
	"context"
	"database/sql"

	"attendance/internal/domain"
)

// HistoryBetween returns history entries with fromDay <= day <= toDay,
// oldest first.
func (d *DB) HistoryBetween(ctx context.Context, fromDay, toDay string) ([]domain.HistoryEntry, error) {
	return d.queryHistory(ctx,
		`SELECT id, person_id, display_name, day, started_at, ended_at, worked_seconds, break_seconds
		 FROM history WHERE day >= $1 AND day <= $2 ORDER BY day, started_at;`, fromDay, toDay)
}

// HistoryForPerson returns one person's history entries in the day range.
func (d *DB) HistoryForPerson(ctx context.Context, personID, fromDay, toDay string) ([]domain.HistoryEntry, error) {
	return d.queryHistory(ctx,
		`SELECT id, person_id, display_name, day, started_at, ended_at, worked_seconds, break_seconds
		 FROM history WHERE person_id = $1 AND day >= $2 AND day <= $3 ORDER BY day, started_at;`,
		personID, fromDay, toDay)
}

func (d *DB) queryHistory(ctx context.Context, query string, args ...any) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	err := d.run(ctx, func(ctx context.Context) error {
		rows, err := d.sql.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		out = out[:0]
		for rows.Next() {
			var e domain.HistoryEntry
			if err := rows.Scan(&e.ID, &e.PersonID, &e.DisplayName, &e.Day,
				&e.StartedAt, &e.EndedAt, &e.WorkedSeconds, &e.BreakSeconds); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecentBreaks returns the person's most recent break entries.
func (d *DB) ListRecentBreaks(ctx context.Context, personID string, limit int) ([]domain.BreakEntry, error) {
	var out []domain.BreakEntry
	err := d.run(ctx, func(ctx context.Context) error {
		rows, err := d.sql.QueryContext(ctx,
			`SELECT id, person_id, display_name, reason, started_at, ended_at, duration_seconds
			 FROM breaks WHERE person_id = $1 ORDER BY started_at DESC LIMIT $2;`, personID, limit)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		out = out[:0]
		for rows.Next() {
			var (
				b     domain.BreakEntry
				ended sql.NullTime
				dur   sql.NullInt64
			)
			if err := rows.Scan(&b.ID, &b.PersonID, &b.DisplayName, &b.Reason,
				&b.StartedAt, &ended, &dur); err != nil {
				return err
			}
			if ended.Valid {
				t := ended.Time
				b.EndedAt = &t
			}
			if dur.Valid {
				v := dur.Int64
				b.DurationSeconds = &v
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LastCovered returns the last calendar day covered by the timer, or ""
// if it has never fired.
func (d *DB) LastCovered(ctx context.Context, timer string) (string, error) {
	var day string
	err := d.run(ctx, func(ctx context.Context) error {
		err := d.sql.QueryRowContext(ctx,
			"SELECT last_day FROM scheduler_runs WHERE timer = $1;", timer).Scan(&day)
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return day, nil
}

// MarkCovered records the timer as having covered the day.
func (d *DB) MarkCovered(ctx context.Context, timer, day string) error {
	return d.run(ctx, func(ctx context.Context) error {
		_, err := d.sql.ExecContext(ctx,
			`INSERT INTO scheduler_runs(timer, last_day) VALUES($1, $2)
			 ON CONFLICT (timer) DO UPDATE SET last_day = EXCLUDED.last_day;`, timer, day)
		return err
	})
}
