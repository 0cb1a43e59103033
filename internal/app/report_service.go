package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"attendance/internal/domain"
)

// ReportService computes aggregates over closed-session history.
type ReportService struct {
	history domain.HistoryRepository
}

// NewReportService creates a ReportService backed by the given repository.
func NewReportService(history domain.HistoryRepository) *ReportService {
	return &ReportService{history: history}
}

// Weekly aggregates the seven-day window ending endDay (inclusive):
// per-person total worked seconds, count of distinct worked days and
// mean worked seconds per worked day, ranked by total descending.
// Returns an empty slice when no history falls in the window.
func (s *ReportService) Weekly(ctx context.Context, endDay string) ([]domain.WeeklyRow, error) {
	fromDay, err := addDays(endDay, -6)
	if err != nil {
		return nil, err
	}

	entries, err := s.history.HistoryBetween(ctx, fromDay, endDay)
	if err != nil {
		return nil, err
	}

	type acc struct {
		displayName string
		total       int64
		days        map[string]struct{}
	}
	byPerson := make(map[string]*acc)
	for _, e := range entries {
		a, ok := byPerson[e.PersonID]
		if !ok {
			a = &acc{displayName: e.DisplayName, days: make(map[string]struct{})}
			byPerson[e.PersonID] = a
		}
		a.total += e.WorkedSeconds
		a.days[e.Day] = struct{}{}
		// History keeps the name as of each event; the report shows the
		// most recent one.
		a.displayName = e.DisplayName
	}

	rows := make([]domain.WeeklyRow, 0, len(byPerson))
	for id, a := range byPerson {
		days := len(a.days)
		rows = append(rows, domain.WeeklyRow{
			PersonID:       id,
			DisplayName:    a.displayName,
			WorkedSeconds:  a.total,
			DaysWorked:     days,
			MeanSecondsDay: a.total / int64(days),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].WorkedSeconds != rows[j].WorkedSeconds {
			return rows[i].WorkedSeconds > rows[j].WorkedSeconds
		}
		return rows[i].PersonID < rows[j].PersonID
	})
	return rows, nil
}

// addDays shifts a local calendar day key by n days.
func addDays(day string, n int) (string, error) {
	t, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t.AddDate(0, 0, n).Format("2006-01-02"), nil
}
