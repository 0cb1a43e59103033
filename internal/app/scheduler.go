package app

import (
	"context"
	"errors"
	"time"

	"attendance/internal/domain"

	"go.uber.org/zap"
)

// Timer names recorded in the scheduler-mark store.
const (
	timerDailyClose   = "daily_close"
	timerWeeklyReport = "weekly_report"
)

// Scheduler runs the two autonomous timers: the daily forced close and
// the weekly aggregate report. Both are anchored to local midnight and
// idempotent across restarts: each timer durably records the last
// calendar date it covered and fires at most once per uncovered date,
// oldest first, so an offline stretch never produces a backlog storm.
type Scheduler struct {
	att       *AttendanceService
	store     domain.AttendanceRepository
	marks     domain.SchedulerMarkRepository
	tokens    domain.AuthSessionRepository
	reports   *ReportService
	reporter  domain.Reporter
	weekStart time.Weekday
	log       *zap.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped Scheduler. weekStart is the weekday on
// which the weekly report fires.
func NewScheduler(att *AttendanceService, store domain.AttendanceRepository, marks domain.SchedulerMarkRepository, tokens domain.AuthSessionRepository, reports *ReportService, reporter domain.Reporter, weekStart time.Weekday, log *zap.Logger) *Scheduler {
	return &Scheduler{
		att:       att,
		store:     store,
		marks:     marks,
		tokens:    tokens,
		reports:   reports,
		reporter:  reporter,
		weekStart: weekStart,
		log:       log,
		now:       time.Now,
	}
}

// Start launches the timer loop. It runs one catch-up pass immediately,
// then wakes at every local midnight.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the loop and waits for any in-flight firing to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		if err := s.CatchUp(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("scheduler catch-up failed", zap.Error(err))
		}

		timer := time.NewTimer(time.Until(nextMidnight(s.now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CatchUp fires each timer once for every calendar date it has not yet
// covered, up to and including today. On the very first run there is
// nothing to backfill; the timers start covering from today. Expired
// operator login tokens are swept on the same cadence.
func (s *Scheduler) CatchUp(ctx context.Context) error {
	today := domain.LocalDay(s.now())
	if err := s.catchUpTimer(ctx, timerDailyClose, today, s.fireDailyClose); err != nil {
		return err
	}
	if err := s.catchUpTimer(ctx, timerWeeklyReport, today, s.fireWeekly); err != nil {
		return err
	}

	if err := s.tokens.DeleteExpiredAuthSessions(ctx); err != nil {
		s.log.Warn("auth session sweep failed", zap.Error(err))
	}
	return nil
}

func (s *Scheduler) catchUpTimer(ctx context.Context, timer, today string, fire func(context.Context, string)) error {
	last, err := s.marks.LastCovered(ctx, timer)
	if err != nil {
		return err
	}
	if last == "" {
		return s.marks.MarkCovered(ctx, timer, today)
	}

	day, err := addDays(last, 1)
	if err != nil {
		return err
	}
	for day <= today {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fire(ctx, day)
		if err := s.marks.MarkCovered(ctx, timer, day); err != nil {
			return err
		}
		if day, err = addDays(day, 1); err != nil {
			return err
		}
	}
	return nil
}

// fireDailyClose closes every open session as of the end of the day
// before `day` (23:59:59 local), exactly as a clock-out would, and hands
// the per-person worked totals to the reporter. Per-person failures are
// logged and skipped so one bad record cannot block the batch.
func (s *Scheduler) fireDailyClose(ctx context.Context, day string) {
	boundary, err := dayStart(day)
	if err != nil {
		s.log.Error("daily close: bad day key", zap.String("day", day), zap.Error(err))
		return
	}
	ref := domain.EndOfPreviousDay(boundary)

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		s.log.Error("daily close: list sessions", zap.Error(err))
		return
	}

	var lines []domain.ClosedLine
	for _, sess := range sessions {
		// A session opened after the boundary belongs to a later day;
		// leave it for that day's firing.
		if sess.StartedAt.After(ref) {
			continue
		}

		entry, err := s.att.ForceClose(ctx, sess.PersonID, ref)
		if errors.Is(err, domain.ErrNotWorking) {
			// Lost the race to an interactive clock-out.
			continue
		}
		if err != nil {
			s.log.Error("daily close: force close failed",
				zap.String("person", sess.PersonID), zap.Error(err))
			continue
		}
		lines = append(lines, domain.ClosedLine{
			DisplayName:   entry.DisplayName,
			WorkedSeconds: entry.WorkedSeconds,
		})
	}

	if len(lines) == 0 {
		return
	}
	if err := s.reporter.DailyClose(ctx, domain.LocalDay(ref), lines); err != nil {
		s.log.Error("daily close: report delivery failed", zap.Error(err))
	}
	s.log.Info("daily forced close",
		zap.String("day", domain.LocalDay(ref)), zap.Int("closed", len(lines)))
}

// fireWeekly emits the weekly aggregate when `day` is the configured
// start of week, over the seven days ending the day before.
func (s *Scheduler) fireWeekly(ctx context.Context, day string) {
	start, err := dayStart(day)
	if err != nil {
		s.log.Error("weekly report: bad day key", zap.String("day", day), zap.Error(err))
		return
	}
	if start.Weekday() != s.weekStart {
		return
	}

	endDay, err := addDays(day, -1)
	if err != nil {
		s.log.Error("weekly report: bad day key", zap.String("day", day), zap.Error(err))
		return
	}
	fromDay, _ := addDays(endDay, -6)

	rows, err := s.reports.Weekly(ctx, endDay)
	if err != nil {
		s.log.Error("weekly report: aggregation failed", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}
	if err := s.reporter.Weekly(ctx, fromDay, endDay, rows); err != nil {
		s.log.Error("weekly report: delivery failed", zap.Error(err))
	}
	s.log.Info("weekly report",
		zap.String("from", fromDay), zap.String("to", endDay), zap.Int("people", len(rows)))
}

func dayStart(day string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", day, time.Local)
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.In(time.Local).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.Local)
}
