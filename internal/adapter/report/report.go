// Package report implements reporting-surface adapters. The chat
// gateway supplies its own domain.Reporter in production; this one
// writes the reports to the service log.
package report

import (
	"context"

	"attendance/internal/domain"

	"go.uber.org/zap"
)

// Log delivers scheduler reports to the structured log.
type Log struct {
	log *zap.Logger
}

// NewLog creates a log-backed reporter.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

var _ domain.Reporter = (*Log)(nil)

// DailyClose logs the daily forced-close summary.
func (r *Log) DailyClose(ctx context.Context, day string, lines []domain.ClosedLine) error {
	r.log.Info("daily close report",
		zap.String("day", day),
		zap.Any("closed", lines))
	return nil
}

// Weekly logs the weekly aggregate summary.
func (r *Log) Weekly(ctx context.Context, fromDay, toDay string, rows []domain.WeeklyRow) error {
	r.log.Info("weekly report",
		zap.String("from", fromDay),
		zap.String("to", toDay),
		zap.Any("rows", rows))
	return nil
}
