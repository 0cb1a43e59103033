package domain

import "time"

// NetWorkedSeconds computes the net worked time of a session at ref:
// elapsed since start, minus accumulated break time, minus the current
// open break (when breakStart is non-nil). Truncates to whole seconds.
// A negative result is clamped to zero and flagged; callers should log
// it as a consistency warning rather than fail the operation.
func NetWorkedSeconds(startedAt time.Time, breakSeconds int64, breakStart *time.Time, ref time.Time) (int64, bool) {
	secs := int64(ref.Sub(startedAt)/time.Second) - breakSeconds
	if breakStart != nil {
		secs -= int64(ref.Sub(*breakStart) / time.Second)
	}
	if secs < 0 {
		return 0, true
	}
	return secs, false
}

// FoldedBreakSeconds folds the open break that began at breakStart into
// the accumulated total as of ref. A negative open-break duration is
// clamped to zero and flagged.
func FoldedBreakSeconds(breakSeconds int64, breakStart, ref time.Time) (int64, bool) {
	open := int64(ref.Sub(breakStart) / time.Second)
	if open < 0 {
		return breakSeconds, true
	}
	return breakSeconds + open, false
}

// SplitHoursMinutes decomposes a second count into whole hours and
// remaining whole minutes, for display. Derived, never stored.
func SplitHoursMinutes(seconds int64) (hours, minutes int64) {
	return seconds / 3600, (seconds % 3600) / 60
}

// LocalDay formats t as a local calendar day key.
func LocalDay(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}

// EndOfPreviousDay returns 23:59:59 local on the day before t's day.
// The scheduler uses it as the synthetic reference instant for forced
// closes, so sessions spanning midnight stay attributed to the day they
// started.
func EndOfPreviousDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d-1, 23, 59, 59, 0, time.Local)
}
